package utils

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/RecoveryAshes/NewsCrawl/internal/models"
)

// ReadSeedFile 读取种子文件,每行一个URL
// 跳过空行、# 注释、无效URL和重复URL,保持文件中的顺序
func ReadSeedFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开种子文件失败: %w", err)
	}
	defer file.Close()

	var seeds []string
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := models.ValidateURL(line); err != nil {
			Warnf("跳过无效种子 (第%d行): %s - %v", lineNum, line, err)
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		seeds = append(seeds, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取种子文件失败: %w", err)
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("种子文件中没有有效的URL: %s", path)
	}

	Infof("从种子文件加载 %d 个URL", len(seeds))
	return seeds, nil
}
