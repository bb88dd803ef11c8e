package config

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"github.com/RecoveryAshes/NewsCrawl/internal/models"
	"github.com/RecoveryAshes/NewsCrawl/internal/utils"
	"gopkg.in/yaml.v3"
)

// DefaultProfile 命令行和配置文件都未指定站点时使用
const DefaultProfile = "hansindia"

//go:embed profiles_default.yaml
var builtinProfiles []byte

// profileFile 站点配置文件结构
type profileFile struct {
	Profiles []models.SiteProfile `yaml:"profiles"`
}

// ProfileSet 已加载的站点配置,按名称索引
type ProfileSet struct {
	profiles map[string]models.SiteProfile
}

// LoadProfiles 加载内置站点配置,file 非空时再加载该文件
// 文件中的同名配置覆盖内置配置
func LoadProfiles(file string) (*ProfileSet, error) {
	ps := &ProfileSet{profiles: make(map[string]models.SiteProfile)}

	if err := ps.merge(builtinProfiles, "<builtin>"); err != nil {
		return nil, err
	}

	if file == "" {
		return ps, nil
	}

	info, err := os.Stat(file)
	if err != nil {
		return nil, &models.ConfigError{FilePath: file, Cause: err}
	}
	if info.Size() > MaxConfigFileSize {
		return nil, &models.ConfigError{
			FilePath: file,
			Cause:    fmt.Errorf("配置文件过大: %d 字节 (最大 %d 字节)", info.Size(), MaxConfigFileSize),
		}
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, &models.ConfigError{FilePath: file, Cause: err}
	}
	if err := ps.merge(data, file); err != nil {
		return nil, err
	}
	return ps, nil
}

func (ps *ProfileSet) merge(data []byte, source string) error {
	var pf profileFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return &models.ConfigError{FilePath: source, Cause: fmt.Errorf("解析站点配置失败: %w", err)}
	}

	for i, p := range pf.Profiles {
		if err := p.Validate(); err != nil {
			return &models.ConfigError{FilePath: source, Cause: fmt.Errorf("第%d个站点配置无效: %w", i+1, err)}
		}
		if _, exists := ps.profiles[p.Name]; exists {
			utils.Debugf("站点配置 %s 被 %s 覆盖", p.Name, source)
		}
		ps.profiles[p.Name] = p
	}
	return nil
}

// Get 按名称获取站点配置
func (ps *ProfileSet) Get(name string) (models.SiteProfile, error) {
	p, ok := ps.profiles[name]
	if !ok {
		return models.SiteProfile{}, fmt.Errorf("未知的站点配置: %s (可用: %v)", name, ps.Names())
	}
	return p, nil
}

// Names 返回所有站点配置名,按字母排序
func (ps *ProfileSet) Names() []string {
	names := make([]string, 0, len(ps.profiles))
	for name := range ps.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
