package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/NewsCrawl/internal/models"
	"github.com/schollz/progressbar/v3"
)

// Reporter 报告生成器
type Reporter struct {
	outputDir string
}

// NewReporter 创建报告生成器
func NewReporter(outputDir string) *Reporter {
	return &Reporter{outputDir: outputDir}
}

// ReportDir 返回某次运行的报告目录: <output>/<profile>/reports/<run_id>
func (r *Reporter) ReportDir(run *models.CrawlRun) string {
	return filepath.Join(r.outputDir, run.Profile, "reports", run.ID)
}

// GenerateReport 生成爬取报告
// 写入 crawl_report.json(完整报告) 和 failed_links.json(失败链接列表)
func (r *Reporter) GenerateReport(run *models.CrawlRun, config models.CrawlConfig) (string, error) {
	reportsDir := r.ReportDir(run)
	if err := os.MkdirAll(reportsDir, 0755); err != nil {
		return "", fmt.Errorf("创建报告目录失败: %w", err)
	}

	crawlReport := models.NewCrawlReport(run, config)

	reportData, err := crawlReport.ToJSON()
	if err != nil {
		return "", fmt.Errorf("序列化报告失败: %w", err)
	}
	if err := r.writeReport(reportsDir, "crawl_report.json", reportData); err != nil {
		return "", err
	}

	failedData, err := json.MarshalIndent(crawlReport.FailedLinks, "", "  ")
	if err != nil {
		return "", fmt.Errorf("序列化失败链接失败: %w", err)
	}
	if err := r.writeReport(reportsDir, "failed_links.json", failedData); err != nil {
		return "", err
	}

	Infof("✅ 报告已生成: %s", reportsDir)
	return reportsDir, nil
}

// writeReport 保存JSON报告
func (r *Reporter) writeReport(dir string, filename string, data []byte) error {
	path := filepath.Join(dir, filename)

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("写入报告文件失败: %w", err)
	}

	Debugf("保存报告: %s", path)
	return nil
}

// NewProgressBar 创建进度条
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
