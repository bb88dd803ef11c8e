package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/NewsCrawl/internal/models"
	"github.com/RecoveryAshes/NewsCrawl/internal/utils"
)

// ReportSink 每次运行生成JSON报告,并把记录写入同目录的 articles.json
type ReportSink struct {
	reporter *utils.Reporter
	config   models.CrawlConfig
}

// NewReportSink 创建JSON报告输出
func NewReportSink(baseDir string, config models.CrawlConfig) *ReportSink {
	return &ReportSink{
		reporter: utils.NewReporter(baseDir),
		config:   config,
	}
}

// Name 实现 Sink
func (s *ReportSink) Name() string {
	return FormatJSON
}

// Write 实现 Sink
func (s *ReportSink) Write(_ context.Context, run *models.CrawlRun) error {
	dir, err := s.reporter.GenerateReport(run, s.config)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(run.Records, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}
	path := filepath.Join(dir, "articles.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("写入文章文件失败: %w", err)
	}
	return nil
}

// Close 实现 Sink
func (s *ReportSink) Close() error {
	return nil
}
