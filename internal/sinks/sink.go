// Package sinks 把一次运行的文章记录写到外部存储
package sinks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/RecoveryAshes/NewsCrawl/internal/models"
	"github.com/RecoveryAshes/NewsCrawl/internal/utils"
)

// 支持的输出格式
const (
	FormatXLSX   = "xlsx"
	FormatSQLite = "sqlite"
	FormatJSON   = "json"
)

// Sink 运行结果输出
// Write 每次运行调用一次,批量模式下同一个 Sink 会收到多次运行
type Sink interface {
	Name() string
	Write(ctx context.Context, run *models.CrawlRun) error
	Close() error
}

// Options 创建输出时的公共参数
type Options struct {
	BaseDir    string
	SQLitePath string             // 为空时使用 BaseDir/articles.db
	Config     models.CrawlConfig // 写入JSON报告的配置快照
}

// New 按格式列表创建输出,返回的 Multi 依次写入每个输出
func New(formats []string, opts Options) (*Multi, error) {
	if err := os.MkdirAll(opts.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}

	multi := &Multi{}
	seen := make(map[string]bool)
	for _, raw := range formats {
		format := strings.ToLower(strings.TrimSpace(raw))
		if format == "" || seen[format] {
			continue
		}
		seen[format] = true

		var (
			sink Sink
			err  error
		)
		switch format {
		case FormatXLSX:
			sink, err = NewExcelSink(filepath.Join(opts.BaseDir, "articles.xlsx"))
		case FormatSQLite:
			path := opts.SQLitePath
			if path == "" {
				path = filepath.Join(opts.BaseDir, "articles.db")
			}
			sink, err = NewSQLiteSink(path)
		case FormatJSON:
			sink = NewReportSink(opts.BaseDir, opts.Config)
		default:
			err = fmt.Errorf("不支持的输出格式: %s", raw)
		}
		if err != nil {
			_ = multi.Close()
			return nil, err
		}
		multi.sinks = append(multi.sinks, sink)
	}

	if len(multi.sinks) == 0 {
		return nil, fmt.Errorf("至少需要一种输出格式")
	}
	return multi, nil
}

// Multi 组合多个输出
// 单个输出失败不影响其他输出,错误合并后返回
type Multi struct {
	sinks []Sink
}

// Name 实现 Sink
func (m *Multi) Name() string {
	names := make([]string, 0, len(m.sinks))
	for _, s := range m.sinks {
		names = append(names, s.Name())
	}
	return strings.Join(names, ",")
}

// Write 写入所有输出
func (m *Multi) Write(ctx context.Context, run *models.CrawlRun) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Write(ctx, run); err != nil {
			utils.Errorf("写入%s输出失败 [run=%s]: %v", s.Name(), run.ID, err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		utils.Debugf("已写入%s输出: %d条记录", s.Name(), len(run.Records))
	}
	return errors.Join(errs...)
}

// Close 关闭所有输出
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
