package sinks

import (
	"context"
	"fmt"
	"os"
	"sync"
	"unicode/utf8"

	"github.com/RecoveryAshes/NewsCrawl/internal/models"
	"github.com/xuri/excelize/v2"
)

// ArticleSheet 文章工作表名
const ArticleSheet = "articles"

// ExcelSink 把记录写入xlsx文件的 articles 工作表
// 第一行为表头,之后每条记录一行;文件已存在时在末尾追加
type ExcelSink struct {
	path string

	mu      sync.Mutex
	file    *excelize.File
	nextRow int
}

// NewExcelSink 打开或创建xlsx文件
func NewExcelSink(path string) (*ExcelSink, error) {
	s := &ExcelSink{path: path}

	if _, err := os.Stat(path); err == nil {
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("打开xlsx文件失败 [%s]: %w", path, err)
		}
		if idx, _ := f.GetSheetIndex(ArticleSheet); idx < 0 {
			_ = f.Close()
			return nil, fmt.Errorf("xlsx文件缺少%s工作表 [%s]", ArticleSheet, path)
		}
		rows, err := f.GetRows(ArticleSheet)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("读取xlsx文件失败 [%s]: %w", path, err)
		}
		s.file = f
		s.nextRow = len(rows) + 1
		return s, nil
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", ArticleSheet); err != nil {
		return nil, err
	}
	s.file = f
	s.nextRow = 1
	if err := s.writeRow(models.RecordHeader); err != nil {
		return nil, err
	}
	return s, nil
}

// Name 实现 Sink
func (s *ExcelSink) Name() string {
	return FormatXLSX
}

// Write 追加一次运行的全部记录并保存文件
func (s *ExcelSink) Write(ctx context.Context, run *models.CrawlRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range run.Records {
		if err := s.writeRow(rec.Row()); err != nil {
			return err
		}
	}
	if err := s.file.SaveAs(s.path); err != nil {
		return fmt.Errorf("保存xlsx文件失败 [%s]: %w", s.path, err)
	}
	return nil
}

func (s *ExcelSink) writeRow(values []string) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, s.nextRow)
		if err != nil {
			return err
		}
		if err := s.file.SetCellStr(ArticleSheet, cell, truncateCell(v)); err != nil {
			return fmt.Errorf("写入单元格%s失败: %w", cell, err)
		}
	}
	s.nextRow++
	return nil
}

// Close 实现 Sink
func (s *ExcelSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// truncateCell 单元格最多 excelize.TotalCellChars 个字符
func truncateCell(v string) string {
	if utf8.RuneCountInString(v) <= excelize.TotalCellChars {
		return v
	}
	return string([]rune(v)[:excelize.TotalCellChars])
}
