package models

import (
	"encoding/json"
	"time"
)

// CrawlReport 爬取报告
type CrawlReport struct {
	// 运行信息
	RunID   string    `json:"run_id"`
	Seed    string    `json:"seed"`
	Profile string    `json:"profile"`
	Status  RunStatus `json:"status"`

	// 时间信息
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  float64   `json:"duration"` // 秒

	// 统计信息
	Stats RunStats `json:"stats"`

	// 各阶段链接
	SectionLinks []string `json:"section_links"`
	ArticleLinks []string `json:"article_links"`

	// 失败链接
	FailedLinks []FailedLinkInfo `json:"failed_links"`

	// 配置快照
	Config CrawlConfig `json:"config"`
}

// FailedLinkInfo 失败链接信息
type FailedLinkInfo struct {
	URL       string    `json:"url"`
	ErrorType ErrorKind `json:"error_type"` // FetchError, ExtractionError, Cancelled
	ErrorMsg  string    `json:"error_msg"`
}

// NewCrawlReport 根据运行结果生成报告
func NewCrawlReport(run *CrawlRun, config CrawlConfig) CrawlReport {
	end := time.Now()
	if run.FinishedAt != nil {
		end = *run.FinishedAt
	}

	failed := make([]FailedLinkInfo, 0)
	for _, rec := range run.FailedRecords() {
		failed = append(failed, FailedLinkInfo{
			URL:       rec.Link,
			ErrorType: rec.Error,
			ErrorMsg:  rec.Detail,
		})
	}

	return CrawlReport{
		RunID:        run.ID,
		Seed:         run.Seed,
		Profile:      run.Profile,
		Status:       run.Status,
		StartTime:    run.StartedAt,
		EndTime:      end,
		Duration:     end.Sub(run.StartedAt).Seconds(),
		Stats:        run.Stats,
		SectionLinks: run.Sections.Members(),
		ArticleLinks: run.Articles.Members(),
		FailedLinks:  failed,
		Config:       config,
	}
}

// ToJSON 序列化为JSON
func (r *CrawlReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// FromJSON 从JSON反序列化
func (r *CrawlReport) FromJSON(data []byte) error {
	return json.Unmarshal(data, r)
}
