package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunStatus 运行状态
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"   // 待执行
	RunStatusRunning   RunStatus = "running"   // 执行中
	RunStatusCompleted RunStatus = "completed" // 已完成
	RunStatusFailed    RunStatus = "failed"    // 种子页失败
	RunStatusCancelled RunStatus = "cancelled" // 已取消(部分结果)
)

// TerminalStage 流水线的终止阶段
type TerminalStage string

const (
	TerminalSections TerminalStage = "sections" // 只发现栏目链接
	TerminalArticles TerminalStage = "articles" // 发现文章链接后停止
	TerminalRecords  TerminalStage = "records"  // 抓取并解析全部文章
)

// FetchEngine 页面获取引擎
type FetchEngine string

const (
	EngineHTTP    FetchEngine = "http"    // net/http
	EngineColly   FetchEngine = "colly"   // colly采集器
	EngineDynamic FetchEngine = "dynamic" // go-rod无头浏览器
)

// CrawlConfig 爬取配置
type CrawlConfig struct {
	Workers            int           `json:"workers" mapstructure:"workers"`                         // 文章阶段并发数 (默认:2)
	SectionConcurrency int           `json:"section_concurrency" mapstructure:"section_concurrency"` // 栏目阶段并发数 (0=与workers相同)
	RequestTimeout     time.Duration `json:"request_timeout" mapstructure:"request_timeout"`         // 单次请求超时 (默认:30s)
	Engine             FetchEngine   `json:"engine" mapstructure:"engine"`                           // 获取引擎 (默认:http)
	TerminalStage      TerminalStage `json:"terminal_stage" mapstructure:"terminal_stage"`           // 终止阶段 (默认:records)
	MaxRetries         int           `json:"max_retries" mapstructure:"max_retries"`                 // 瞬时错误重试次数 (默认:0)
	Headless           bool          `json:"headless" mapstructure:"headless"`                       // 无头模式 (dynamic引擎)
	MaxPagesLimit      int           `json:"max_pages_limit" mapstructure:"max_pages_limit"`         // 浏览器标签页绝对上限 (dynamic引擎)
}

// Validate 验证配置
func (c *CrawlConfig) Validate() error {
	if c.Workers < 1 || c.Workers > 100 {
		return fmt.Errorf("并发数必须在1-100之间")
	}
	if c.SectionConcurrency < 0 || c.SectionConcurrency > 100 {
		return fmt.Errorf("栏目并发数必须在0-100之间")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("请求超时必须大于0")
	}
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("重试次数必须在0-10之间")
	}
	switch c.Engine {
	case EngineHTTP, EngineColly, EngineDynamic:
	default:
		return fmt.Errorf("无效的获取引擎: %s", c.Engine)
	}
	switch c.TerminalStage {
	case TerminalSections, TerminalArticles, TerminalRecords:
	default:
		return fmt.Errorf("无效的终止阶段: %s", c.TerminalStage)
	}
	return nil
}

// RunStats 运行统计
type RunStats struct {
	Sections     int               `json:"sections"`       // 栏目链接数
	Articles     int               `json:"articles"`       // 文章链接数(去重后)
	Attempted    int               `json:"attempted"`      // 已产生记录数
	Succeeded    int               `json:"succeeded"`      // 成功记录数
	Failed       int               `json:"failed"`         // 失败记录数
	FailedByKind map[ErrorKind]int `json:"failed_by_kind"` // 按失败类型统计
	Duration     float64           `json:"duration"`       // 总耗时(秒)
}

// CrawlRun 一次爬取运行
type CrawlRun struct {
	ID         string          `json:"id"`
	Seed       string          `json:"seed"`
	Profile    string          `json:"profile"`
	Status     RunStatus       `json:"status"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Sections   *LinkSet        `json:"-"`
	Articles   *LinkSet        `json:"-"`
	Records    []ArticleRecord `json:"records"`
	Stats      RunStats        `json:"stats"`
}

// NewCrawlRun 创建新的运行
func NewCrawlRun(seed, profile string) *CrawlRun {
	return &CrawlRun{
		ID:        uuid.NewString(),
		Seed:      seed,
		Profile:   profile,
		Status:    RunStatusPending,
		StartedAt: time.Now(),
		Sections:  NewLinkSet(StageSection),
		Articles:  NewLinkSet(StageArticle),
		Records:   make([]ArticleRecord, 0),
	}
}

// Finish 结束运行并汇总统计
func (r *CrawlRun) Finish(status RunStatus) {
	now := time.Now()
	r.FinishedAt = &now
	r.Status = status

	stats := RunStats{
		Sections:     r.Sections.Len(),
		Articles:     r.Articles.Len(),
		Attempted:    len(r.Records),
		FailedByKind: make(map[ErrorKind]int),
		Duration:     now.Sub(r.StartedAt).Seconds(),
	}
	for _, rec := range r.Records {
		if rec.Succeeded() {
			stats.Succeeded++
			continue
		}
		stats.Failed++
		stats.FailedByKind[rec.Error]++
	}
	r.Stats = stats
}

// FailedRecords 返回失败记录
func (r *CrawlRun) FailedRecords() []ArticleRecord {
	failed := make([]ArticleRecord, 0)
	for _, rec := range r.Records {
		if !rec.Succeeded() {
			failed = append(failed, rec)
		}
	}
	return failed
}
