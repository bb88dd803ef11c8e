package models

// Stage 链接所属的爬取阶段
type Stage string

const (
	StageSection Stage = "section" // 栏目列表页
	StageArticle Stage = "article" // 文章页
)

// CrawlTarget 表示一个待抓取的目标
// 用途:
//   - 由链接提取器的输出生成,创建后不可修改
//   - 每个目标在一次运行中只被流水线消费一次
type CrawlTarget struct {
	// URL 完整的绝对URL
	URL string

	// Stage 目标所属阶段
	Stage Stage

	// SourceURL 发现此URL的源页面(可选,用于调试)
	SourceURL string
}

// NewCrawlTarget 创建爬取目标
func NewCrawlTarget(url string, stage Stage, sourceURL string) CrawlTarget {
	return CrawlTarget{URL: url, Stage: stage, SourceURL: sourceURL}
}
