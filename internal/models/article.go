package models

import (
	"time"
)

// ErrorKind 单条文章记录的失败类型
type ErrorKind string

const (
	ErrorNone       ErrorKind = ""                // 成功
	ErrorFetch      ErrorKind = "FetchError"      // 网络错误/超时/非2xx状态码
	ErrorExtraction ErrorKind = "ExtractionError" // 必需字段缺失或日期无法解析
	ErrorCancelled  ErrorKind = "Cancelled"       // 运行被外部取消
)

// PublishedAtLayout 日期列在表格输出中的格式
const PublishedAtLayout = time.RFC3339

// RecordHeader 表格输出的列名,与 ArticleRecord.Row 一一对应
var RecordHeader = []string{"link", "title", "published_at", "body", "error"}

// ArticleRecord 一篇文章的抓取结果
//
// 成功记录: Title/PublishedAt/Body 全部有值, Error 为空
// 失败记录: Title/PublishedAt/Body 全部为空, Error 标记失败类型, Detail 保存错误信息
// Link 始终为发现该文章的链接(属于第二阶段的 LinkSet)
type ArticleRecord struct {
	Link        string     `json:"link"`
	Title       string     `json:"title,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Body        string     `json:"body,omitempty"`
	Error       ErrorKind  `json:"error,omitempty"`
	Detail      string     `json:"detail,omitempty"`
}

// NewArticleRecord 创建成功记录
func NewArticleRecord(link, title string, publishedAt time.Time, body string) ArticleRecord {
	return ArticleRecord{
		Link:        link,
		Title:       title,
		PublishedAt: &publishedAt,
		Body:        body,
	}
}

// NewFailedRecord 创建失败记录,内容字段全部留空
func NewFailedRecord(link string, kind ErrorKind, detail string) ArticleRecord {
	return ArticleRecord{
		Link:   link,
		Error:  kind,
		Detail: detail,
	}
}

// Succeeded 记录是否成功
func (r ArticleRecord) Succeeded() bool {
	return r.Error == ErrorNone
}

// Row 转换为表格行,列顺序见 RecordHeader
func (r ArticleRecord) Row() []string {
	published := ""
	if r.PublishedAt != nil {
		published = r.PublishedAt.Format(PublishedAtLayout)
	}
	return []string{r.Link, r.Title, published, r.Body, string(r.Error)}
}
