package crawlers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Page 一次成功抓取的页面
type Page struct {
	URL         string // 请求的URL
	FinalURL    string // 重定向后的URL,用作相对链接的基准
	StatusCode  int
	ContentType string
	Body        []byte // 已解压并转换为UTF-8
}

// HTML 页面内容
func (p *Page) HTML() string {
	return string(p.Body)
}

// BaseURL 解析相对链接时使用的URL
func (p *Page) BaseURL() string {
	if p.FinalURL != "" {
		return p.FinalURL
	}
	return p.URL
}

// PageFetcher 页面获取器
// 实现必须可被多个goroutine同时调用
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// FetcherFunc 函数适配为 PageFetcher
type FetcherFunc func(ctx context.Context, url string) (*Page, error)

// Fetch 实现 PageFetcher
func (f FetcherFunc) Fetch(ctx context.Context, url string) (*Page, error) {
	return f(ctx, url)
}

// ErrNonSuccessStatus 响应状态码不是2xx
var ErrNonSuccessStatus = errors.New("非2xx响应状态码")

// FetchError 获取失败: 网络错误、超时或非2xx状态码
type FetchError struct {
	URL        string
	StatusCode int // 0 表示未收到响应
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("获取失败 [%s]: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("获取失败 [%s]: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Temporary 是否为可重试的瞬时错误 (超时、连接错误、5xx、429)
func (e *FetchError) Temporary() bool {
	if e.StatusCode != 0 {
		return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
	}
	if errors.Is(e.Err, context.Canceled) {
		return false
	}
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(e.Err, &netErr) {
		return true
	}
	// colly/rod 返回的错误只能按文本判断
	msg := strings.ToLower(fmt.Sprint(e.Err))
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused")
}

// newStatusError 非2xx状态码错误
func newStatusError(url string, status int) *FetchError {
	return &FetchError{
		URL:        url,
		StatusCode: status,
		Err:        fmt.Errorf("%w: %d", ErrNonSuccessStatus, status),
	}
}

// isSuccessStatus 2xx
func isSuccessStatus(status int) bool {
	return status >= 200 && status < 300
}
