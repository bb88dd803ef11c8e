package crawlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/RecoveryAshes/NewsCrawl/internal/models"
	"github.com/RecoveryAshes/NewsCrawl/internal/utils"
)

const (
	// DefaultUserAgent 未配置请求头时使用
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// maxBodySize 单个页面最大读取字节数
	maxBodySize = 20 * 1024 * 1024

	acceptEncoding = "gzip, deflate, br"
)

// HTTPFetcher 基于 net/http 的页面获取器
type HTTPFetcher struct {
	client         *http.Client
	timeout        time.Duration
	headerProvider models.HeaderProvider
}

// NewHTTPFetcher 创建HTTP获取器
// timeout 作用于单次请求(含读取响应体); headerProvider 可为nil
func NewHTTPFetcher(timeout time.Duration, headerProvider models.HeaderProvider) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		},
		timeout:        timeout,
		headerProvider: headerProvider,
	}
}

// Fetch 获取页面
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	if err := applyHeaders(req.Header, f.headerProvider); err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	// 手动声明编码后 Transport 不再自动解压,由 decodeBody 处理
	req.Header.Set("Accept-Encoding", acceptEncoding)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if !isSuccessStatus(resp.StatusCode) {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return nil, newStatusError(url, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &FetchError{URL: url, StatusCode: 0, Err: fmt.Errorf("读取响应体失败: %w", err)}
	}

	contentType := resp.Header.Get("Content-Type")
	body, err := decodeBody(resp.Header.Get("Content-Encoding"), contentType, raw)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	utils.Debugf("获取页面: %s (状态=%d, 大小=%d)", url, resp.StatusCode, len(body))

	return &Page{
		URL:         url,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        body,
	}, nil
}

// applyHeaders 把头部提供者的结果写入请求
func applyHeaders(dst http.Header, provider models.HeaderProvider) error {
	if provider == nil {
		dst.Set("User-Agent", DefaultUserAgent)
		return nil
	}
	headers, err := provider.GetHeaders()
	if err != nil {
		return fmt.Errorf("获取请求头失败: %w", err)
	}
	for name, values := range headers {
		for i, v := range values {
			if i == 0 {
				dst.Set(name, v)
			} else {
				dst.Add(name, v)
			}
		}
	}
	if dst.Get("User-Agent") == "" {
		dst.Set("User-Agent", DefaultUserAgent)
	}
	return nil
}

// IsCancelled 获取失败是否由调用方的 ctx 结束引起
// 单次请求超时不算取消,ctx 已结束时的任何失败都算
func IsCancelled(ctx context.Context, err error) bool {
	return err != nil && ctx.Err() != nil
}
