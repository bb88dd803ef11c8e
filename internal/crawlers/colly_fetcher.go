package crawlers

import (
	"context"
	"strings"
	"time"

	"github.com/RecoveryAshes/NewsCrawl/internal/models"
	"github.com/RecoveryAshes/NewsCrawl/internal/utils"
	"github.com/gocolly/colly/v2"
)

// Colly 在回调前就按声明的字符集转码响应体,只有gzip会先被它解压。
// 因此只协商gzip,其余压缩格式由 decodeBody 处理
const collyAcceptEncoding = "gzip"

// CollyFetcher 基于Colly的页面获取器
// 每次 Fetch 克隆一个采集器,回调互不干扰,底层HTTP客户端共享
type CollyFetcher struct {
	base           *colly.Collector
	headerProvider models.HeaderProvider
}

// NewCollyFetcher 创建Colly获取器
func NewCollyFetcher(timeout time.Duration, headerProvider models.HeaderProvider) *CollyFetcher {
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.UserAgent(DefaultUserAgent),
	)
	if timeout > 0 {
		c.SetRequestTimeout(timeout)
	}

	utils.Debugf("Colly获取器: 请求超时 %s", timeout)

	return &CollyFetcher{
		base:           c,
		headerProvider: headerProvider,
	}
}

type collyResult struct {
	page *Page
	err  error
}

// Fetch 获取页面
// ctx 取消后立即返回,正在进行的请求由采集器超时兜底
func (f *CollyFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	c := f.base.Clone()

	var (
		page    *Page
		failure *FetchError
	)

	c.OnRequest(func(r *colly.Request) {
		if err := applyHeaders(*r.Headers, f.headerProvider); err != nil {
			utils.Warnf("设置请求头失败 [%s]: %v", url, err)
		}
		r.Headers.Set("Accept-Encoding", collyAcceptEncoding)
	})

	c.OnResponse(func(r *colly.Response) {
		if !isSuccessStatus(r.StatusCode) {
			failure = newStatusError(url, r.StatusCode)
			return
		}
		contentType := r.Headers.Get("Content-Type")
		encoding := r.Headers.Get("Content-Encoding")
		// gzip 已由Colly解压
		if strings.EqualFold(strings.TrimSpace(encoding), "gzip") {
			encoding = ""
		}
		// 声明了字符集时Colly已转为UTF-8,不再重复转码
		decodeType := contentType
		if strings.Contains(strings.ToLower(contentType), "charset") {
			decodeType = "text/html; charset=utf-8"
		}
		body, err := decodeBody(encoding, decodeType, r.Body)
		if err != nil {
			failure = &FetchError{URL: url, Err: err}
			return
		}
		page = &Page{
			URL:         url,
			FinalURL:    r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			ContentType: contentType,
			Body:        body,
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		if status != 0 && !isSuccessStatus(status) {
			failure = newStatusError(url, status)
			return
		}
		failure = &FetchError{URL: url, Err: err}
	})

	done := make(chan collyResult, 1)
	go func() {
		err := c.Visit(url)
		switch {
		case failure != nil:
			done <- collyResult{err: failure}
		case err != nil:
			done <- collyResult{err: &FetchError{URL: url, Err: err}}
		case page == nil:
			done <- collyResult{err: &FetchError{URL: url, Err: ErrNonSuccessStatus}}
		default:
			done <- collyResult{page: page}
		}
	}()

	select {
	case <-ctx.Done():
		return nil, &FetchError{URL: url, Err: ctx.Err()}
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		utils.Debugf("Colly获取页面: %s (状态=%d, 大小=%d)", url, res.page.StatusCode, len(res.page.Body))
		return res.page, nil
	}
}
