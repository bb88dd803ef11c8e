package crawlers

import (
	"context"
	"errors"
	"time"

	"github.com/RecoveryAshes/NewsCrawl/internal/utils"
	"github.com/cenkalti/backoff/v4"
)

const (
	InitialBackoffInterval = 500 * time.Millisecond
	MaxBackoffInterval     = 5 * time.Second
)

// RetryFetcher 对瞬时错误做指数退避重试的包装器
// 非瞬时错误(4xx等)和调用方取消不重试
type RetryFetcher struct {
	next            PageFetcher
	maxRetries      uint64
	initialInterval time.Duration
	maxInterval     time.Duration
}

// NewRetryFetcher 包装获取器; maxRetries 为0时直接返回原获取器
func NewRetryFetcher(next PageFetcher, maxRetries int) PageFetcher {
	if maxRetries <= 0 {
		return next
	}
	return &RetryFetcher{
		next:            next,
		maxRetries:      uint64(maxRetries),
		initialInterval: InitialBackoffInterval,
		maxInterval:     MaxBackoffInterval,
	}
}

// Fetch 获取页面,失败时按退避策略重试
func (f *RetryFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.initialInterval
	b.MaxInterval = f.maxInterval

	bo := backoff.WithContext(backoff.WithMaxRetries(b, f.maxRetries), ctx)

	var (
		page    *Page
		lastErr error
		attempt int
	)

	op := func() error {
		attempt++
		p, err := f.next.Fetch(ctx, url)
		if err == nil {
			page = p
			return nil
		}
		lastErr = err

		if ctx.Err() != nil || !isTemporary(err) {
			return backoff.Permanent(err)
		}
		utils.Debugf("瞬时错误,准备第%d次重试 [%s]: %v", attempt, url, err)
		return err
	}

	if err := backoff.Retry(op, bo); err != nil {
		if lastErr == nil {
			lastErr = &FetchError{URL: url, Err: err}
		}
		return nil, lastErr
	}
	return page, nil
}

func isTemporary(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Temporary()
	}
	return false
}
