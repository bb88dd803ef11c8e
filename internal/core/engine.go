package core

import (
	"fmt"

	"github.com/RecoveryAshes/NewsCrawl/internal/crawlers"
	"github.com/RecoveryAshes/NewsCrawl/internal/models"
	"github.com/RecoveryAshes/NewsCrawl/internal/utils"
)

// NewFetcher 按配置创建页面获取器
// 返回的 closer 必须在使用结束后调用(dynamic引擎需要关闭浏览器)
func NewFetcher(config models.CrawlConfig, headerProvider models.HeaderProvider) (crawlers.PageFetcher, func() error, error) {
	noop := func() error { return nil }

	var (
		fetcher crawlers.PageFetcher
		closer  = noop
	)

	switch config.Engine {
	case models.EngineHTTP, "":
		fetcher = crawlers.NewHTTPFetcher(config.RequestTimeout, headerProvider)
	case models.EngineColly:
		fetcher = crawlers.NewCollyFetcher(config.RequestTimeout, headerProvider)
	case models.EngineDynamic:
		df, err := crawlers.NewDynamicFetcher(crawlers.DynamicFetcherConfig{
			Timeout:       config.RequestTimeout,
			Headless:      config.Headless,
			MaxPagesLimit: config.MaxPagesLimit,
		})
		if err != nil {
			return nil, noop, err
		}
		fetcher = df
		closer = df.Close
	default:
		return nil, noop, fmt.Errorf("无效的获取引擎: %s", config.Engine)
	}

	utils.Debugf("页面获取引擎: %s, 超时: %s, 重试: %d", config.Engine, config.RequestTimeout, config.MaxRetries)
	return crawlers.NewRetryFetcher(fetcher, config.MaxRetries), closer, nil
}
