package crawlers

import (
	"context"
	"fmt"
	"time"

	"github.com/RecoveryAshes/NewsCrawl/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// DynamicFetcherConfig 无头浏览器获取器配置
type DynamicFetcherConfig struct {
	Timeout       time.Duration // 单页超时(导航+加载)
	Headless      bool
	MaxPagesLimit int // 标签页绝对上限
}

// DynamicFetcher 基于go-rod无头浏览器的页面获取器
// 用于需要执行JavaScript才能渲染出链接的页面
type DynamicFetcher struct {
	config  DynamicFetcherConfig
	browser *rod.Browser
	pool    *PagePool
	monitor *ResourceMonitor
}

// NewDynamicFetcher 启动浏览器并创建获取器,使用完毕必须调用 Close
func NewDynamicFetcher(config DynamicFetcherConfig) (*DynamicFetcher, error) {
	l := launcher.New().Headless(config.Headless)
	// 允许访问自签名或过期证书的站点
	l = l.Set("ignore-certificate-errors")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("启动浏览器失败: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("连接浏览器失败: %w", err)
	}
	utils.Debugf("浏览器已启动: %s", controlURL)

	monitor := NewResourceMonitor(DefaultResourceMonitorConfig(config.MaxPagesLimit))
	monitor.StartMonitoring(time.Second)

	return &DynamicFetcher{
		config:  config,
		browser: browser,
		pool:    NewPagePool(browser, monitor),
		monitor: monitor,
	}, nil
}

// Fetch 在标签页中打开URL,返回渲染后的HTML
func (f *DynamicFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	if f.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.config.Timeout)
		defer cancel()
	}

	tab, err := f.pool.Acquire(ctx)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer f.pool.Release(tab)

	page := tab.Context(ctx)

	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	status := 0
	waitDocument := page.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type == proto.NetworkResourceTypeDocument {
			status = e.Response.Status
			return true
		}
		return false
	})

	if err := page.Navigate(url); err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("导航失败: %w", err)}
	}
	waitDocument()
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	if status != 0 && !isSuccessStatus(status) {
		return nil, newStatusError(url, status)
	}

	if err := page.WaitLoad(); err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("等待页面加载失败: %w", err)}
	}

	html, err := page.HTML()
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("读取页面HTML失败: %w", err)}
	}

	finalURL := url
	if info, err := page.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}

	if status == 0 {
		status = 200
	}
	utils.Debugf("浏览器获取页面: %s (状态=%d, 大小=%d)", url, status, len(html))

	return &Page{
		URL:         url,
		FinalURL:    finalURL,
		StatusCode:  status,
		ContentType: "text/html; charset=utf-8",
		Body:        []byte(html),
	}, nil
}

// Close 关闭标签页池和浏览器
func (f *DynamicFetcher) Close() error {
	f.monitor.StopMonitoring()
	f.pool.Close()
	if err := f.browser.Close(); err != nil {
		return fmt.Errorf("关闭浏览器失败: %w", err)
	}
	utils.Debugf("浏览器已关闭")
	return nil
}
