package crawlers

import (
	"context"
	"fmt"
	"sync"

	"github.com/RecoveryAshes/NewsCrawl/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// PagePool 浏览器标签页池
// 职责: 按资源监控给出的上限懒创建标签页,并在获取器之间复用
type PagePool struct {
	browser *rod.Browser
	monitor *ResourceMonitor

	mu        sync.Mutex
	pages     []*rod.Page
	available chan *rod.Page
	closed    bool
}

// NewPagePool 创建标签页池
func NewPagePool(browser *rod.Browser, monitor *ResourceMonitor) *PagePool {
	return &PagePool{
		browser:   browser,
		monitor:   monitor,
		pages:     make([]*rod.Page, 0),
		available: make(chan *rod.Page, monitor.config.MaxPagesLimit),
	}
}

// Acquire 获取一个标签页,已达上限时阻塞等待归还
func (pp *PagePool) Acquire(ctx context.Context) (*rod.Page, error) {
	select {
	case page := <-pp.available:
		return page, nil
	default:
	}

	pp.mu.Lock()
	if pp.closed {
		pp.mu.Unlock()
		return nil, fmt.Errorf("标签页池已关闭")
	}
	current := len(pp.pages)
	maxPages := pp.monitor.CalculateMaxPages()
	canCreate, reason := pp.monitor.CanCreatePage()
	// 池为空时总是允许创建第一个标签页
	if current < maxPages && (canCreate || current == 0) {
		page, err := pp.browser.Page(proto.TargetCreateTarget{})
		if err != nil {
			pp.mu.Unlock()
			return nil, fmt.Errorf("创建标签页失败(浏览器可能已崩溃): %w", err)
		}
		pp.pages = append(pp.pages, page)
		pp.mu.Unlock()
		utils.Debugf("创建新标签页,当前标签页数: %d, 最大限制: %d", current+1, maxPages)
		return page, nil
	}
	pp.mu.Unlock()

	if !canCreate {
		utils.Debugf("暂不创建标签页: %s", reason)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case page := <-pp.available:
		return page, nil
	}
}

// Release 归还标签页,页面状态无法重置时销毁
func (pp *PagePool) Release(page *rod.Page) {
	if page == nil {
		return
	}

	if err := page.Navigate("about:blank"); err != nil {
		utils.Debugf("重置标签页失败,销毁: %v", err)
		pp.destroy(page)
		return
	}

	pp.mu.Lock()
	closed := pp.closed
	pp.mu.Unlock()
	if closed {
		pp.destroy(page)
		return
	}

	select {
	case pp.available <- page:
	default:
		pp.destroy(page)
	}
}

func (pp *PagePool) destroy(page *rod.Page) {
	pp.mu.Lock()
	for i, p := range pp.pages {
		if p == page {
			pp.pages = append(pp.pages[:i], pp.pages[i+1:]...)
			break
		}
	}
	pp.mu.Unlock()

	if err := page.Close(); err != nil {
		utils.Debugf("关闭标签页失败: %v", err)
	}
}

// Size 已创建的标签页数
func (pp *PagePool) Size() int {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	return len(pp.pages)
}

// Close 关闭所有标签页
func (pp *PagePool) Close() {
	pp.mu.Lock()
	if pp.closed {
		pp.mu.Unlock()
		return
	}
	pp.closed = true
	pages := pp.pages
	pp.pages = nil
	pp.mu.Unlock()

	for _, page := range pages {
		_ = page.Close()
	}
	utils.Debugf("标签页池已关闭,共关闭 %d 个标签页", len(pages))
}
