package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/RecoveryAshes/NewsCrawl/internal/crawlers"
	"github.com/RecoveryAshes/NewsCrawl/internal/models"
	"github.com/RecoveryAshes/NewsCrawl/internal/utils"
	"golang.org/x/sync/errgroup"
)

// ErrSeedFetch 种子页获取失败,整次运行没有输出
var ErrSeedFetch = errors.New("种子页获取失败")

// PipelineState 流水线状态
type PipelineState string

const (
	StateInit             PipelineState = "init"
	StateDiscoverSections PipelineState = "discover_sections"
	StateDiscoverArticles PipelineState = "discover_articles"
	StateFetchArticles    PipelineState = "fetch_articles"
	StateDone             PipelineState = "done"
)

// Pipeline 三阶段爬取流水线
// 种子页 -> 栏目链接 -> 文章链接 -> 文章记录
// 构造后只读,可重复调用 Run
type Pipeline struct {
	profile models.SiteProfile
	config  models.CrawlConfig
	fetcher crawlers.PageFetcher

	menu    *crawlers.LinkExtractor // 为nil时种子页即唯一栏目页
	listing *crawlers.LinkExtractor
	parser  *crawlers.ArticleParser

	onRecord func(models.ArticleRecord)
	onState  func(PipelineState, *models.CrawlRun)
}

// Option 流水线选项
type Option func(*Pipeline)

// WithRecordObserver 每产生一条记录回调一次,在收集goroutine中串行调用
func WithRecordObserver(fn func(models.ArticleRecord)) Option {
	return func(p *Pipeline) {
		p.onRecord = fn
	}
}

// WithStateObserver 进入每个状态时回调,可读取当前运行的链接集合
// 进入 StateFetchArticles 时 run.Articles 已确定,可用于初始化进度
func WithStateObserver(fn func(PipelineState, *models.CrawlRun)) Option {
	return func(p *Pipeline) {
		p.onState = fn
	}
}

// NewPipeline 创建流水线
func NewPipeline(profile models.SiteProfile, config models.CrawlConfig, fetcher crawlers.PageFetcher, opts ...Option) (*Pipeline, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if fetcher == nil {
		return nil, fmt.Errorf("页面获取器不能为空")
	}

	p := &Pipeline{
		profile: profile,
		config:  config,
		fetcher: fetcher,
	}

	var err error
	if profile.Sections != nil {
		if p.menu, err = crawlers.NewLinkExtractor(*profile.Sections); err != nil {
			return nil, fmt.Errorf("创建菜单链接提取器失败: %w", err)
		}
	}
	if p.listing, err = crawlers.NewLinkExtractor(profile.Listing); err != nil {
		return nil, fmt.Errorf("创建列表链接提取器失败: %w", err)
	}
	if p.parser, err = crawlers.NewArticleParser(profile.Article); err != nil {
		return nil, fmt.Errorf("创建文章解析器失败: %w", err)
	}

	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Pipeline) enter(state PipelineState, run *models.CrawlRun) {
	utils.Debugf("流水线状态: %s", state)
	if p.onState != nil {
		p.onState(state, run)
	}
}

// Run 从种子页开始执行一次完整爬取
//
// 只有种子页失败是致命错误(返回 ErrSeedFetch)。栏目页失败只记录日志;
// 文章页失败产生带错误类型的记录。ctx 取消时返回已完成的部分结果
// 和包装了 ctx.Err() 的错误,未处理的链接记为 Cancelled。
func (p *Pipeline) Run(ctx context.Context, seed string) (*models.CrawlRun, error) {
	run := models.NewCrawlRun(seed, p.profile.Name)
	run.Status = models.RunStatusRunning
	p.enter(StateInit, run)

	// 阶段1: 种子页 -> 栏目链接
	p.enter(StateDiscoverSections, run)
	seedPage, err := p.fetcher.Fetch(ctx, seed)
	if err != nil {
		utils.Errorf("种子页获取失败 [%s]: %v", seed, err)
		status := models.RunStatusFailed
		if crawlers.IsCancelled(ctx, err) {
			status = models.RunStatusCancelled
		}
		run.Finish(status)
		p.enter(StateDone, run)
		return run, fmt.Errorf("%w [%s]: %w", ErrSeedFetch, seed, err)
	}

	if p.menu == nil {
		run.Sections.Add(seed)
	} else {
		links, err := p.menu.Extract(seedPage)
		if err != nil {
			utils.Warnf("种子页菜单提取失败 [%s]: %v", seed, err)
		}
		run.Sections.AddAll(links)
	}
	utils.Infof("发现栏目链接: %d 个", run.Sections.Len())

	if p.config.TerminalStage == models.TerminalSections {
		return p.finish(ctx, run)
	}

	// 阶段2: 栏目页 -> 文章链接
	p.enter(StateDiscoverArticles, run)
	p.discoverArticles(ctx, run, seed, seedPage)
	utils.Infof("发现文章链接: %d 个 (去重后)", run.Articles.Len())

	if p.config.TerminalStage == models.TerminalArticles {
		return p.finish(ctx, run)
	}

	// 阶段3: 文章页 -> 记录
	p.enter(StateFetchArticles, run)
	run.Records = p.fetchArticles(ctx, run.Articles.Targets())

	return p.finish(ctx, run)
}

// discoverArticles 并发抓取栏目页,合并所有文章链接
func (p *Pipeline) discoverArticles(ctx context.Context, run *models.CrawlRun, seed string, seedPage *crawlers.Page) {
	limit := p.config.SectionConcurrency
	if limit <= 0 {
		limit = p.config.Workers
	}

	var g errgroup.Group
	g.SetLimit(limit)

	for _, target := range run.Sections.Targets() {
		if ctx.Err() != nil {
			break
		}
		section := target.URL
		g.Go(func() error {
			page := seedPage
			// 没有菜单规则时种子页就是栏目页,不重复获取
			if p.menu != nil || section != seed {
				var err error
				page, err = p.fetcher.Fetch(ctx, section)
				if err != nil {
					utils.Warnf("栏目页获取失败 [%s]: %v", section, err)
					return nil
				}
			}

			links, err := p.listing.Extract(page)
			if err != nil {
				utils.Warnf("栏目页链接提取失败 [%s]: %v", section, err)
				return nil
			}
			added := run.Articles.AddAll(links)
			utils.Debugf("栏目 %s: 提取 %d 个链接, 新增 %d 个", section, len(links), added)
			return nil
		})
	}
	_ = g.Wait()
}

// fetchArticles N个worker并发处理文章链接,每个链接恰好产生一条记录
func (p *Pipeline) fetchArticles(ctx context.Context, targets []models.CrawlTarget) []models.ArticleRecord {
	jobs := make(chan models.CrawlTarget)
	results := make(chan models.ArticleRecord)

	var wg sync.WaitGroup
	for i := 0; i < p.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for target := range jobs {
				results <- p.processArticle(ctx, workerID, target.URL)
			}
		}(i + 1)
	}

	go func() {
		// 取消后仍然分发全部链接, worker 会直接返回 Cancelled 记录
		for _, target := range targets {
			jobs <- target
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	records := make([]models.ArticleRecord, 0, len(targets))
	for rec := range results {
		records = append(records, rec)
		if p.onRecord != nil {
			p.onRecord(rec)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Link < records[j].Link
	})
	return records
}

// processArticle 获取并解析一篇文章
func (p *Pipeline) processArticle(ctx context.Context, workerID int, link string) models.ArticleRecord {
	if err := ctx.Err(); err != nil {
		return models.NewFailedRecord(link, models.ErrorCancelled, err.Error())
	}

	fetchURL := p.profile.ArticleRewrite.Apply(link)
	page, err := p.fetcher.Fetch(ctx, fetchURL)
	if err != nil {
		if crawlers.IsCancelled(ctx, err) {
			return models.NewFailedRecord(link, models.ErrorCancelled, err.Error())
		}
		utils.Warnf("Worker %d 文章获取失败 [%s]: %v", workerID, fetchURL, err)
		return models.NewFailedRecord(link, models.ErrorFetch, err.Error())
	}

	article, err := p.parser.Parse(page)
	if err != nil {
		utils.Warnf("Worker %d 文章解析失败 [%s]: %v", workerID, link, err)
		return models.NewFailedRecord(link, models.ErrorExtraction, err.Error())
	}

	utils.Debugf("Worker %d 完成: %s", workerID, link)
	return models.NewArticleRecord(link, article.Title, article.PublishedAt, article.Body)
}

// finish 汇总统计并结束运行
func (p *Pipeline) finish(ctx context.Context, run *models.CrawlRun) (*models.CrawlRun, error) {
	if err := ctx.Err(); err != nil {
		run.Finish(models.RunStatusCancelled)
		p.enter(StateDone, run)
		utils.Warnf("爬取被取消,保留部分结果: %d 条记录", len(run.Records))
		return run, fmt.Errorf("爬取被取消: %w", err)
	}

	run.Finish(models.RunStatusCompleted)
	p.enter(StateDone, run)
	utils.Infof("爬取完成: 栏目 %d, 文章 %d, 成功 %d, 失败 %d, 耗时 %.2f秒",
		run.Stats.Sections, run.Stats.Articles, run.Stats.Succeeded, run.Stats.Failed, run.Stats.Duration)
	return run, nil
}
