package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RecoveryAshes/NewsCrawl/internal/crawlers"
	"github.com/RecoveryAshes/NewsCrawl/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSeed = "https://site.test/"

// fakeSite 内存中的站点,记录每个URL的请求次数和最大并发数
type fakeSite struct {
	mu    sync.Mutex
	pages map[string]string
	errs  map[string]error
	calls map[string]int
	delay time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeSite() *fakeSite {
	return &fakeSite{
		pages: make(map[string]string),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (s *fakeSite) Fetch(ctx context.Context, url string) (*crawlers.Page, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		old := s.maxInFlight.Load()
		if n <= old || s.maxInFlight.CompareAndSwap(old, n) {
			break
		}
	}

	s.mu.Lock()
	s.calls[url]++
	body, ok := s.pages[url]
	fetchErr := s.errs[url]
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, &crawlers.FetchError{URL: url, Err: ctx.Err()}
		case <-time.After(s.delay):
		}
	}

	if fetchErr != nil {
		return nil, fetchErr
	}
	if !ok {
		return nil, &crawlers.FetchError{URL: url, StatusCode: http.StatusNotFound, Err: crawlers.ErrNonSuccessStatus}
	}
	return &crawlers.Page{URL: url, FinalURL: url, StatusCode: http.StatusOK, Body: []byte(body)}, nil
}

func (s *fakeSite) callCount(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[url]
}

func (s *fakeSite) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

func menuPage(sections ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><nav>")
	for _, s := range sections {
		fmt.Fprintf(&b, `<a href="%s">%s</a>`, s, s)
	}
	b.WriteString("</nav></body></html>")
	return b.String()
}

func listingPage(articles ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><ul>")
	for _, a := range articles {
		fmt.Fprintf(&b, `<li><a class="story" href="%s">story</a></li>`, a)
	}
	b.WriteString(`<a href="/about">about</a></ul></body></html>`)
	return b.String()
}

func articlePage(title string) string {
	return fmt.Sprintf(`<html><body><h1>%s</h1><time datetime="2022-01-31T10:00:00Z">Jan 31</time>
<p>第一段</p><p>第二段</p></body></html>`, title)
}

func testProfile() models.SiteProfile {
	return models.SiteProfile{
		Name:     "test",
		Sections: &models.LinkRule{Selector: "nav a"},
		Listing:  models.LinkRule{Selector: "a.story"},
		Article: models.ArticleRules{
			Title: models.FieldRule{Selector: "h1"},
			Date:  models.FieldRule{Selector: "time", Attr: "datetime"},
			Body:  models.FieldRule{Selector: "p", Join: "\n"},
		},
	}
}

func testConfig(workers int) models.CrawlConfig {
	return models.CrawlConfig{
		Workers:        workers,
		RequestTimeout: time.Second,
		Engine:         models.EngineHTTP,
		TerminalStage:  models.TerminalRecords,
	}
}

// overlappingSite 3个栏目,文章链接两两重叠,去重后3篇文章
func overlappingSite() *fakeSite {
	site := newFakeSite()
	site.pages[testSeed] = menuPage("/s1", "/s2", "/s3")
	site.pages["https://site.test/s1"] = listingPage("/a1", "/a2")
	site.pages["https://site.test/s2"] = listingPage("/a2", "/a3")
	site.pages["https://site.test/s3"] = listingPage("/a3", "https://site.test/a1")
	for _, a := range []string{"a1", "a2", "a3"} {
		site.pages["https://site.test/"+a] = articlePage("标题 " + a)
	}
	return site
}

func newTestPipeline(t *testing.T, profile models.SiteProfile, config models.CrawlConfig, fetcher crawlers.PageFetcher, opts ...Option) *Pipeline {
	t.Helper()
	p, err := NewPipeline(profile, config, fetcher, opts...)
	require.NoError(t, err)
	return p
}

func TestPipeline_OverlappingSections(t *testing.T) {
	site := overlappingSite()
	p := newTestPipeline(t, testProfile(), testConfig(2), site)

	run, err := p.Run(context.Background(), testSeed)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, []string{"https://site.test/s1", "https://site.test/s2", "https://site.test/s3"}, run.Sections.Members())
	assert.Equal(t, []string{"https://site.test/a1", "https://site.test/a2", "https://site.test/a3"}, run.Articles.Members())
	require.Len(t, run.Records, 3)

	for i, rec := range run.Records {
		assert.Equal(t, run.Articles.Members()[i], rec.Link)
		assert.True(t, rec.Succeeded(), rec.Detail)
		assert.Equal(t, "第一段\n第二段", rec.Body)
		require.NotNil(t, rec.PublishedAt)
		assert.True(t, rec.PublishedAt.Equal(time.Date(2022, 1, 31, 10, 0, 0, 0, time.UTC)))
		// 每篇文章只获取一次
		assert.Equal(t, 1, site.callCount(rec.Link))
	}
	assert.Equal(t, 3, run.Stats.Succeeded)
	assert.Equal(t, 0, run.Stats.Failed)
}

func TestPipeline_SeedFailure(t *testing.T) {
	site := overlappingSite()
	site.errs[testSeed] = &crawlers.FetchError{URL: testSeed, Err: errors.New("connection refused")}

	p := newTestPipeline(t, testProfile(), testConfig(2), site)
	run, err := p.Run(context.Background(), testSeed)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSeedFetch)
	var fetchErr *crawlers.FetchError
	assert.ErrorAs(t, err, &fetchErr)

	require.NotNil(t, run)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Empty(t, run.Records)
	assert.Equal(t, 0, run.Sections.Len())
	assert.Equal(t, 1, site.totalCalls(), "种子失败后不应继续请求")
}

func TestPipeline_SectionFailureIsNotFatal(t *testing.T) {
	site := overlappingSite()
	site.errs["https://site.test/s2"] = &crawlers.FetchError{URL: "https://site.test/s2", StatusCode: 503}
	site.pages["https://site.test/s3"] = listingPage("/a1")

	p := newTestPipeline(t, testProfile(), testConfig(2), site)
	run, err := p.Run(context.Background(), testSeed)
	require.NoError(t, err)

	assert.Equal(t, 3, run.Sections.Len())
	assert.Equal(t, []string{"https://site.test/a1", "https://site.test/a2"}, run.Articles.Members())
	assert.Len(t, run.Records, 2)
}

func TestPipeline_ArticleFailures(t *testing.T) {
	site := overlappingSite()
	delete(site.pages, "https://site.test/a2")
	site.pages["https://site.test/a3"] = `<html><body><p>没有标题</p></body></html>`

	p := newTestPipeline(t, testProfile(), testConfig(3), site)
	run, err := p.Run(context.Background(), testSeed)
	require.NoError(t, err)
	require.Len(t, run.Records, 3)

	byLink := make(map[string]models.ArticleRecord)
	for _, rec := range run.Records {
		byLink[rec.Link] = rec
	}

	assert.True(t, byLink["https://site.test/a1"].Succeeded())

	fetchFailed := byLink["https://site.test/a2"]
	assert.Equal(t, models.ErrorFetch, fetchFailed.Error)
	assert.Empty(t, fetchFailed.Title)
	assert.Nil(t, fetchFailed.PublishedAt)
	assert.Contains(t, fetchFailed.Detail, "404")

	extractFailed := byLink["https://site.test/a3"]
	assert.Equal(t, models.ErrorExtraction, extractFailed.Error)
	assert.Empty(t, extractFailed.Body)

	assert.Equal(t, 1, run.Stats.Succeeded)
	assert.Equal(t, 1, run.Stats.FailedByKind[models.ErrorFetch])
	assert.Equal(t, 1, run.Stats.FailedByKind[models.ErrorExtraction])
}

func TestPipeline_BoundedConcurrency(t *testing.T) {
	site := newFakeSite()
	site.delay = 10 * time.Millisecond
	site.pages[testSeed] = menuPage("/s1", "/s2", "/s3", "/s4", "/s5")

	var articles []string
	for i := 0; i < 30; i++ {
		link := fmt.Sprintf("/a%02d", i)
		articles = append(articles, link)
		site.pages["https://site.test"+link] = articlePage(link)
	}
	for i := 1; i <= 5; i++ {
		site.pages[fmt.Sprintf("https://site.test/s%d", i)] = listingPage(articles...)
	}

	const workers = 3
	p := newTestPipeline(t, testProfile(), testConfig(workers), site)
	run, err := p.Run(context.Background(), testSeed)
	require.NoError(t, err)

	assert.Len(t, run.Records, 30)
	assert.LessOrEqual(t, int(site.maxInFlight.Load()), workers)
	assert.Equal(t, int32(0), site.inFlight.Load())
}

func TestPipeline_SectionConcurrencyOverride(t *testing.T) {
	site := overlappingSite()
	site.delay = 10 * time.Millisecond

	config := testConfig(3)
	config.SectionConcurrency = 1
	config.TerminalStage = models.TerminalArticles

	p := newTestPipeline(t, testProfile(), config, site)
	_, err := p.Run(context.Background(), testSeed)
	require.NoError(t, err)
	assert.Equal(t, int32(1), site.maxInFlight.Load())
}

func TestPipeline_TerminalStages(t *testing.T) {
	t.Run("sections", func(t *testing.T) {
		site := overlappingSite()
		config := testConfig(2)
		config.TerminalStage = models.TerminalSections

		run, err := newTestPipeline(t, testProfile(), config, site).Run(context.Background(), testSeed)
		require.NoError(t, err)
		assert.Equal(t, 3, run.Sections.Len())
		assert.Equal(t, 0, run.Articles.Len())
		assert.Empty(t, run.Records)
		assert.Equal(t, 1, site.totalCalls())
	})

	t.Run("articles", func(t *testing.T) {
		site := overlappingSite()
		config := testConfig(2)
		config.TerminalStage = models.TerminalArticles

		run, err := newTestPipeline(t, testProfile(), config, site).Run(context.Background(), testSeed)
		require.NoError(t, err)
		assert.Equal(t, 3, run.Articles.Len())
		assert.Empty(t, run.Records)
		assert.Equal(t, 0, site.callCount("https://site.test/a1"))
	})
}

func TestPipeline_NoMenuFetchesSeedOnce(t *testing.T) {
	site := newFakeSite()
	site.pages[testSeed] = listingPage("/a1", "/a2")
	site.pages["https://site.test/a1"] = articlePage("a1")
	site.pages["https://site.test/a2"] = articlePage("a2")

	profile := testProfile()
	profile.Sections = nil

	run, err := newTestPipeline(t, profile, testConfig(2), site).Run(context.Background(), testSeed)
	require.NoError(t, err)

	assert.Equal(t, []string{testSeed}, run.Sections.Members())
	assert.Equal(t, 1, site.callCount(testSeed))
	assert.Len(t, run.Records, 2)
}

func TestPipeline_ArticleRewrite(t *testing.T) {
	site := newFakeSite()
	site.pages[testSeed] = listingPage("/news/articleshow/1.cms", "/news/articleshow/2.cms")
	site.pages["https://site.test/news/articleshowprint/1.cms"] = articlePage("一")
	site.pages["https://site.test/news/articleshowprint/2.cms"] = articlePage("二")

	profile := testProfile()
	profile.Sections = nil
	profile.ArticleRewrite = &models.URLRewrite{From: "articleshow", To: "articleshowprint"}

	run, err := newTestPipeline(t, profile, testConfig(2), site).Run(context.Background(), testSeed)
	require.NoError(t, err)
	require.Len(t, run.Records, 2)

	for _, rec := range run.Records {
		assert.True(t, rec.Succeeded(), rec.Detail)
		// 记录保留发现时的链接
		assert.Contains(t, rec.Link, "/articleshow/")
	}
	assert.Equal(t, 0, site.callCount("https://site.test/news/articleshow/1.cms"))
}

func TestPipeline_Cancellation(t *testing.T) {
	site := newFakeSite()
	site.delay = 20 * time.Millisecond
	var articles []string
	for i := 0; i < 12; i++ {
		link := fmt.Sprintf("/a%02d", i)
		articles = append(articles, link)
		site.pages["https://site.test"+link] = articlePage(link)
	}
	site.pages[testSeed] = listingPage(articles...)

	profile := testProfile()
	profile.Sections = nil

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var once sync.Once
	p := newTestPipeline(t, profile, testConfig(2), site, WithRecordObserver(func(models.ArticleRecord) {
		once.Do(cancel)
	}))

	run, err := p.Run(ctx, testSeed)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, models.RunStatusCancelled, run.Status)

	// 每个链接仍然恰好一条记录
	require.Len(t, run.Records, run.Articles.Len())
	assert.GreaterOrEqual(t, run.Stats.Succeeded, 1)
	assert.Greater(t, run.Stats.FailedByKind[models.ErrorCancelled], 0)
	for _, rec := range run.Records {
		if !rec.Succeeded() {
			assert.Equal(t, models.ErrorCancelled, rec.Error)
		}
	}
}

func TestPipeline_StateObserver(t *testing.T) {
	var states []PipelineState
	p := newTestPipeline(t, testProfile(), testConfig(2), overlappingSite(), WithStateObserver(func(s PipelineState, _ *models.CrawlRun) {
		states = append(states, s)
	}))

	_, err := p.Run(context.Background(), testSeed)
	require.NoError(t, err)
	assert.Equal(t, []PipelineState{
		StateInit, StateDiscoverSections, StateDiscoverArticles, StateFetchArticles, StateDone,
	}, states)
}

func TestNewPipeline_Invalid(t *testing.T) {
	_, err := NewPipeline(testProfile(), models.CrawlConfig{}, newFakeSite())
	assert.Error(t, err, "workers为0应被拒绝")

	profile := testProfile()
	profile.Listing.Selector = "a[href"
	_, err = NewPipeline(profile, testConfig(1), newFakeSite())
	assert.Error(t, err, "非法选择器应被拒绝")

	_, err = NewPipeline(testProfile(), testConfig(1), nil)
	assert.Error(t, err)
}

// 真实HTTP获取器: 一篇文章超时,只产生一条FetchError记录
func TestPipeline_HTTPTimeout(t *testing.T) {
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, listingPage("/fast/1", "/fast/2", "/slow"))
	})
	mux.HandleFunc("/fast/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, articlePage(r.URL.Path))
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	profile := testProfile()
	profile.Sections = nil

	config := testConfig(2)
	config.RequestTimeout = 200 * time.Millisecond

	fetcher := crawlers.NewHTTPFetcher(config.RequestTimeout, nil)
	run, err := newTestPipeline(t, profile, config, fetcher).Run(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	require.Len(t, run.Records, 3)

	failed := run.FailedRecords()
	require.Len(t, failed, 1)
	assert.Equal(t, srv.URL+"/slow", failed[0].Link)
	assert.Equal(t, models.ErrorFetch, failed[0].Error)
	assert.Equal(t, 2, run.Stats.Succeeded)
}
