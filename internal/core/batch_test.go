package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/RecoveryAshes/NewsCrawl/internal/crawlers"
	"github.com/RecoveryAshes/NewsCrawl/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memorySink 记录收到的运行
type memorySink struct {
	mu   sync.Mutex
	runs []*models.CrawlRun
	err  error
}

func (s *memorySink) Name() string { return "memory" }

func (s *memorySink) Write(_ context.Context, run *models.CrawlRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return s.err
}

func (s *memorySink) Close() error { return nil }

func archiveSite() *fakeSite {
	site := newFakeSite()
	site.pages["https://site.test/day1"] = listingPage("/d1/a", "/d1/b")
	site.pages["https://site.test/day2"] = listingPage("/d2/a")
	site.pages["https://site.test/d1/a"] = articlePage("d1a")
	site.pages["https://site.test/d1/b"] = articlePage("d1b")
	site.pages["https://site.test/d2/a"] = articlePage("d2a")
	site.errs["https://site.test/broken"] = &crawlers.FetchError{URL: "https://site.test/broken", StatusCode: 500}
	return site
}

func archivePipeline(t *testing.T, site *fakeSite) *Pipeline {
	profile := testProfile()
	profile.Sections = nil
	return newTestPipeline(t, profile, testConfig(2), site)
}

func TestBatchCrawler_ContinueOnError(t *testing.T) {
	sink := &memorySink{}
	bc := NewBatchCrawler(archivePipeline(t, archiveSite()), sink, BatchConfig{ContinueOnError: true})

	summary, err := bc.CrawlBatch(context.Background(), []string{
		"https://site.test/day1",
		"https://site.test/broken",
		"https://site.test/day2",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalSeeds)
	assert.Equal(t, 2, summary.SuccessCount)
	assert.Equal(t, 1, summary.FailCount)
	assert.Equal(t, 3, summary.TotalRecords)
	assert.ErrorIs(t, summary.Results[1].Error, ErrSeedFetch)

	// 种子失败的运行不写输出
	require.Len(t, sink.runs, 2)
	assert.Equal(t, "https://site.test/day1", sink.runs[0].Seed)
	assert.Equal(t, "https://site.test/day2", sink.runs[1].Seed)
}

func TestBatchCrawler_StopOnError(t *testing.T) {
	sink := &memorySink{}
	bc := NewBatchCrawler(archivePipeline(t, archiveSite()), sink, BatchConfig{ContinueOnError: false})

	summary, err := bc.CrawlBatch(context.Background(), []string{
		"https://site.test/broken",
		"https://site.test/day1",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSeedFetch)
	assert.Len(t, summary.Results, 1)
	assert.Empty(t, sink.runs)
}

func TestBatchCrawler_SinkErrorMarksFailure(t *testing.T) {
	sink := &memorySink{err: errors.New("磁盘已满")}
	bc := NewBatchCrawler(archivePipeline(t, archiveSite()), sink, BatchConfig{ContinueOnError: true})

	summary, err := bc.CrawlBatch(context.Background(), []string{"https://site.test/day1"})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.FailCount)
	assert.ErrorContains(t, summary.Results[0].Error, "磁盘已满")
}

func TestBatchCrawler_CancelDuringDelay(t *testing.T) {
	sink := &memorySink{}
	bc := NewBatchCrawler(archivePipeline(t, archiveSite()), sink, BatchConfig{
		Delay:           time.Minute,
		ContinueOnError: true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	summary, err := bc.CrawlBatch(ctx, []string{"https://site.test/day1", "https://site.test/day2"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Len(t, summary.Results, 1)
	assert.Len(t, sink.runs, 1)
}
