package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RecoveryAshes/NewsCrawl/internal/models"
	"github.com/RecoveryAshes/NewsCrawl/internal/sinks"
	"github.com/RecoveryAshes/NewsCrawl/internal/utils"
)

// BatchCrawler 批量爬取器,对多个种子依次执行同一条流水线
type BatchCrawler struct {
	pipeline      *Pipeline
	sink          sinks.Sink
	batchDelay    time.Duration
	continueOnErr bool
}

// BatchResult 单个种子的爬取结果
type BatchResult struct {
	Seed        string
	Success     bool
	Error       error
	Run         *models.CrawlRun
	ProcessedAt time.Time
	Duration    float64
}

// BatchSummary 批量爬取摘要
type BatchSummary struct {
	TotalSeeds    int
	SuccessCount  int
	FailCount     int
	TotalArticles int
	TotalRecords  int
	FailedRecords int
	TotalDuration float64
	Results       []BatchResult
}

// NewBatchCrawler 创建批量爬取器, sink 为nil时不输出
func NewBatchCrawler(pipeline *Pipeline, sink sinks.Sink, batch BatchConfig) *BatchCrawler {
	return &BatchCrawler{
		pipeline:      pipeline,
		sink:          sink,
		batchDelay:    batch.Delay,
		continueOnErr: batch.ContinueOnError,
	}
}

// CrawlBatch 依次爬取种子列表
// ctx 取消时当前种子的部分结果仍会写入输出,随后停止并返回 ctx 错误
func (bc *BatchCrawler) CrawlBatch(ctx context.Context, seeds []string) (*BatchSummary, error) {
	utils.Infof("🚀 开始批量爬取: %d个种子", len(seeds))

	summary := &BatchSummary{
		TotalSeeds: len(seeds),
		Results:    make([]BatchResult, 0, len(seeds)),
	}
	startTime := time.Now()

	var batchErr error
	for i, seed := range seeds {
		utils.Infof("==================== [%d/%d] ====================", i+1, len(seeds))
		utils.Infof("种子URL: %s", seed)

		result := bc.crawlSingleSeed(ctx, seed)
		summary.Results = append(summary.Results, result)

		if result.Run != nil {
			summary.TotalArticles += result.Run.Stats.Articles
			summary.TotalRecords += result.Run.Stats.Attempted
			summary.FailedRecords += result.Run.Stats.Failed
		}

		if result.Success {
			summary.SuccessCount++
		} else {
			summary.FailCount++
			utils.Errorf("❌ 爬取失败 [%s]: %v", seed, result.Error)
		}

		if ctx.Err() != nil {
			utils.Warn("批量爬取被取消")
			batchErr = ctx.Err()
			break
		}
		if !result.Success && !bc.continueOnErr {
			utils.Warn("批量爬取中止 (continue_on_error=false)")
			batchErr = result.Error
			break
		}

		if i < len(seeds)-1 && bc.batchDelay > 0 {
			utils.Debugf("等待 %s 后处理下一个种子...", bc.batchDelay)
			select {
			case <-ctx.Done():
				batchErr = ctx.Err()
			case <-time.After(bc.batchDelay):
			}
			if batchErr != nil {
				break
			}
		}
	}

	summary.TotalDuration = time.Since(startTime).Seconds()
	bc.printSummary(summary)
	return summary, batchErr
}

// crawlSingleSeed 爬取单个种子并写入输出
func (bc *BatchCrawler) crawlSingleSeed(ctx context.Context, seed string) BatchResult {
	result := BatchResult{
		Seed:        seed,
		ProcessedAt: time.Now(),
	}
	startTime := time.Now()

	run, err := bc.pipeline.Run(ctx, seed)
	result.Run = run
	result.Error = err
	result.Success = err == nil

	// 种子失败时没有任何记录,不写输出
	if run != nil && bc.sink != nil && !errors.Is(err, ErrSeedFetch) {
		// 取消后仍要落盘部分结果
		if werr := bc.sink.Write(context.WithoutCancel(ctx), run); werr != nil {
			result.Success = false
			result.Error = errors.Join(err, fmt.Errorf("写入输出失败: %w", werr))
		}
	}

	result.Duration = time.Since(startTime).Seconds()
	return result
}

// printSummary 打印批量爬取摘要
func (bc *BatchCrawler) printSummary(summary *BatchSummary) {
	utils.Info("==================================================")
	utils.Info("📊 批量爬取摘要")
	utils.Info("==================================================")
	utils.Infof("总种子数: %d", summary.TotalSeeds)
	utils.Infof("✅ 成功: %d", summary.SuccessCount)
	utils.Infof("❌ 失败: %d", summary.FailCount)
	utils.Infof("📰 文章链接: %d", summary.TotalArticles)
	utils.Infof("📝 记录: %d (失败 %d)", summary.TotalRecords, summary.FailedRecords)
	utils.Infof("⏱️  总耗时: %.2f秒", summary.TotalDuration)
	utils.Info("==================================================")

	if summary.FailCount > 0 {
		utils.Warn("失败的种子:")
		for _, result := range summary.Results {
			if !result.Success {
				utils.Warnf("  - %s: %v", result.Seed, result.Error)
			}
		}
	}
}
