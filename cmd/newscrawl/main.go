package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RecoveryAshes/NewsCrawl/internal/config"
	"github.com/RecoveryAshes/NewsCrawl/internal/core"
	"github.com/RecoveryAshes/NewsCrawl/internal/models"
	"github.com/RecoveryAshes/NewsCrawl/internal/sinks"
	"github.com/RecoveryAshes/NewsCrawl/internal/utils"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile   string
	verbose      bool
	logLevel     string
	profilesFile string

	// HTTP头部参数
	headers        []string
	headersFile    string
	validateConfig bool

	// 种子参数
	targetURL string
	urlFile   string
	date      string
	fromDate  string
	toDate    string

	// 爬取参数
	profileName   string
	workers       int
	timeout       time.Duration
	engine        string
	terminalStage string
	maxRetries    int
	headless      bool
	outputDir     string
	formats       []string

	// 批量处理参数
	batchDelay      time.Duration
	continueOnError bool
)

// appConfig 在 PersistentPreRunE 中加载
var appConfig *core.Config

var rootCmd = &cobra.Command{
	Use:   "newscrawl",
	Short: "新闻站点三阶段爬取工具",
	Long: `NewsCrawl - 新闻站点爬取工具

从种子页出发: 导航菜单 -> 栏目列表 -> 文章详情,输出每篇文章的
链接、标题、发布时间和正文,失败的文章也会带错误类型输出。

示例:
  # 使用内置站点配置的默认种子
  newscrawl --profile hansindia

  # 指定种子URL和并发数
  newscrawl -p hansindia -u https://www.thehansindia.com/ --workers 4

  # 按日期区间爬取归档页
  newscrawl -p toi-archive --from 2022-01-30 --to 2022-01-31 --format xlsx,sqlite

  # 只发现文章链接,不抓取详情
  newscrawl -p hansindia --terminal articles --format json

  # 自定义HTTP头部
  newscrawl -p hansindia -H "User-Agent: MyBot/1.0" -H "Cookie: consent=1"

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		appConfig = cfg

		logConfig := utils.LogConfig{
			Level:        cfg.Logging.Level,
			LogDir:       cfg.Logging.LogDir,
			MaxSize:      cfg.Logging.Rotation.MaxSize,
			MaxBackups:   cfg.Logging.Rotation.MaxBackups,
			MaxAge:       cfg.Logging.Rotation.MaxAge,
			Compress:     cfg.Logging.Rotation.Compress,
			ConsoleLevel: zerolog.InfoLevel,
		}
		if logLevel != "" {
			logConfig.Level = logLevel
		}
		if verbose {
			logConfig.ConsoleLevel = zerolog.TraceLevel
		}

		if err := utils.InitLogger(logConfig); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}
		if verbose {
			utils.Info("详细模式已启用")
		}
		return nil
	},
	RunE: runCrawl,
}

func runCrawl(cmd *cobra.Command, args []string) error {
	seedOpts := seedOptions{url: targetURL, file: urlFile, date: date, from: fromDate, to: toDate}
	if !validateConfig && needsHelp(seedOpts, cmd.Flags().Changed("profile"), appConfig.Profiles.Default) {
		return cmd.Help()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	profiles, err := config.LoadProfiles(firstNonEmpty(profilesFile, appConfig.Profiles.File))
	if err != nil {
		return fmt.Errorf("加载站点配置失败: %w", err)
	}
	profile, err := profiles.Get(firstNonEmpty(profileName, appConfig.Profiles.Default, config.DefaultProfile))
	if err != nil {
		return err
	}

	headerManager, err := core.NewHeaderManager(headersFile, profile.Name, headers)
	if err != nil {
		return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
	}

	if validateConfig {
		return printValidatedHeaders(headerManager)
	}

	if err := ValidateFlags(seedOpts); err != nil {
		return err
	}
	seeds, err := resolveSeeds(seedOpts, profile)
	if err != nil {
		return err
	}

	appConfig.MergeCLIFlags(collectOverrides(cmd))
	crawlConfig := appConfig.GetCrawlConfig()
	if err := crawlConfig.Validate(); err != nil {
		return err
	}

	fetcher, closeFetcher, err := core.NewFetcher(crawlConfig, headerManager)
	if err != nil {
		return fmt.Errorf("创建页面获取器失败: %w", err)
	}
	defer func() {
		if err := closeFetcher(); err != nil {
			utils.Warnf("关闭页面获取器失败: %v", err)
		}
	}()

	sink, err := sinks.New(appConfig.Output.Formats, sinks.Options{
		BaseDir:    appConfig.Output.BaseDir,
		SQLitePath: appConfig.Output.SQLitePath,
		Config:     crawlConfig,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			utils.Warnf("关闭输出失败: %v", err)
		}
	}()

	progress := newRunProgress()
	pipeline, err := core.NewPipeline(profile, crawlConfig, fetcher,
		core.WithStateObserver(progress.onState),
		core.WithRecordObserver(progress.onRecord),
	)
	if err != nil {
		return err
	}

	utils.Infof("站点: %s, 种子: %d 个, 引擎: %s, worker: %d, 输出: %s -> %s",
		profile.Name, len(seeds), crawlConfig.Engine, crawlConfig.Workers, sink.Name(), appConfig.Output.BaseDir)

	batchCrawler := core.NewBatchCrawler(pipeline, sink, appConfig.Batch)
	summary, err := batchCrawler.CrawlBatch(ctx, seeds)

	if len(seeds) == 1 && len(summary.Results) == 1 && summary.Results[0].Run != nil {
		printRunStats(summary.Results[0].Run)
	}

	switch {
	case errors.Is(err, context.Canceled):
		utils.Warn("爬取被中断,已保存部分结果")
		return err
	case err != nil:
		return fmt.Errorf("爬取失败: %w", err)
	case len(seeds) == 1 && !summary.Results[0].Success:
		return summary.Results[0].Error
	}

	utils.Info("✨ 爬取任务完成!")
	return nil
}

// runProgress 第三阶段进度条
type runProgress struct {
	bar *progressbar.ProgressBar
}

func newRunProgress() *runProgress {
	return &runProgress{}
}

func (p *runProgress) onState(state core.PipelineState, run *models.CrawlRun) {
	switch state {
	case core.StateFetchArticles:
		p.bar = utils.NewProgressBar(run.Articles.Len(), "抓取文章")
	case core.StateDone:
		if p.bar != nil {
			_ = p.bar.Finish()
			fmt.Fprintln(os.Stderr)
			p.bar = nil
		}
	}
}

func (p *runProgress) onRecord(models.ArticleRecord) {
	if p.bar != nil {
		_ = p.bar.Add(1)
	}
}

// collectOverrides 只收集用户显式指定的参数
func collectOverrides(cmd *cobra.Command) core.CLIOverrides {
	flags := cmd.Flags()
	o := core.CLIOverrides{MaxRetries: -1}

	if flags.Changed("workers") {
		o.Workers = workers
	}
	if flags.Changed("timeout") {
		o.Timeout = timeout
	}
	if flags.Changed("engine") {
		o.Engine = engine
	}
	if flags.Changed("terminal") {
		o.TerminalStage = terminalStage
	}
	if flags.Changed("retries") {
		o.MaxRetries = maxRetries
	}
	if flags.Changed("headless") {
		o.Headless = &headless
	}
	if flags.Changed("output") {
		o.OutputDir = outputDir
	}
	if flags.Changed("format") {
		o.Formats = formats
	}
	if flags.Changed("batch-delay") {
		appConfig.Batch.Delay = batchDelay
	}
	if flags.Changed("continue-on-error") {
		appConfig.Batch.ContinueOnError = continueOnError
	}
	return o
}

func printValidatedHeaders(hm *core.HeaderManager) error {
	utils.Info("🔍 验证HTTP头部配置...")
	if err := hm.LoadConfig(); err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if err := hm.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}

	safeHeaders := hm.GetSafeHeaders()
	utils.Info("✅ 配置验证通过!")
	utils.Infof("当前有效的HTTP头部 (%d个):", len(safeHeaders))
	for name, value := range safeHeaders {
		utils.Infof("  %s: %s", name, value)
	}
	return nil
}

func printRunStats(run *models.CrawlRun) {
	stats := run.Stats
	fmt.Println("==================================================")
	fmt.Println("📊 爬取统计")
	fmt.Println("==================================================")
	fmt.Printf("🗂️  栏目链接: %d\n", stats.Sections)
	fmt.Printf("📰 文章链接: %d\n", stats.Articles)
	fmt.Printf("✅ 成功: %d\n", stats.Succeeded)
	fmt.Printf("❌ 失败: %d\n", stats.Failed)
	for kind, n := range stats.FailedByKind {
		fmt.Printf("    %s: %d\n", kind, n)
	}
	fmt.Printf("⏱️  总耗时: %.2f秒\n", stats.Duration)
	fmt.Println("==================================================")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("NewsCrawl %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "列出可用的站点配置",
	RunE: func(cmd *cobra.Command, args []string) error {
		profiles, err := config.LoadProfiles(firstNonEmpty(profilesFile, appConfig.Profiles.File))
		if err != nil {
			return err
		}
		for _, name := range profiles.Names() {
			p, _ := profiles.Get(name)
			kind := "菜单"
			if p.Sections == nil {
				kind = "单页"
			}
			if p.ArchiveTemplate != "" {
				kind += ",归档"
			}
			fmt.Printf("%-16s [%s] %s\n", name, kind, p.Seed)
		}
		return nil
	},
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&profilesFile, "profiles-file", "", "额外的站点配置文件")

	// HTTP头部参数
	rootCmd.Flags().StringSliceVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	rootCmd.Flags().StringVar(&headersFile, "headers-file", "", "HTTP头部配置文件 (默认: configs/headers.yaml)")
	rootCmd.Flags().BoolVar(&validateConfig, "validate-config", false, "验证HTTP头部配置后退出")

	// 种子参数
	rootCmd.Flags().StringVarP(&targetURL, "url", "u", "", "种子URL")
	rootCmd.Flags().StringVarP(&urlFile, "url-file", "f", "", "种子URL列表文件,每行一个")
	rootCmd.Flags().StringVar(&date, "date", "", "按归档模板爬取某一天 (YYYY-MM-DD)")
	rootCmd.Flags().StringVar(&fromDate, "from", "", "归档区间开始日期 (YYYY-MM-DD)")
	rootCmd.Flags().StringVar(&toDate, "to", "", "归档区间结束日期 (YYYY-MM-DD,含)")

	// 爬取参数
	rootCmd.Flags().StringVarP(&profileName, "profile", "p", "", "站点配置名 (默认: profiles.default)")
	rootCmd.Flags().IntVarP(&workers, "workers", "w", 2, "文章抓取并发数 (1-100)")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "单个请求超时")
	rootCmd.Flags().StringVarP(&engine, "engine", "e", "http", "页面获取引擎 (http|colly|dynamic)")
	rootCmd.Flags().StringVar(&terminalStage, "terminal", "records", "结束阶段 (sections|articles|records)")
	rootCmd.Flags().IntVar(&maxRetries, "retries", 0, "瞬时错误重试次数 (0-10)")
	rootCmd.Flags().BoolVar(&headless, "headless", true, "dynamic引擎使用无头浏览器")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "output", "输出目录")
	rootCmd.Flags().StringSliceVar(&formats, "format", []string{"xlsx", "json"}, "输出格式 (xlsx,sqlite,json)")

	// 批量处理参数
	rootCmd.Flags().DurationVar(&batchDelay, "batch-delay", 0, "多个种子之间的延迟")
	rootCmd.Flags().BoolVar(&continueOnError, "continue-on-error", true, "某个种子失败时继续处理后续种子")

	rootCmd.AddCommand(versionCmd, profilesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
