package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RecoveryAshes/NewsCrawl/internal/models"
	"github.com/spf13/viper"
)

// Config 应用程序配置
type Config struct {
	Crawl    models.CrawlConfig `mapstructure:"crawl"`
	Logging  LoggingConfig      `mapstructure:"logging"`
	Output   OutputConfig       `mapstructure:"output"`
	Profiles ProfilesConfig     `mapstructure:"profiles"`
	Batch    BatchConfig        `mapstructure:"batch"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	BaseDir    string   `mapstructure:"base_dir"`
	Formats    []string `mapstructure:"formats"`     // xlsx, sqlite, json
	SQLitePath string   `mapstructure:"sqlite_path"` // 为空时使用 base_dir/articles.db
}

// ProfilesConfig 站点配置
type ProfilesConfig struct {
	File    string `mapstructure:"file"`    // 额外的站点配置文件
	Default string `mapstructure:"default"` // 未指定 --profile 时使用
}

// BatchConfig 批量模式配置
type BatchConfig struct {
	Delay           time.Duration `mapstructure:"delay"`
	ContinueOnError bool          `mapstructure:"continue_on_error"`
}

// LoadConfig 加载配置文件,文件不存在时使用默认值
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		v.AddConfigPath("./configs")
		v.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".newscrawl"))
		}
	}

	setDefaults(v)

	// NEWSCRAWL_CRAWL_WORKERS=4 覆盖 crawl.workers
	v.SetEnvPrefix("NEWSCRAWL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, &models.ConfigError{FilePath: configPath, Cause: fmt.Errorf("读取配置文件失败: %w", err)}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, &models.ConfigError{FilePath: v.ConfigFileUsed(), Cause: fmt.Errorf("解析配置文件失败: %w", err)}
	}

	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 爬取配置默认值
	v.SetDefault("crawl.workers", 2)
	v.SetDefault("crawl.section_concurrency", 0)
	v.SetDefault("crawl.request_timeout", 30*time.Second)
	v.SetDefault("crawl.engine", string(models.EngineHTTP))
	v.SetDefault("crawl.terminal_stage", string(models.TerminalRecords))
	v.SetDefault("crawl.max_retries", 0)
	v.SetDefault("crawl.headless", true)
	v.SetDefault("crawl.max_pages_limit", 8)

	// 日志配置默认值
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	// 输出配置默认值
	v.SetDefault("output.base_dir", "output")
	v.SetDefault("output.formats", []string{"xlsx", "json"})
	v.SetDefault("output.sqlite_path", "")

	// 站点配置默认值
	v.SetDefault("profiles.file", "")
	v.SetDefault("profiles.default", "")

	// 批量模式默认值
	v.SetDefault("batch.delay", 0)
	v.SetDefault("batch.continue_on_error", true)
}

// GetCrawlConfig 从配置中提取爬取配置
func (c *Config) GetCrawlConfig() models.CrawlConfig {
	return c.Crawl
}

// CLIOverrides 命令行参数,零值表示未指定
type CLIOverrides struct {
	Workers       int
	Timeout       time.Duration
	Engine        string
	TerminalStage string
	MaxRetries    int // <0 表示未指定
	Headless      *bool
	OutputDir     string
	Formats       []string
}

// MergeCLIFlags 合并命令行参数,命令行优先于配置文件
func (c *Config) MergeCLIFlags(o CLIOverrides) {
	if o.Workers > 0 {
		c.Crawl.Workers = o.Workers
	}
	if o.Timeout > 0 {
		c.Crawl.RequestTimeout = o.Timeout
	}
	if o.Engine != "" {
		c.Crawl.Engine = models.FetchEngine(o.Engine)
	}
	if o.TerminalStage != "" {
		c.Crawl.TerminalStage = models.TerminalStage(o.TerminalStage)
	}
	if o.MaxRetries >= 0 {
		c.Crawl.MaxRetries = o.MaxRetries
	}
	if o.Headless != nil {
		c.Crawl.Headless = *o.Headless
	}
	if o.OutputDir != "" {
		c.Output.BaseDir = o.OutputDir
	}
	if len(o.Formats) > 0 {
		c.Output.Formats = o.Formats
	}
}
