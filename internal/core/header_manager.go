package core

import (
	"net/http"
	"sync"

	"github.com/RecoveryAshes/NewsCrawl/internal/config"
	"github.com/RecoveryAshes/NewsCrawl/internal/crawlers"
	"github.com/RecoveryAshes/NewsCrawl/internal/models"
	"github.com/RecoveryAshes/NewsCrawl/internal/utils"
)

// HeaderManager 管理HTTP请求头部,实现 models.HeaderProvider
// 合并优先级: 默认 < 配置文件(全局 < 站点) < 命令行
// 首次调用 GetHeaders 时加载并验证,之后返回缓存结果的副本,可并发调用
type HeaderManager struct {
	configFile string
	site       string

	defaults http.Header
	config   http.Header
	cli      http.Header

	policy       *utils.HeaderPolicy
	configLoader *config.HeaderConfigLoader

	once    sync.Once
	merged  http.Header
	loadErr error
}

// NewHeaderManager 创建头部管理器
//   - configFile: 头部配置文件路径,为空时使用 configs/headers.yaml
//   - site: 站点配置名,用于读取 sites.<name> 下的覆盖项
//   - cliHeaders: 命令行 -H 传入的 "Name: Value" 列表
func NewHeaderManager(configFile, site string, cliHeaders []string) (*HeaderManager, error) {
	hm := &HeaderManager{
		configFile:   configFile,
		site:         site,
		defaults:     getDefaultHeaders(),
		config:       make(http.Header),
		cli:          make(http.Header),
		policy:       utils.NewHeaderPolicy(),
		configLoader: config.NewHeaderConfigLoader(configFile),
	}

	if len(cliHeaders) > 0 {
		parsed, err := models.CliHeaders(cliHeaders).Parse()
		if err != nil {
			return nil, err
		}
		hm.cli = parsed
	}

	return hm, nil
}

// getDefaultHeaders 系统默认头部
func getDefaultHeaders() http.Header {
	return http.Header{
		"User-Agent":      []string{crawlers.DefaultUserAgent},
		"Accept":          []string{"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
		"Accept-Language": []string{"en-IN,en;q=0.9"},
	}
}

// LoadConfig 加载配置文件中的全局和站点头部
func (hm *HeaderManager) LoadConfig() error {
	headerConfig, err := hm.configLoader.LoadConfig()
	if err != nil {
		utils.Errorf("加载HTTP头部配置失败: %v", err)
		return err
	}

	hm.config = make(http.Header)
	for name, value := range headerConfig.ForSite(hm.site) {
		hm.config.Set(name, value)
	}

	if len(hm.config) > 0 {
		utils.Debugf("成功加载%d个HTTP头部配置: %s", len(hm.config), hm.policy.Summary(hm.config))
	}
	return nil
}

// Validate 按 默认 -> 配置 -> 命令行 顺序验证
func (hm *HeaderManager) Validate() error {
	layers := []struct {
		source  string
		headers http.Header
	}{
		{"默认", hm.defaults},
		{"配置文件", hm.config},
		{"命令行", hm.cli},
	}
	for _, layer := range layers {
		if err := hm.policy.Check(layer.headers); err != nil {
			utils.Errorf("%s头部验证失败: %v", layer.source, err)
			return err
		}
	}
	utils.Debugf("所有HTTP头部验证通过")
	return nil
}

// GetMergedHeaders 按优先级合并头部
func (hm *HeaderManager) GetMergedHeaders() http.Header {
	result := make(http.Header)
	for _, layer := range []http.Header{hm.defaults, hm.config, hm.cli} {
		for name, values := range layer {
			result[name] = values
		}
	}
	return result
}

// GetSafeHeaders 脱敏后的头部,用于日志
func (hm *HeaderManager) GetSafeHeaders() map[string]string {
	return hm.policy.Mask(hm.GetMergedHeaders())
}

// GetHeaders 实现 HeaderProvider
func (hm *HeaderManager) GetHeaders() (http.Header, error) {
	hm.once.Do(func() {
		if err := hm.LoadConfig(); err != nil {
			hm.loadErr = err
			return
		}
		if err := hm.Validate(); err != nil {
			hm.loadErr = err
			return
		}
		hm.merged = hm.GetMergedHeaders()
		utils.Debugf("请求头 [%s]: %s", hm.site, hm.policy.Summary(hm.merged))
	})
	if hm.loadErr != nil {
		return nil, hm.loadErr
	}
	return hm.merged.Clone(), nil
}
