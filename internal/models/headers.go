package models

import (
	"fmt"
	"net/http"
	"strings"
)

// HeaderConfig headers.yaml 配置文件结构
type HeaderConfig struct {
	// Headers 所有站点共用的请求头
	Headers map[string]string `mapstructure:"headers" yaml:"headers"`

	// Sites 按站点配置名覆盖的请求头 (如 toi-archive 需要 Referer)
	Sites map[string]map[string]string `mapstructure:"sites" yaml:"sites"`
}

// ForSite 返回指定站点生效的头部,站点级覆盖全局
func (hc *HeaderConfig) ForSite(site string) map[string]string {
	merged := make(map[string]string, len(hc.Headers))
	for k, v := range hc.Headers {
		merged[k] = v
	}
	// viper 读取时键名统一为小写
	for k, v := range hc.Sites[strings.ToLower(site)] {
		merged[k] = v
	}
	return merged
}

// CliHeaders 命令行 -H 传入的头部,格式 "Name: Value"
type CliHeaders []string

// Parse 解析为 http.Header
func (ch CliHeaders) Parse() (http.Header, error) {
	result := make(http.Header)
	for i, s := range ch {
		name, value, err := parseHeaderString(s)
		if err != nil {
			return nil, fmt.Errorf("参数 --header 第%d项格式错误: %w", i+1, err)
		}
		result.Set(name, value)
	}
	return result, nil
}

func parseHeaderString(s string) (name, value string, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("格式错误: 缺少冒号分隔符,应为 'Name: Value'")
	}

	name = strings.TrimSpace(parts[0])
	value = strings.TrimSpace(parts[1])

	if name == "" {
		return "", "", fmt.Errorf("头部名称不能为空")
	}

	return name, value, nil
}

// HeaderProvider 请求头提供者
// GetHeaders 返回按 默认 < 配置 < 命令行 合并后的头部
type HeaderProvider interface {
	GetHeaders() (http.Header, error)
}

// ValidationError 头部验证错误
type ValidationError struct {
	Field      string // "name" 或 "value"
	HeaderName string
	Reason     string
	Suggestion string // 可选
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("头部验证失败 [%s]: %s", e.HeaderName, e.Reason)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (建议: %s)", e.Suggestion)
	}
	return msg
}

// ConfigError 配置文件解析错误
type ConfigError struct {
	FilePath string
	Cause    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("配置文件错误 [%s]: %v", e.FilePath, e.Cause)
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}
