package utils

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/RecoveryAshes/NewsCrawl/internal/models"
)

// MaxHeaderValueLength 单个头部值的最大字节数
const MaxHeaderValueLength = 8192

var (
	// ForbiddenHeaders 由获取器管理的头部,不允许配置
	// Accept-Encoding 决定了响应体的解压方式,必须和获取器一致
	ForbiddenHeaders = []string{"Host", "Content-Length", "Transfer-Encoding", "Connection", "Accept-Encoding"}

	// SensitiveKeywords 名称含这些关键字的头部在日志中遮盖
	SensitiveKeywords = []string{"authorization", "token", "key", "secret", "password", "credential", "cookie"}

	headerNamePattern  = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
	headerValuePattern = regexp.MustCompile(`^[\x20-\x7E\t]*$`)
)

// HeaderPolicy 站点请求头规则
// 校验用户配置的头部 (RFC 7230 名称、可打印ASCII值),并在日志输出时遮盖凭据
type HeaderPolicy struct {
	forbidden map[string]bool
	sensitive []string
	maxValue  int
}

// NewHeaderPolicy 创建默认规则
func NewHeaderPolicy() *HeaderPolicy {
	forbidden := make(map[string]bool, len(ForbiddenHeaders))
	for _, h := range ForbiddenHeaders {
		forbidden[strings.ToLower(h)] = true
	}
	return &HeaderPolicy{
		forbidden: forbidden,
		sensitive: SensitiveKeywords,
		maxValue:  MaxHeaderValueLength,
	}
}

// CheckHeader 校验单个头部
func (p *HeaderPolicy) CheckHeader(name, value string) error {
	switch {
	case p.forbidden[strings.ToLower(name)]:
		return &models.ValidationError{
			Field:      "name",
			HeaderName: name,
			Reason:     "此头部由获取器管理,不允许自定义",
			Suggestion: fmt.Sprintf("移除 '%s'", name),
		}
	case name == "":
		return &models.ValidationError{Field: "name", Reason: "头部名称不能为空"}
	case !headerNamePattern.MatchString(name):
		return &models.ValidationError{
			Field:      "name",
			HeaderName: name,
			Reason:     "头部名称只能包含字母、数字和连字符",
			Suggestion: "例如 'Referer', 'X-Forwarded-For'",
		}
	case len(value) > p.maxValue:
		return &models.ValidationError{
			Field:      "value",
			HeaderName: name,
			Reason:     fmt.Sprintf("头部值过长: %d 字节 (最大 %d)", len(value), p.maxValue),
		}
	case !headerValuePattern.MatchString(value):
		return &models.ValidationError{
			Field:      "value",
			HeaderName: name,
			Reason:     "头部值包含控制字符或非ASCII字符",
		}
	}
	return nil
}

// Check 按名称顺序校验全部头部,返回第一个错误
func (p *HeaderPolicy) Check(headers http.Header) error {
	for _, name := range sortedNames(headers) {
		for _, value := range headers[name] {
			if err := p.CheckHeader(name, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// IsSensitive 名称是否包含敏感关键字
func (p *HeaderPolicy) IsSensitive(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range p.sensitive {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// MaskValue 遮盖敏感头部的值
// Bearer 只保留前缀;较长的值保留首尾4个字符;其余完全隐藏
func (p *HeaderPolicy) MaskValue(name, value string) string {
	if !p.IsSensitive(name) {
		return value
	}
	if strings.HasPrefix(value, "Bearer ") {
		return "Bearer ***"
	}
	if len(value) > 8 {
		return value[:4] + "***" + value[len(value)-4:]
	}
	return "***"
}

// Mask 遮盖后的头部,每个名称只取第一个值
func (p *HeaderPolicy) Mask(headers http.Header) map[string]string {
	result := make(map[string]string, len(headers))
	for name, values := range headers {
		if len(values) == 0 {
			continue
		}
		result[name] = p.MaskValue(name, values[0])
	}
	return result
}

// Summary 遮盖后按名称排序的单行描述,用于日志
func (p *HeaderPolicy) Summary(headers http.Header) string {
	masked := p.Mask(headers)
	parts := make([]string, 0, len(masked))
	for _, name := range sortedNames(headers) {
		if v, ok := masked[name]; ok {
			parts = append(parts, name+": "+v)
		}
	}
	return strings.Join(parts, ", ")
}

func sortedNames(headers http.Header) []string {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
