package models

import (
	"fmt"
	"net/url"
)

// ValidateURL 种子和文章链接必须是带主机名的 http(s) 绝对URL
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("无效的URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL必须是http或https协议: %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL缺少主机名: %q", raw)
	}
	return nil
}
