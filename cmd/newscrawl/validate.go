package main

import (
	"fmt"
	"net/url"

	"github.com/RecoveryAshes/NewsCrawl/internal/core"
	"github.com/RecoveryAshes/NewsCrawl/internal/models"
	"github.com/RecoveryAshes/NewsCrawl/internal/utils"
)

// seedOptions 命令行种子来源,最多指定一种
type seedOptions struct {
	url  string
	file string
	date string
	from string
	to   string
}

func (o seedOptions) empty() bool {
	return o.url == "" && o.file == "" && o.date == "" && o.from == "" && o.to == ""
}

// needsHelp 没有任何种子来源,也没有指定站点时只打印帮助
// 站点来自 --profile 或配置文件的 profiles.default
func needsHelp(o seedOptions, profileFlagSet bool, configDefault string) bool {
	return o.empty() && !profileFlagSet && configDefault == ""
}

// ValidateFlags 验证种子参数组合
func ValidateFlags(o seedOptions) error {
	sources := 0
	for _, set := range []bool{o.url != "", o.file != "", o.date != "", o.from != "" || o.to != ""} {
		if set {
			sources++
		}
	}
	if sources > 1 {
		return fmt.Errorf("--url、--url-file、--date 和 --from/--to 只能指定一种")
	}

	if (o.from == "") != (o.to == "") {
		return fmt.Errorf("--from 和 --to 必须同时指定")
	}

	if o.url != "" {
		normalized, err := NormalizeURL(o.url)
		if err != nil {
			return fmt.Errorf("无效的种子URL: %w", err)
		}
		if err := models.ValidateURL(normalized); err != nil {
			return fmt.Errorf("无效的种子URL: %w", err)
		}
	}
	return nil
}

// resolveSeeds 按参数生成种子列表,未指定时使用站点配置的默认种子
func resolveSeeds(o seedOptions, profile models.SiteProfile) ([]string, error) {
	switch {
	case o.url != "":
		normalized, err := NormalizeURL(o.url)
		if err != nil {
			return nil, err
		}
		return []string{normalized}, nil

	case o.file != "":
		return utils.ReadSeedFile(o.file)

	case o.date != "":
		d, err := core.ParseDate(o.date)
		if err != nil {
			return nil, err
		}
		return core.ArchiveSeeds(profile.ArchiveTemplate, d, d)

	case o.from != "":
		from, err := core.ParseDate(o.from)
		if err != nil {
			return nil, err
		}
		to, err := core.ParseDate(o.to)
		if err != nil {
			return nil, err
		}
		return core.ArchiveSeeds(profile.ArchiveTemplate, from, to)
	}

	if profile.Seed == "" {
		return nil, fmt.Errorf("站点 %s 没有默认种子,请使用 --url 指定", profile.Name)
	}
	return []string{profile.Seed}, nil
}

// NormalizeURL 规范化URL,缺少协议时默认https
func NormalizeURL(urlStr string) (string, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return "", err
	}

	if parsed.Scheme == "" {
		urlStr = "https://" + urlStr
		parsed, err = url.Parse(urlStr)
		if err != nil {
			return "", err
		}
	}

	return parsed.String(), nil
}
