package crawlers

import (
	"bytes"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/NewsCrawl/internal/models"
	"github.com/RecoveryAshes/NewsCrawl/internal/utils"
	"github.com/andybalholm/cascadia"
	"github.com/mmcdole/gofeed"
)

// 不可抓取的链接协议
var skippedSchemes = []string{"javascript:", "mailto:", "tel:", "data:"}

// LinkExtractor 链接提取器
// 职责: 按规则从页面中提取去重后的绝对URL集合
// 纯函数: 同一页面内容多次提取结果相同
type LinkExtractor struct {
	rule models.LinkRule
}

// NewLinkExtractor 创建链接提取器,规则无效时返回错误
func NewLinkExtractor(rule models.LinkRule) (*LinkExtractor, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if rule.Kind == "" {
		rule.Kind = models.RuleCSS
	}
	if rule.Kind == models.RuleCSS {
		if _, err := cascadia.ParseGroup(rule.Selector); err != nil {
			return nil, fmt.Errorf("无效的CSS选择器 %q: %w", rule.Selector, err)
		}
		if rule.Scope != "" {
			if _, err := cascadia.ParseGroup(rule.Scope); err != nil {
				return nil, fmt.Errorf("无效的容器选择器 %q: %w", rule.Scope, err)
			}
		}
	}
	if rule.Attr == "" {
		rule.Attr = "href"
	}
	return &LinkExtractor{rule: rule}, nil
}

// Extract 从已获取的页面中提取链接
func (e *LinkExtractor) Extract(page *Page) ([]string, error) {
	return e.ExtractFrom(page.BaseURL(), page.Body)
}

// ExtractFrom 从原始内容中提取链接,相对链接基于 pageURL 解析
// 返回按字典序排序、无重复的绝对URL
// 内容残缺或无法解析时尽量提取,最差返回空集合,不返回错误
func (e *LinkExtractor) ExtractFrom(pageURL string, content []byte) ([]string, error) {
	links := make([]string, 0)

	base, err := url.Parse(pageURL)
	if err != nil {
		utils.Debugf("无效的页面URL %q: %v", pageURL, err)
		return links, nil
	}

	var raws []string
	switch e.rule.Kind {
	case models.RuleFeed:
		raws = feedLinks(pageURL, content)
	default:
		raws, base = e.cssLinks(base, content)
	}

	seen := make(map[string]struct{}, len(raws))
	for _, raw := range raws {
		if !e.accept(raw) {
			continue
		}
		abs, ok := e.resolve(base, raw)
		if !ok {
			continue
		}
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	}

	sort.Strings(links)
	return links, nil
}

// cssLinks 读取所有匹配元素的链接属性,并返回页面中 <base href> 修正后的基准URL
func (e *LinkExtractor) cssLinks(base *url.URL, content []byte) ([]string, *url.URL) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		utils.Debugf("解析HTML失败 [%s]: %v", base, err)
		return nil, base
	}

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = b
		}
	}

	root := doc.Selection
	if e.rule.Scope != "" {
		root = doc.Find(e.rule.Scope).Eq(e.rule.ScopeIdx)
	}

	var raws []string
	root.Find(e.rule.Selector).Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr(e.rule.Attr); ok {
			raws = append(raws, v)
		}
	})
	return raws, base
}

// feedLinks RSS/Atom 条目链接,非订阅源或内容截断时返回nil
func feedLinks(pageURL string, content []byte) []string {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(content))
	if err != nil {
		utils.Debugf("解析订阅源失败 [%s]: %v", pageURL, err)
		return nil
	}
	raws := make([]string, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Link != "" {
			raws = append(raws, item.Link)
			continue
		}
		for _, l := range item.Links {
			if l != "" {
				raws = append(raws, l)
				break
			}
		}
	}
	return raws
}

// accept 在原始属性值上应用过滤条件
func (e *LinkExtractor) accept(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return false
	}
	lower := strings.ToLower(raw)
	for _, scheme := range skippedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return false
		}
	}
	if e.rule.Prefix != "" && !strings.HasPrefix(raw, e.rule.Prefix) {
		return false
	}
	if e.rule.Contains != "" && !strings.Contains(raw, e.rule.Contains) {
		return false
	}
	for _, ex := range e.rule.Exclude {
		if ex != "" && strings.Contains(raw, ex) {
			return false
		}
	}
	return true
}

// resolve 解析为去掉片段的绝对http(s) URL
func (e *LinkExtractor) resolve(base *url.URL, raw string) (string, bool) {
	u, err := base.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if u.Host == "" {
		return "", false
	}
	if e.rule.SameHost && !strings.EqualFold(u.Hostname(), base.Hostname()) {
		return "", false
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), true
}
