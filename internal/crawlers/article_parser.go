package crawlers

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // 保证 Asia/Kolkata 等时区在精简镜像中可用

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/NewsCrawl/internal/models"
	"github.com/andybalholm/cascadia"
	"github.com/araddon/dateparse"
)

// ErrExtraction 文章页缺少必需字段或日期无法解析
var ErrExtraction = errors.New("文章提取失败")

// ExtractionError 提取失败详情
type ExtractionError struct {
	URL    string
	Field  string // title, date, body
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("文章提取失败 [%s] 字段 %s: %s", e.URL, e.Field, e.Reason)
}

func (e *ExtractionError) Unwrap() error {
	return ErrExtraction
}

// Article 从文章页提取出的内容
type Article struct {
	Title       string
	PublishedAt time.Time
	Body        string
}

// ArticleParser 文章解析器
// 纯函数: 同一页面内容多次解析结果相同
type ArticleParser struct {
	rules    models.ArticleRules
	location *time.Location
}

// NewArticleParser 创建文章解析器
func NewArticleParser(rules models.ArticleRules) (*ArticleParser, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	for field, rule := range map[string]models.FieldRule{
		"title": rules.Title,
		"date":  rules.Date,
		"body":  rules.Body,
	} {
		if _, err := cascadia.ParseGroup(rule.Selector); err != nil {
			return nil, fmt.Errorf("字段 %s 的CSS选择器无效 %q: %w", field, rule.Selector, err)
		}
	}

	loc := time.UTC
	if rules.Timezone != "" {
		l, err := time.LoadLocation(rules.Timezone)
		if err != nil {
			return nil, fmt.Errorf("无效的时区 %q: %w", rules.Timezone, err)
		}
		loc = l
	}

	return &ArticleParser{rules: rules, location: loc}, nil
}

// Parse 解析已获取的文章页
func (p *ArticleParser) Parse(page *Page) (Article, error) {
	return p.ParseFrom(page.URL, page.Body)
}

// ParseFrom 解析原始内容, pageURL 仅用于错误信息
func (p *ArticleParser) ParseFrom(pageURL string, content []byte) (Article, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return Article{}, &ExtractionError{URL: pageURL, Field: "html", Reason: err.Error()}
	}

	title := extractField(doc, p.rules.Title)
	if title == "" {
		return Article{}, &ExtractionError{URL: pageURL, Field: "title", Reason: "未找到标题"}
	}

	rawDate := extractField(doc, p.rules.Date)
	if rawDate == "" {
		return Article{}, &ExtractionError{URL: pageURL, Field: "date", Reason: "未找到日期"}
	}
	published, err := p.parseDate(rawDate)
	if err != nil {
		return Article{}, &ExtractionError{URL: pageURL, Field: "date", Reason: err.Error()}
	}

	body := extractField(doc, p.rules.Body)
	if body == "" {
		return Article{}, &ExtractionError{URL: pageURL, Field: "body", Reason: "未找到正文"}
	}

	return Article{Title: title, PublishedAt: published, Body: body}, nil
}

// parseDate 依次尝试配置的格式,最后交给dateparse
func (p *ArticleParser) parseDate(value string) (time.Time, error) {
	for _, layout := range p.rules.DateLayouts {
		if t, err := time.ParseInLocation(layout, value, p.location); err == nil {
			return t, nil
		}
	}
	t, err := dateparse.ParseIn(value, p.location)
	if err != nil {
		return time.Time{}, fmt.Errorf("无法解析日期 %q", value)
	}
	return t, nil
}

// extractField 按字段规则取值,未匹配时返回空串
func extractField(doc *goquery.Document, rule models.FieldRule) string {
	sel := doc.Find(rule.Selector)
	if sel.Length() == 0 {
		return ""
	}

	var text string
	if rule.Join != "" {
		parts := make([]string, 0, sel.Length())
		sel.Each(func(_ int, s *goquery.Selection) {
			if v := selectionValue(s, rule); v != "" {
				parts = append(parts, v)
			}
		})
		text = strings.Join(parts, rule.Join)
	} else {
		text = selectionValue(sel.First(), rule)
	}

	if rule.Split != "" {
		text = pickPart(strings.Split(text, rule.Split), rule.Part)
	}
	return strings.TrimSpace(text)
}

// selectionValue 元素属性或文本,空白折叠为单个空格
func selectionValue(s *goquery.Selection, rule models.FieldRule) string {
	var v string
	switch {
	case rule.Attr != "":
		v, _ = s.Attr(rule.Attr)
	case rule.OwnText:
		v = ownText(s)
	default:
		v = s.Text()
	}
	return strings.Join(strings.Fields(v), " ")
}

// ownText 直接子文本节点,如 <h1>标题<small>副标题</small></h1> 只得到 "标题"
func ownText(s *goquery.Selection) string {
	var b strings.Builder
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			b.WriteString(c.Text())
			b.WriteByte(' ')
		}
	})
	return b.String()
}

// pickPart 取切分后的第 idx 段,负数从末尾计
func pickPart(parts []string, idx int) string {
	if idx < 0 {
		idx += len(parts)
	}
	if idx < 0 || idx >= len(parts) {
		return ""
	}
	return strings.TrimSpace(parts[idx])
}
