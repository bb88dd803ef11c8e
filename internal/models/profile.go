package models

import (
	"fmt"
	"strings"
)

// RuleKind 链接规则类型
type RuleKind string

const (
	RuleCSS  RuleKind = "css"  // CSS选择器匹配锚点元素
	RuleFeed RuleKind = "feed" // RSS/Atom订阅源中的条目链接
)

// LinkRule 链接提取规则
// 先在原始属性值上应用 Prefix/Contains/Exclude 过滤,再解析为绝对URL
type LinkRule struct {
	Kind     RuleKind `yaml:"kind" mapstructure:"kind"`               // 规则类型 (默认:css)
	Selector string   `yaml:"selector" mapstructure:"selector"`       // CSS选择器
	Scope    string   `yaml:"scope" mapstructure:"scope"`             // 先定位容器元素 (可选)
	ScopeIdx int      `yaml:"scope_index" mapstructure:"scope_index"` // 取第几个容器,从0计
	Attr     string   `yaml:"attr" mapstructure:"attr"`               // 链接属性 (默认:href)
	Prefix   string   `yaml:"prefix" mapstructure:"prefix"`           // 原始值必须以此开头
	Contains string   `yaml:"contains" mapstructure:"contains"`       // 原始值必须包含此子串
	Exclude  []string `yaml:"exclude" mapstructure:"exclude"`         // 包含任一子串则丢弃
	SameHost bool     `yaml:"same_host" mapstructure:"same_host"`     // 只保留与页面同主机的链接
}

// Validate 验证规则
func (r *LinkRule) Validate() error {
	switch r.Kind {
	case "", RuleCSS:
		if strings.TrimSpace(r.Selector) == "" {
			return fmt.Errorf("css规则缺少selector")
		}
	case RuleFeed:
	default:
		return fmt.Errorf("未知的规则类型: %s", r.Kind)
	}
	return nil
}

// FieldRule 文章字段提取规则
type FieldRule struct {
	Selector string `yaml:"selector" mapstructure:"selector"` // CSS选择器
	Attr     string `yaml:"attr" mapstructure:"attr"`         // 读取属性而非文本 (可选)
	OwnText  bool   `yaml:"own_text" mapstructure:"own_text"` // 只取元素自身的文本节点,忽略子元素
	Join     string `yaml:"join" mapstructure:"join"`         // 非空时拼接全部匹配,否则只取第一个
	Split    string `yaml:"split" mapstructure:"split"`       // 按分隔符切分文本 (可选)
	Part     int    `yaml:"part" mapstructure:"part"`         // 切分后取第几段,负数从末尾计 (默认:0)
}

// ArticleRules 文章页提取规则
type ArticleRules struct {
	Title       FieldRule `yaml:"title" mapstructure:"title"`
	Date        FieldRule `yaml:"date" mapstructure:"date"`
	Body        FieldRule `yaml:"body" mapstructure:"body"`
	DateLayouts []string  `yaml:"date_layouts" mapstructure:"date_layouts"` // Go时间格式,依次尝试
	Timezone    string    `yaml:"timezone" mapstructure:"timezone"`         // IANA时区 (默认:UTC)
}

// Validate 验证规则
func (r *ArticleRules) Validate() error {
	if strings.TrimSpace(r.Title.Selector) == "" {
		return fmt.Errorf("文章规则缺少title选择器")
	}
	if strings.TrimSpace(r.Date.Selector) == "" {
		return fmt.Errorf("文章规则缺少date选择器")
	}
	if strings.TrimSpace(r.Body.Selector) == "" {
		return fmt.Errorf("文章规则缺少body选择器")
	}
	return nil
}

// URLRewrite 抓取文章前对URL做的子串替换 (如 articleshow -> articleshowprint)
type URLRewrite struct {
	From string `yaml:"from" mapstructure:"from"`
	To   string `yaml:"to" mapstructure:"to"`
}

// Apply 应用替换,未配置时原样返回
func (rw *URLRewrite) Apply(link string) string {
	if rw == nil || rw.From == "" {
		return link
	}
	return strings.Replace(link, rw.From, rw.To, 1)
}

// SiteProfile 一个站点的完整抓取配置,构造流水线后不再修改
type SiteProfile struct {
	Name            string       `yaml:"name" mapstructure:"name"`
	Seed            string       `yaml:"seed" mapstructure:"seed"`                         // 默认种子URL
	ArchiveTemplate string       `yaml:"archive_template" mapstructure:"archive_template"` // 按日期生成种子的模板
	Sections        *LinkRule    `yaml:"sections" mapstructure:"sections"`                 // 导航菜单规则,为空时种子页即栏目页
	Listing         LinkRule     `yaml:"listing" mapstructure:"listing"`                   // 栏目列表页规则
	Article         ArticleRules `yaml:"article" mapstructure:"article"`
	ArticleRewrite  *URLRewrite  `yaml:"article_rewrite" mapstructure:"article_rewrite"`
}

// Validate 验证站点配置
func (p *SiteProfile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("站点配置缺少name")
	}
	if p.Sections != nil {
		if err := p.Sections.Validate(); err != nil {
			return fmt.Errorf("站点 %s 的sections规则无效: %w", p.Name, err)
		}
	}
	if err := p.Listing.Validate(); err != nil {
		return fmt.Errorf("站点 %s 的listing规则无效: %w", p.Name, err)
	}
	if err := p.Article.Validate(); err != nil {
		return fmt.Errorf("站点 %s 的article规则无效: %w", p.Name, err)
	}
	return nil
}
