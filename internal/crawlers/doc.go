// Package crawlers 提供页面获取、链接提取和文章解析三类组件
//
// # 概述
//
// crawlers包中的组件都不持有运行状态,由 core.Pipeline 组合成三阶段流水线:
// 种子页 -> 栏目页 -> 文章页。
//
// # 核心组件
//
// ## PageFetcher (页面获取器)
//
// 获取一个URL的页面内容。网络错误、超时和非2xx状态码统一返回 *FetchError。
// 提供三种实现:
//   - HTTPFetcher: net/http,自行处理 gzip/deflate/br 解压和字符集转换
//   - CollyFetcher: 基于Colly,每次请求克隆采集器
//   - DynamicFetcher: 基于go-rod无头浏览器,用于需要渲染的页面
//
// RetryFetcher 可包装任意获取器,对瞬时错误(超时、5xx、429)做指数退避重试。
//
//	fetcher := NewRetryFetcher(NewHTTPFetcher(30*time.Second, headerManager), 2)
//	page, err := fetcher.Fetch(ctx, "https://www.thehansindia.com/")
//
// ## LinkExtractor (链接提取器)
//
// 按 models.LinkRule 从页面中提取链接。过滤条件作用于原始属性值,
// 之后按页面URL(或 <base href>)解析为绝对URL,去掉片段,去重并排序。
// Kind 为 feed 时从RSS/Atom订阅源读取条目链接。
//
//	extractor, err := NewLinkExtractor(models.LinkRule{
//	    Selector: "#listing_main_level_top a",
//	})
//	links, err := extractor.Extract(page)
//
// ## ArticleParser (文章解析器)
//
// 按 models.ArticleRules 提取标题、发布时间和正文。任一字段缺失或日期无法解析
// 时返回 *ExtractionError。日期先按配置的Go时间格式解析,再交给dateparse。
//
// ## PagePool 与 ResourceMonitor
//
// DynamicFetcher 内部使用标签页池,上限取 可用内存/单页内存、CPU核数、
// max_pages_limit 三者最小值。
//
// # 并发安全
//
// 所有获取器、提取器和解析器都可被多个goroutine同时使用。
package crawlers
