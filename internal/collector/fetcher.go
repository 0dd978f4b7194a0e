package collector

import (
	"time"

	"github.com/gocolly/colly/v2"
)

const (
	// DefaultFetchTimeout 单次抓取的默认超时；来源站点质量参差，必须有硬性兜底
	DefaultFetchTimeout = 10 * time.Second

	// maxFetchBodyBytes 响应体上限 2MB，防止超大页面占满内存
	maxFetchBodyBytes = 2 << 20

	// fetchUserAgent 使用常见浏览器 UA，部分站点会直接拒绝明显的脚本请求
	fetchUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Fetcher 抓取单个网页并返回原始字节。
// 不做重试：失败的源记入当轮报告，等下一轮再试
type Fetcher struct {
	timeout time.Duration
}

func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Fetcher{timeout: timeout}
}

// Fetch 对 pageURL 发起一次 GET。
// 网络错误、超时、非 2xx 状态统一包装成 *FetchError 返回。
// 每次新建 collector，抓取之间互不影响，也绕开 colly 对重复 URL 的访问限制。
func (f *Fetcher) Fetch(pageURL string) (*RawContent, error) {
	c := colly.NewCollector(
		colly.UserAgent(fetchUserAgent),
		colly.MaxBodySize(maxFetchBodyBytes),
	)
	c.SetRequestTimeout(f.timeout)

	var body []byte
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})

	if err := c.Visit(pageURL); err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}
	return &RawContent{URL: pageURL, Body: body}, nil
}
