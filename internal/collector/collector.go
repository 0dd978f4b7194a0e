package collector

import (
	"fmt"
	"strings"
	"time"
)

// RawContent 一次网页抓取得到的原始响应
type RawContent struct {
	URL  string
	Body []byte
}

// PageContent 从 HTML 中提取出的标题与正文。
// Selector 记录命中的正文选择器，便于排查提取质量；走兜底路径时为空
type PageContent struct {
	Title    string
	Body     string
	Selector string
}

// FeedEntry 订阅源中的一条条目；发布时间解析不出来时为 nil（未知），不算失败
type FeedEntry struct {
	Title       string
	Body        string
	Link        string
	Author      string
	PublishedAt *time.Time
	GUID        string
	Categories  []string
}

// FetchError 一次抓取失败：网络错误、超时或非 2xx 状态
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// bodyRuneLimit 正文长度硬上限（按 rune 计），约束存储体积与下游打分成本
const bodyRuneLimit = 5000

// truncateRunes 按 rune 数截断，保留开头部分，避免把多字节字符截成半个
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

// collapseWhitespace 把连续空白（换行、制表符等）压成单个空格
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
