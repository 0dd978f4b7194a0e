package collector

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// maxFeedEntries 每个订阅源每轮只取最近 N 条，控制单轮批量与打分开销
const maxFeedEntries = 10

// FeedExtractor 拉取并解析 RSS/Atom 订阅源
type FeedExtractor struct {
	parser *gofeed.Parser
}

func NewFeedExtractor(timeout time.Duration) *FeedExtractor {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	p := gofeed.NewParser()
	p.UserAgent = fetchUserAgent
	p.Client = &http.Client{Timeout: timeout}
	return &FeedExtractor{parser: p}
}

// Extract 拉取并解析订阅源，返回保持源内顺序的条目列表。
// 订阅源格式千奇百怪，任何拉取或解析失败都只记日志并返回空结果，
// 不向上层传播；没有链接的条目直接丢弃，链接是后续去重的主键。
func (e *FeedExtractor) Extract(feedURL string) []FeedEntry {
	feed, err := e.parser.ParseURL(feedURL)
	if err != nil {
		log.Printf("extract feed %s: %v", feedURL, err)
		return nil
	}

	items := feed.Items
	if len(items) > maxFeedEntries {
		items = items[:maxFeedEntries]
	}

	entries := make([]FeedEntry, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		link := strings.TrimSpace(it.Link)
		if link == "" {
			continue
		}

		// 摘要与全文拼在一起参与匹配，哪边缺了都不影响另一边
		body := strings.TrimSpace(strings.TrimSpace(it.Description) + " " + strings.TrimSpace(it.Content))

		published := it.PublishedParsed
		if published == nil {
			published = it.UpdatedParsed
		}

		entries = append(entries, FeedEntry{
			Title:       strings.TrimSpace(it.Title),
			Body:        truncateRunes(body, bodyRuneLimit),
			Link:        link,
			Author:      entryAuthor(it),
			PublishedAt: published,
			GUID:        strings.TrimSpace(it.GUID),
			Categories:  it.Categories,
		})
	}
	return entries
}

// entryAuthor 取条目作者名，旧的 Author 字段与新的 Authors 列表都兼容
func entryAuthor(it *gofeed.Item) string {
	if it.Author != nil && it.Author.Name != "" {
		return it.Author.Name
	}
	for _, a := range it.Authors {
		if a != nil && a.Name != "" {
			return a.Name
		}
	}
	return ""
}
