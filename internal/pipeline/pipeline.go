package pipeline

import (
	"fmt"
	"log"
	"time"

	"github.com/LJTian/ContentRadar/internal/collector"
	"github.com/LJTian/ContentRadar/internal/matcher"
	"github.com/LJTian/ContentRadar/internal/storage"
)

// Store 流水线需要的最小存储能力，由 storage.Store 实现
type Store interface {
	ListActiveSources() ([]storage.Source, error)
	ListActiveKeywords() ([]storage.Keyword, error)
	ArticleExistsByURL(url string) (bool, error)
	CommitSourceRun(run storage.SourceRun) error
}

// PageFetcher 抓取单个网页
type PageFetcher interface {
	Fetch(pageURL string) (*collector.RawContent, error)
}

// FeedReader 拉取订阅源条目
type FeedReader interface {
	Extract(feedURL string) []collector.FeedEntry
}

// SourceOutcome 单个源本轮的结果；Err 非空表示该源失败（抓取或持久化）
type SourceOutcome struct {
	SourceName string
	SourceURL  string
	Created    int
	Err        error
}

// Report 一轮采集的汇总
type Report struct {
	StartedAt        time.Time
	FinishedAt       time.Time
	SourcesAttempted int
	SourcesFailed    int
	ArticlesCreated  int
	Outcomes         []SourceOutcome
}

// Pipeline 串起一轮采集：抓取、提取、匹配、去重、入库
type Pipeline struct {
	store   Store
	fetcher PageFetcher
	feeds   FeedReader
	// delay 相邻源之间的等待，避免对外部站点突发请求；0 表示不等（测试用）
	delay time.Duration
}

func New(store Store, fetcher PageFetcher, feeds FeedReader, delay time.Duration) *Pipeline {
	return &Pipeline{store: store, fetcher: fetcher, feeds: feeds, delay: delay}
}

// RunOnce 执行一轮完整采集并返回汇总。
// 活跃源和关键词在开始时一次性取出，运行期间的增删改要等下一轮才生效；
// 单个源的失败只记录，不中断整轮，其余源照常处理。
func (p *Pipeline) RunOnce() Report {
	report := Report{StartedAt: time.Now()}

	sources, err := p.store.ListActiveSources()
	if err != nil {
		log.Printf("ingest: list active sources: %v", err)
		report.FinishedAt = time.Now()
		return report
	}
	keywords, err := p.store.ListActiveKeywords()
	if err != nil {
		log.Printf("ingest: list active keywords: %v", err)
		report.FinishedAt = time.Now()
		return report
	}

	log.Printf("ingest run started: %d sources, %d keywords", len(sources), len(keywords))

	for i, src := range sources {
		if i > 0 && p.delay > 0 {
			time.Sleep(p.delay)
		}

		outcome := p.ingestSource(src, keywords)
		report.SourcesAttempted++
		report.ArticlesCreated += outcome.Created
		if outcome.Err != nil {
			report.SourcesFailed++
			log.Printf("ingest source %s (%s): %v", src.Name, src.URL, outcome.Err)
		} else {
			log.Printf("ingest source %s: %d new articles", src.Name, outcome.Created)
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	report.FinishedAt = time.Now()
	log.Printf("ingest run done: attempted=%d failed=%d created=%d in %s",
		report.SourcesAttempted, report.SourcesFailed, report.ArticlesCreated,
		report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	return report
}

// ingestSource 处理单个源并提交其工作单元。
// 无论采集成败，last_run_at 都会更新（提交空批次也算一次尝试）；
// 采集中途出错时整批丢弃，一个源要么完整入库要么什么都不留。
func (p *Pipeline) ingestSource(src storage.Source, keywords []storage.Keyword) SourceOutcome {
	outcome := SourceOutcome{SourceName: src.Name, SourceURL: src.URL}
	ranAt := time.Now().UTC()

	var drafts []storage.ArticleDraft
	switch src.Type {
	case storage.SourceTypeFeed:
		drafts, outcome.Err = p.collectFeed(src, keywords)
	case storage.SourceTypeWebsite:
		drafts, outcome.Err = p.collectWebsite(src, keywords)
	default:
		outcome.Err = fmt.Errorf("unknown source type %q", src.Type)
	}

	run := storage.SourceRun{SourceID: src.ID, RanAt: ranAt, Articles: drafts}
	if err := p.store.CommitSourceRun(run); err != nil {
		if outcome.Err != nil {
			outcome.Err = fmt.Errorf("%v; commit: %w", outcome.Err, err)
		} else {
			outcome.Err = fmt.Errorf("commit: %w", err)
		}
		return outcome
	}
	outcome.Created = len(drafts)
	return outcome
}

// collectWebsite 网站路径：抓整页、提取标题正文，再对提取结果打分。
// 导航、侧栏等正文容器之外的区域不参与匹配；没有任何命中就不入库
func (p *Pipeline) collectWebsite(src storage.Source, keywords []storage.Keyword) ([]storage.ArticleDraft, error) {
	raw, err := p.fetcher.Fetch(src.URL)
	if err != nil {
		return nil, err
	}

	page := collector.ExtractPage(raw.Body, src.URL)
	results := matcher.Match(page.Title+" "+page.Body, keywords)
	if len(results) == 0 {
		return nil, nil
	}

	exists, err := p.store.ArticleExistsByURL(src.URL)
	if err != nil {
		return nil, fmt.Errorf("dedup check %s: %w", src.URL, err)
	}
	if exists {
		return nil, nil
	}

	var extra map[string]any
	if page.Selector != "" {
		extra = map[string]any{"selector": page.Selector}
	}
	draft := storage.ArticleDraft{
		Title:   page.Title,
		Body:    page.Body,
		URL:     src.URL,
		Extra:   extra,
		Matches: matchDrafts(results),
	}
	return []storage.ArticleDraft{draft}, nil
}

// collectFeed 订阅源路径：逐条做链接去重（库内 + 本批次），
// 标题与摘要正文一起打分，打分口径与网站路径一致：至少命中一个关键词才入库
func (p *Pipeline) collectFeed(src storage.Source, keywords []storage.Keyword) ([]storage.ArticleDraft, error) {
	entries := p.feeds.Extract(src.URL)
	if len(entries) == 0 {
		return nil, nil
	}

	var drafts []storage.ArticleDraft
	seen := make(map[string]struct{}, len(entries)) // 同一批次里重复的链接只取第一条
	for _, entry := range entries {
		if _, dup := seen[entry.Link]; dup {
			continue
		}
		seen[entry.Link] = struct{}{}

		exists, err := p.store.ArticleExistsByURL(entry.Link)
		if err != nil {
			return nil, fmt.Errorf("dedup check %s: %w", entry.Link, err)
		}
		if exists {
			continue
		}

		results := matcher.Match(entry.Title+" "+entry.Body, keywords)
		if len(results) == 0 {
			continue
		}

		drafts = append(drafts, feedDraft(entry, results))
	}
	return drafts, nil
}

func feedDraft(entry collector.FeedEntry, results []matcher.Result) storage.ArticleDraft {
	extra := map[string]any{}
	if entry.GUID != "" {
		extra["guid"] = entry.GUID
	}
	if len(entry.Categories) > 0 {
		extra["categories"] = entry.Categories
	}
	if len(extra) == 0 {
		extra = nil
	}
	return storage.ArticleDraft{
		Title:       entry.Title,
		Body:        entry.Body,
		URL:         entry.Link,
		Author:      entry.Author,
		PublishedAt: entry.PublishedAt,
		Extra:       extra,
		Matches:     matchDrafts(results),
	}
}

func matchDrafts(results []matcher.Result) []storage.MatchDraft {
	out := make([]storage.MatchDraft, 0, len(results))
	for _, r := range results {
		out = append(out, storage.MatchDraft{KeywordID: r.Keyword.ID, Score: r.Score})
	}
	return out
}
