package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/LJTian/ContentRadar/internal/collector"
	"github.com/LJTian/ContentRadar/internal/storage"
)

type fakeStore struct {
	sources  []storage.Source
	keywords []storage.Keyword
	existing map[string]bool
	commits  []storage.SourceRun

	commitErr map[uint]error
	listErr   error

	sourceCalls  int
	keywordCalls int
}

func newFakeStore(sources []storage.Source, keywords []storage.Keyword) *fakeStore {
	return &fakeStore{
		sources:   sources,
		keywords:  keywords,
		existing:  map[string]bool{},
		commitErr: map[uint]error{},
	}
}

func (f *fakeStore) ListActiveSources() ([]storage.Source, error) {
	f.sourceCalls++
	return f.sources, f.listErr
}

func (f *fakeStore) ListActiveKeywords() ([]storage.Keyword, error) {
	f.keywordCalls++
	return f.keywords, nil
}

func (f *fakeStore) ArticleExistsByURL(url string) (bool, error) {
	return f.existing[url], nil
}

func (f *fakeStore) CommitSourceRun(run storage.SourceRun) error {
	if err := f.commitErr[run.SourceID]; err != nil {
		return err
	}
	f.commits = append(f.commits, run)
	for _, d := range run.Articles {
		f.existing[d.URL] = true
	}
	return nil
}

// commitFor 按源 ID 找提交记录，没有则失败
func (f *fakeStore) commitFor(t *testing.T, sourceID uint) storage.SourceRun {
	t.Helper()
	for _, run := range f.commits {
		if run.SourceID == sourceID {
			return run
		}
	}
	t.Fatalf("no commit recorded for source %d", sourceID)
	return storage.SourceRun{}
}

type fakeFetcher struct {
	pages map[string]string
	errs  map[string]error
}

func (f *fakeFetcher) Fetch(pageURL string) (*collector.RawContent, error) {
	if err := f.errs[pageURL]; err != nil {
		return nil, err
	}
	return &collector.RawContent{URL: pageURL, Body: []byte(f.pages[pageURL])}, nil
}

type fakeFeeds struct {
	entries map[string][]collector.FeedEntry
}

func (f *fakeFeeds) Extract(feedURL string) []collector.FeedEntry {
	return f.entries[feedURL]
}

func websiteSource(id uint, url string) storage.Source {
	return storage.Source{ID: id, Name: fmt.Sprintf("site-%d", id), URL: url, Type: storage.SourceTypeWebsite, Active: true}
}

func feedSource(id uint, url string) storage.Source {
	return storage.Source{ID: id, Name: fmt.Sprintf("feed-%d", id), URL: url, Type: storage.SourceTypeFeed, Active: true}
}

func TestRunOnceWebsiteMatchAndPersist(t *testing.T) {
	const url = "https://blog.example.com/ai-post"
	page := `<html><head><title>AI Advances</title></head><body>
	<article>artificial intelligence is moving fast. teams adopt artificial intelligence.
	artificial intelligence needs guardrails.</article></body></html>`

	store := newFakeStore(
		[]storage.Source{websiteSource(1, url)},
		[]storage.Keyword{{ID: 7, Term: "artificial intelligence", Active: true}},
	)
	p := New(store, &fakeFetcher{pages: map[string]string{url: page}}, &fakeFeeds{}, 0)

	report := p.RunOnce()
	if report.SourcesAttempted != 1 || report.SourcesFailed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.ArticlesCreated != 1 {
		t.Fatalf("expected 1 article created, got %d", report.ArticlesCreated)
	}

	run := store.commitFor(t, 1)
	if run.RanAt.IsZero() {
		t.Fatal("expected last run timestamp to be set")
	}
	if len(run.Articles) != 1 {
		t.Fatalf("expected 1 draft, got %d", len(run.Articles))
	}
	draft := run.Articles[0]
	if draft.URL != url || draft.Title != "AI Advances" {
		t.Fatalf("unexpected draft: %+v", draft)
	}
	if len(draft.Matches) != 1 {
		t.Fatalf("expected 1 keyword match, got %d", len(draft.Matches))
	}
	if draft.Matches[0].KeywordID != 7 || draft.Matches[0].Score != 0.3 {
		t.Fatalf("expected keyword 7 with score 0.3, got %+v", draft.Matches[0])
	}
}

func TestRunOnceWebsiteGateUsesExtractedBodyOnly(t *testing.T) {
	// 关键词只出现在导航里，不在正文容器内：不入库，但本次尝试照常记录
	const url = "https://blog.example.com/other"
	page := `<html><body><nav>python python python</nav><article>nothing relevant here</article></body></html>`

	store := newFakeStore(
		[]storage.Source{websiteSource(1, url)},
		[]storage.Keyword{{ID: 1, Term: "python", Active: true}},
	)
	p := New(store, &fakeFetcher{pages: map[string]string{url: page}}, &fakeFeeds{}, 0)

	report := p.RunOnce()
	if report.ArticlesCreated != 0 || report.SourcesFailed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	run := store.commitFor(t, 1)
	if len(run.Articles) != 0 {
		t.Fatalf("expected empty batch, got %d drafts", len(run.Articles))
	}
}

func TestRunOnceWebsiteDedupAcrossRuns(t *testing.T) {
	const url = "https://blog.example.com/ai-post"
	page := `<html><head><title>t</title></head><body><article>python tips</article></body></html>`

	store := newFakeStore(
		[]storage.Source{websiteSource(1, url)},
		[]storage.Keyword{{ID: 1, Term: "python", Active: true}},
	)
	p := New(store, &fakeFetcher{pages: map[string]string{url: page}}, &fakeFeeds{}, 0)

	if report := p.RunOnce(); report.ArticlesCreated != 1 {
		t.Fatalf("first run should create 1 article, got %d", report.ArticlesCreated)
	}
	if report := p.RunOnce(); report.ArticlesCreated != 0 {
		t.Fatalf("second run should create nothing, got %d", report.ArticlesCreated)
	}
	if len(store.commits) != 2 {
		t.Fatalf("both runs should commit (last run update), got %d commits", len(store.commits))
	}
}

func TestRunOnceFeedFiltersAndDedups(t *testing.T) {
	const feedURL = "https://example.com/feed.xml"
	store := newFakeStore(
		[]storage.Source{feedSource(2, feedURL)},
		[]storage.Keyword{{ID: 1, Term: "golang", Active: true}},
	)
	store.existing["https://example.com/old"] = true

	feeds := &fakeFeeds{entries: map[string][]collector.FeedEntry{
		feedURL: {
			{Title: "golang news", Link: "https://example.com/new", Body: "more golang"},
			{Title: "golang again", Link: "https://example.com/old", Body: "already stored"},
			{Title: "cooking", Link: "https://example.com/pasta", Body: "no keywords"},
			{Title: "golang dup", Link: "https://example.com/new", Body: "duplicate link in batch"},
		},
	}}
	p := New(store, &fakeFetcher{}, feeds, 0)

	report := p.RunOnce()
	if report.ArticlesCreated != 1 {
		t.Fatalf("expected 1 article, got %d", report.ArticlesCreated)
	}
	run := store.commitFor(t, 2)
	if len(run.Articles) != 1 || run.Articles[0].URL != "https://example.com/new" {
		t.Fatalf("unexpected drafts: %+v", run.Articles)
	}
	// 标题和摘要一起参与打分：golang 出现 2 次
	if run.Articles[0].Matches[0].Score != 0.2 {
		t.Fatalf("expected score 0.2, got %v", run.Articles[0].Matches[0].Score)
	}
}

func TestRunOnceFetchFailureIsolated(t *testing.T) {
	const badURL = "https://down.example.com"
	const goodURL = "https://up.example.com"
	store := newFakeStore(
		[]storage.Source{websiteSource(1, badURL), websiteSource(2, goodURL)},
		[]storage.Keyword{{ID: 1, Term: "python", Active: true}},
	)
	fetcher := &fakeFetcher{
		pages: map[string]string{goodURL: `<html><body><article>python content</article></body></html>`},
		errs:  map[string]error{badURL: &collector.FetchError{URL: badURL, Err: errors.New("connection refused")}},
	}
	p := New(store, fetcher, &fakeFeeds{}, 0)

	report := p.RunOnce()
	if report.SourcesAttempted != 2 {
		t.Fatalf("expected 2 attempts, got %d", report.SourcesAttempted)
	}
	if report.SourcesFailed != 1 {
		t.Fatalf("expected 1 failure, got %d", report.SourcesFailed)
	}
	if report.ArticlesCreated != 1 {
		t.Fatalf("expected healthy source to produce 1 article, got %d", report.ArticlesCreated)
	}

	// 失败的源也要更新 last_run_at：两个源都应有提交记录
	if len(store.commits) != 2 {
		t.Fatalf("expected 2 commits, got %d", len(store.commits))
	}
	failed := store.commitFor(t, 1)
	if len(failed.Articles) != 0 {
		t.Fatalf("failed source should commit empty batch, got %d drafts", len(failed.Articles))
	}

	if len(report.Outcomes) != 2 || report.Outcomes[0].Err == nil {
		t.Fatalf("expected first outcome to carry the fetch error: %+v", report.Outcomes)
	}
	var fe *collector.FetchError
	if !errors.As(report.Outcomes[0].Err, &fe) {
		t.Fatalf("expected FetchError, got %T", report.Outcomes[0].Err)
	}
}

func TestRunOnceCommitFailureIsolated(t *testing.T) {
	// 第一个源提交失败，后面的源必须照常采集并入库
	const brokenURL = "https://blog.example.com/p"
	const healthyURL = "https://blog.example.com/q"
	store := newFakeStore(
		[]storage.Source{websiteSource(1, brokenURL), websiteSource(2, healthyURL)},
		[]storage.Keyword{{ID: 1, Term: "python", Active: true}},
	)
	store.commitErr[1] = errors.New("db down")

	fetcher := &fakeFetcher{pages: map[string]string{
		brokenURL:  `<html><body><article>python</article></body></html>`,
		healthyURL: `<html><body><article>python loves python</article></body></html>`,
	}}
	p := New(store, fetcher, &fakeFeeds{}, 0)

	report := p.RunOnce()
	if report.SourcesAttempted != 2 {
		t.Fatalf("expected 2 attempts, got %d", report.SourcesAttempted)
	}
	if report.SourcesFailed != 1 {
		t.Fatalf("expected 1 failure, got %d", report.SourcesFailed)
	}
	// 回滚的源不计入，健康源的那一篇照常统计
	if report.ArticlesCreated != 1 {
		t.Fatalf("expected 1 article from the healthy source, got %d", report.ArticlesCreated)
	}
	if len(report.Outcomes) != 2 || report.Outcomes[0].Err == nil {
		t.Fatalf("expected first outcome to carry the commit error: %+v", report.Outcomes)
	}
	if !strings.Contains(report.Outcomes[0].Err.Error(), "db down") {
		t.Fatalf("commit error should be preserved: %v", report.Outcomes[0].Err)
	}
	if report.Outcomes[1].Err != nil {
		t.Fatalf("healthy source should not fail: %v", report.Outcomes[1].Err)
	}

	run := store.commitFor(t, 2)
	if len(run.Articles) != 1 {
		t.Fatalf("expected 1 draft from the healthy source, got %d", len(run.Articles))
	}
	if run.Articles[0].Matches[0].Score != 0.2 {
		t.Fatalf("expected score 0.2, got %v", run.Articles[0].Matches[0].Score)
	}
}

func TestRunOnceUnknownSourceTypeFails(t *testing.T) {
	store := newFakeStore(
		[]storage.Source{{ID: 9, Name: "odd", URL: "https://x.example.com", Type: "telegram", Active: true}},
		[]storage.Keyword{{ID: 1, Term: "python", Active: true}},
	)
	p := New(store, &fakeFetcher{}, &fakeFeeds{}, 0)

	report := p.RunOnce()
	if report.SourcesFailed != 1 || report.ArticlesCreated != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	// 类型未知也算一次尝试
	run := store.commitFor(t, 9)
	if len(run.Articles) != 0 {
		t.Fatalf("expected empty batch, got %d", len(run.Articles))
	}
}

func TestRunOnceSnapshotsListsOnce(t *testing.T) {
	store := newFakeStore(
		[]storage.Source{feedSource(1, "https://a.example.com/f"), feedSource(2, "https://b.example.com/f")},
		[]storage.Keyword{{ID: 1, Term: "python", Active: true}},
	)
	p := New(store, &fakeFetcher{}, &fakeFeeds{}, 0)

	p.RunOnce()
	if store.sourceCalls != 1 || store.keywordCalls != 1 {
		t.Fatalf("sources and keywords must be snapshotted once per run, got %d/%d",
			store.sourceCalls, store.keywordCalls)
	}
}

func TestRunOnceListFailureAbortsRun(t *testing.T) {
	store := newFakeStore(nil, nil)
	store.listErr = errors.New("db unreachable")
	p := New(store, &fakeFetcher{}, &fakeFeeds{}, 0)

	report := p.RunOnce()
	if report.SourcesAttempted != 0 || len(store.commits) != 0 {
		t.Fatalf("run should abort before touching sources: %+v", report)
	}
	if report.FinishedAt.IsZero() {
		t.Fatal("report must still carry finish time")
	}
}
