package main

import (
	"log"

	"github.com/LJTian/ContentRadar/internal/collector"
	"github.com/LJTian/ContentRadar/internal/config"
	"github.com/LJTian/ContentRadar/internal/pipeline"
	"github.com/LJTian/ContentRadar/internal/storage"
)

// 一个仅执行一轮采集后退出的命令行入口：适合手动补采或排查源的问题
func main() {
	cfg := config.Load()

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	// 空库时写入默认数据（与 cmd/api 保持一致）
	if err := store.SeedDefaults(); err != nil {
		log.Fatalf("seed defaults failed: %v", err)
	}

	fetcher := collector.NewFetcher(cfg.FetchTimeout)
	feeds := collector.NewFeedExtractor(cfg.FetchTimeout)
	pipe := pipeline.New(store, fetcher, feeds, cfg.SourceDelay)

	report := pipe.RunOnce()
	for _, o := range report.Outcomes {
		if o.Err != nil {
			log.Printf("source %s (%s) failed: %v", o.SourceName, o.SourceURL, o.Err)
		}
	}
	log.Printf("ingest finished: attempted=%d failed=%d created=%d",
		report.SourcesAttempted, report.SourcesFailed, report.ArticlesCreated)
}
