package storage

import (
	"errors"
	"log"
)

// 首次启动时的种子数据，保证新部署开箱即有内容可采
var defaultKeywords = []string{
	"artificial intelligence",
	"machine learning",
	"technology",
	"programming",
	"python",
}

var defaultSources = []struct {
	Name string
	URL  string
	Type string
}{
	{"Hacker News RSS", "https://hnrss.org/frontpage", SourceTypeFeed},
	{"Reddit Technology RSS", "https://www.reddit.com/r/technology/.rss", SourceTypeFeed},
	{"ArXiv CS RSS", "https://rss.arxiv.org/rss/cs", SourceTypeFeed},
}

// SeedDefaults 关键词表或源表为空时写入默认数据；已有数据的表不动
func (s *Store) SeedDefaults() error {
	var n int64
	if err := s.DB.Model(&Keyword{}).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		for _, term := range defaultKeywords {
			if _, err := s.AddKeyword(term); err != nil && !errors.Is(err, ErrKeywordExists) {
				return err
			}
		}
		log.Printf("seeded %d default keywords", len(defaultKeywords))
	}

	if err := s.DB.Model(&Source{}).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		for _, src := range defaultSources {
			if _, err := s.AddSource(src.Name, src.URL, src.Type); err != nil && !errors.Is(err, ErrSourceExists) {
				return err
			}
		}
		log.Printf("seeded %d default sources", len(defaultSources))
	}
	return nil
}
