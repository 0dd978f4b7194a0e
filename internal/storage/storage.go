package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Article 一篇入库的文章。URL 全局唯一，是去重的幂等键；入库后内容不再更新
type Article struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Title       string     `gorm:"size:500" json:"title"`
	Body        string     `gorm:"type:text" json:"body"`
	URL         string     `gorm:"size:1000;uniqueIndex" json:"url"`
	Author      string     `gorm:"size:200" json:"author,omitempty"`
	PublishedAt *time.Time `gorm:"index" json:"publishedAt,omitempty"`
	IngestedAt  time.Time  `gorm:"index" json:"ingestedAt"`
	SourceID    uint       `gorm:"index" json:"sourceId"`
	Source      Source     `json:"source"`
	// Extra 存放来源相关的原始元数据（命中的正文选择器、feed guid、分类等），不参与查询
	Extra datatypes.JSONMap `gorm:"type:jsonb" json:"extra,omitempty"`

	Matches []ArticleKeywordMatch `json:"matches,omitempty"`
}

// ArticleKeywordMatch 文章与关键词的关联及相关度分值。
// 只在文章入库那一刻写入，分值不会低于 0.1（没命中的关键词根本不产生行）
type ArticleKeywordMatch struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	ArticleID uint    `gorm:"uniqueIndex:idx_article_keyword" json:"articleId"`
	KeywordID uint    `gorm:"uniqueIndex:idx_article_keyword" json:"keywordId"`
	Score     float64 `json:"score"`

	Keyword Keyword `json:"keyword"`
}

type Store struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewStore(dsn, redisAddr string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Keyword{}, &Source{}, &Article{}, &ArticleKeywordMatch{}); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("warn: redis ping failed: %v", err)
	}

	return &Store{DB: db, Redis: rdb}, nil
}

// toValidUTF8 将字符串规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误（外部页面偶有 GBK/混编）
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}

// truncateRunesDB 按 rune 数截断字符串，确保不会超过数据库字段长度（例如 varchar(500)）。
// 这是对上游提取环节的双保险，防止异常长文本导致入库失败。
func truncateRunesDB(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

// MatchDraft 待写入的关键词关联
type MatchDraft struct {
	KeywordID uint
	Score     float64
}

// ArticleDraft 流水线组装好、待入库的文章及其关键词关联
type ArticleDraft struct {
	Title       string
	Body        string
	URL         string
	Author      string
	PublishedAt *time.Time
	Extra       map[string]any
	Matches     []MatchDraft
}

// SourceRun 某个源单轮的全部产出：新文章加上 last_run_at 更新，作为一个事务提交
type SourceRun struct {
	SourceID uint
	RanAt    time.Time
	Articles []ArticleDraft
}

// ArticleExistsByURL 判断 URL 是否已入库
func (s *Store) ArticleExistsByURL(url string) (bool, error) {
	var n int64
	if err := s.DB.Model(&Article{}).Where("url = ?", url).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// CommitSourceRun 以一个事务提交某个源本轮的工作单元：
// 文章、关联行、last_run_at 三者要么全部生效要么全部回滚，
// 库里不会出现"文章在而关联缺失"的中间状态。
// Articles 为空时仅更新 last_run_at，失败的源也记录本次尝试。
func (s *Store) CommitSourceRun(run SourceRun) error {
	now := time.Now().UTC()
	return s.DB.Transaction(func(tx *gorm.DB) error {
		for _, d := range run.Articles {
			a := Article{
				Title:       truncateRunesDB(toValidUTF8(d.Title), 500),
				Body:        toValidUTF8(d.Body),
				URL:         d.URL,
				Author:      truncateRunesDB(toValidUTF8(d.Author), 200),
				PublishedAt: d.PublishedAt,
				IngestedAt:  now,
				SourceID:    run.SourceID,
				Extra:       datatypes.JSONMap(d.Extra),
			}
			if err := tx.Create(&a).Error; err != nil {
				return fmt.Errorf("insert article %s: %w", d.URL, err)
			}

			if len(d.Matches) == 0 {
				continue
			}
			rows := make([]ArticleKeywordMatch, 0, len(d.Matches))
			for _, m := range d.Matches {
				rows = append(rows, ArticleKeywordMatch{
					ArticleID: a.ID,
					KeywordID: m.KeywordID,
					Score:     m.Score,
				})
			}
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("insert keyword matches for %s: %w", d.URL, err)
			}
		}

		if err := tx.Model(&Source{}).Where("id = ?", run.SourceID).
			Update("last_run_at", run.RanAt).Error; err != nil {
			return fmt.Errorf("update source last run: %w", err)
		}
		return nil
	})
}

type cachedArticleList struct {
	Items []Article `json:"items"`
	Total int64     `json:"total"`
}

// ListArticles 分页返回文章，按关键词相关度最高分与入库时间倒序；
// keyword 可选，对关键词词条做不区分大小写的模糊过滤。
// 结果用 Redis 做 5 分钟读穿缓存；写入侧不做通配删除，靠短 TTL 自然过期。
func (s *Store) ListArticles(page, perPage int, keyword string) ([]Article, int64, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 || perPage > 100 {
		perPage = 20
	}

	ctx := context.Background()
	cacheKey := fmt.Sprintf("articles:list:%d:%d:%s", page, perPage, keyword)

	if s.Redis != nil {
		if bs, err := s.Redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached cachedArticleList
			if err := json.Unmarshal(bs, &cached); err == nil {
				return cached.Items, cached.Total, nil
			}
		}
	}

	// 每篇文章只出现一次，按其命中关键词的最高分排序（postgres 按主键分组后可直接取列）
	listQ := s.DB.Model(&Article{}).
		Select("articles.*").
		Joins("JOIN article_keyword_matches akm ON akm.article_id = articles.id").
		Group("articles.id").
		Order("MAX(akm.score) DESC").
		Order("articles.ingested_at DESC")
	countQ := s.DB.Model(&Article{}).
		Joins("JOIN article_keyword_matches akm ON akm.article_id = articles.id")

	if keyword != "" {
		pattern := "%" + strings.TrimSpace(keyword) + "%"
		listQ = listQ.
			Joins("JOIN keywords k ON k.id = akm.keyword_id").
			Where("k.term ILIKE ?", pattern)
		countQ = countQ.
			Joins("JOIN keywords k ON k.id = akm.keyword_id").
			Where("k.term ILIKE ?", pattern)
	}

	var total int64
	if err := countQ.Distinct("articles.id").Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []Article
	err := listQ.
		Preload("Source").
		Preload("Matches.Keyword").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}

	const listCacheTTL = 5 * time.Minute
	if s.Redis != nil && len(items) > 0 {
		if bs, err := json.Marshal(cachedArticleList{Items: items, Total: total}); err == nil {
			_ = s.Redis.Set(ctx, cacheKey, bs, listCacheTTL).Err()
		}
	}

	return items, total, nil
}

// GetArticle 按 ID 取单篇文章，带来源与关键词关联；未找到返回 gorm.ErrRecordNotFound
func (s *Store) GetArticle(id uint) (*Article, error) {
	var a Article
	if err := s.DB.Preload("Source").Preload("Matches.Keyword").First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// Stats 仪表盘统计
type Stats struct {
	TotalArticles  int64 `json:"totalArticles"`
	ActiveKeywords int64 `json:"activeKeywords"`
	ActiveSources  int64 `json:"activeSources"`
	// ArticlesToday 今天（UTC 零点起）入库的文章数
	ArticlesToday int64 `json:"articlesToday"`
}

// GetStats 汇总统计数字，结果缓存 60 秒
func (s *Store) GetStats() (Stats, error) {
	ctx := context.Background()
	const cacheKey = "stats:overview"

	var st Stats
	if s.Redis != nil {
		if bs, err := s.Redis.Get(ctx, cacheKey).Bytes(); err == nil {
			if err := json.Unmarshal(bs, &st); err == nil {
				return st, nil
			}
		}
	}

	if err := s.DB.Model(&Article{}).Count(&st.TotalArticles).Error; err != nil {
		return st, err
	}
	if err := s.DB.Model(&Keyword{}).Where("active = ?", true).Count(&st.ActiveKeywords).Error; err != nil {
		return st, err
	}
	if err := s.DB.Model(&Source{}).Where("active = ?", true).Count(&st.ActiveSources).Error; err != nil {
		return st, err
	}

	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if err := s.DB.Model(&Article{}).Where("ingested_at >= ?", dayStart).Count(&st.ArticlesToday).Error; err != nil {
		return st, err
	}

	if s.Redis != nil {
		if bs, err := json.Marshal(st); err == nil {
			_ = s.Redis.Set(ctx, cacheKey, bs, time.Minute).Err()
		}
	}
	return st, nil
}
