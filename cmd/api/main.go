package main

import (
	"crypto/subtle"
	"log"
	"net/http"
	"path/filepath"

	"github.com/LJTian/ContentRadar/internal/api"
	"github.com/LJTian/ContentRadar/internal/collector"
	"github.com/LJTian/ContentRadar/internal/config"
	"github.com/LJTian/ContentRadar/internal/pipeline"
	"github.com/LJTian/ContentRadar/internal/scheduler"
	"github.com/LJTian/ContentRadar/internal/storage"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	// 空库时写入默认关键词与订阅源，部署后即有内容可采
	if err := store.SeedDefaults(); err != nil {
		log.Fatalf("seed defaults failed: %v", err)
	}

	fetcher := collector.NewFetcher(cfg.FetchTimeout)
	feeds := collector.NewFeedExtractor(cfg.FetchTimeout)
	pipe := pipeline.New(store, fetcher, feeds, cfg.SourceDelay)

	sched, err := scheduler.New(cfg.IngestCron, pipe)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}
	sched.Start()

	// API
	r := gin.Default()
	// 若配置了全局访问密码，则启用 Basic Auth 保护（/health 仍然免认证）
	if cfg.BasicAuthUser != "" && cfg.BasicAuthPass != "" {
		r.Use(basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass))
	}

	apiServer := api.NewServer(store, sched)
	apiServer.RegisterRoutes(r)

	// 若配置了前端目录，则托管 SPA 静态文件并做 fallback
	if cfg.WebRoot != "" {
		assetsDir := filepath.Join(cfg.WebRoot, "assets")
		indexFile := filepath.Join(cfg.WebRoot, "index.html")
		r.Static("/assets", assetsDir)
		r.NoRoute(func(c *gin.Context) {
			if c.Request.Method != http.MethodGet {
				c.Status(http.StatusNotFound)
				return
			}
			// SPA：未匹配 API 的 GET 均返回 index.html
			c.File(indexFile)
		})
	}

	addr := ":" + cfg.AppPort
	log.Printf("starting api server at %s ...", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server exit: %v", err)
	}
}

// basicAuthMiddleware 为整个站点增加一个简单的 Basic Auth 访问密码。
// 仅当配置了 APP_BASIC_USER / APP_BASIC_PASS 时启用。
// /health 不做认证，便于健康检查。
func basicAuthMiddleware(user, pass string) gin.HandlerFunc {
	const realm = "Restricted"
	uBytes := []byte(user)
	pBytes := []byte(pass)

	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}
		u, p, ok := c.Request.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(u), uBytes) != 1 ||
			subtle.ConstantTimeCompare([]byte(p), pBytes) != 1 {
			c.Header("WWW-Authenticate", `Basic realm="`+realm+`"`)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}
