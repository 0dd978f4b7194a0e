package config

import (
	"log"
	"os"
	"time"
)

type Config struct {
	AppPort string

	PostgresDSN string
	RedisAddr   string

	// IngestCron 采集周期，标准五段 cron 或 @every 语法
	IngestCron string
	// FetchTimeout 单次网页抓取 / 订阅源拉取的超时
	FetchTimeout time.Duration
	// SourceDelay 相邻两个源之间的等待
	SourceDelay time.Duration

	// Basic Auth 的账号密码；两者都设置时才启用认证
	BasicAuthUser string
	BasicAuthPass string

	// WebRoot 前端静态文件目录，为空则不托管前端
	WebRoot string
}

func Load() *Config {
	cfg := &Config{
		AppPort:       getEnv("APP_PORT", "9000"),
		PostgresDSN:   getEnv("POSTGRES_DSN", "host=localhost user=contentradar password=contentradar dbname=contentradar port=5432 sslmode=disable TimeZone=UTC"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		IngestCron:    getEnv("INGEST_CRON", "@every 4h"),
		FetchTimeout:  getDurationEnv("FETCH_TIMEOUT", 10*time.Second),
		SourceDelay:   getDurationEnv("SOURCE_DELAY", 2*time.Second),
		BasicAuthUser: getEnv("APP_BASIC_USER", ""),
		BasicAuthPass: getEnv("APP_BASIC_PASS", ""),
		WebRoot:       getEnv("WEB_ROOT", ""),
	}

	log.Printf("config loaded: port=%s cron=%s fetch_timeout=%s source_delay=%s",
		cfg.AppPort, cfg.IngestCron, cfg.FetchTimeout, cfg.SourceDelay)
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getDurationEnv 解析时长环境变量（如 "10s"、"2m"）；非法值退回默认并告警
func getDurationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("warn: invalid %s=%q, using default %s", key, v, def)
		return def
	}
	return d
}
