package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/LJTian/ContentRadar/internal/scheduler"
	"github.com/LJTian/ContentRadar/internal/storage"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Server struct {
	store *storage.Store
	sched *scheduler.Scheduler
}

func NewServer(store *storage.Store, sched *scheduler.Scheduler) *Server {
	return &Server{store: store, sched: sched}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/articles", s.listArticles)
		v1.GET("/articles/:id", s.getArticle)

		v1.GET("/keywords", s.listKeywords)
		v1.POST("/keywords", s.addKeyword)
		v1.POST("/keywords/:id/toggle", s.toggleKeyword)

		v1.GET("/sources", s.listSources)
		v1.POST("/sources", s.addSource)
		v1.POST("/sources/:id/toggle", s.toggleSource)

		v1.POST("/ingest/run", s.triggerIngest)
		v1.GET("/stats", s.stats)
	}
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    data,
	})
}

func respondErr(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}

// pathID 解析路径里的数字 ID，非法时直接响应 400
func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		respondErr(c, http.StatusBadRequest, "invalid_request", "invalid id")
		return 0, false
	}
	return uint(id), true
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listArticles(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page <= 0 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	keyword := c.Query("keyword")

	items, total, err := s.store.ListArticles(page, limit, keyword)
	if err != nil {
		respondErr(c, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondOK(c, gin.H{
		"items": items,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

func (s *Server) getArticle(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	article, err := s.store.GetArticle(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondErr(c, http.StatusNotFound, "not_found", "article not found")
		return
	}
	if err != nil {
		respondErr(c, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	respondOK(c, article)
}

func (s *Server) listKeywords(c *gin.Context) {
	list, err := s.store.ListKeywords()
	if err != nil {
		respondErr(c, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	respondOK(c, list)
}

func (s *Server) addKeyword(c *gin.Context) {
	var req struct {
		Term string `json:"term"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || storage.NormalizeTerm(req.Term) == "" {
		respondErr(c, http.StatusBadRequest, "invalid_request", "term is required")
		return
	}

	kw, err := s.store.AddKeyword(req.Term)
	if errors.Is(err, storage.ErrKeywordExists) {
		respondErr(c, http.StatusConflict, "already_exists", "keyword already exists")
		return
	}
	if err != nil {
		respondErr(c, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	respondOK(c, kw)
}

func (s *Server) toggleKeyword(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	kw, err := s.store.ToggleKeyword(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondErr(c, http.StatusNotFound, "not_found", "keyword not found")
		return
	}
	if err != nil {
		respondErr(c, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	respondOK(c, kw)
}

func (s *Server) listSources(c *gin.Context) {
	list, err := s.store.ListSources()
	if err != nil {
		respondErr(c, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	respondOK(c, list)
}

func (s *Server) addSource(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
		URL  string `json:"url"`
		Type string `json:"type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.Type == "" {
		req.Type = storage.SourceTypeWebsite
	}
	// 按去掉空白后的值校验，纯空白的 name 和 url 同样算缺失
	name := strings.TrimSpace(req.Name)
	url := strings.TrimSpace(req.URL)
	if name == "" || url == "" {
		respondErr(c, http.StatusBadRequest, "invalid_request", "name and url are required")
		return
	}
	if !storage.ValidSourceType(req.Type) {
		respondErr(c, http.StatusBadRequest, "invalid_request", "type must be website or feed")
		return
	}

	src, err := s.store.AddSource(name, url, req.Type)
	if errors.Is(err, storage.ErrSourceExists) {
		respondErr(c, http.StatusConflict, "already_exists", "source url already exists")
		return
	}
	if err != nil {
		respondErr(c, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	respondOK(c, src)
}

func (s *Server) toggleSource(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	src, err := s.store.ToggleSource(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondErr(c, http.StatusNotFound, "not_found", "source not found")
		return
	}
	if err != nil {
		respondErr(c, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	respondOK(c, src)
}

// triggerIngest 手动触发一轮采集：立即返回，采集在后台执行。
// 已有一轮在跑或已挂起时，本次请求被合并，queued 为 false
func (s *Server) triggerIngest(c *gin.Context) {
	queued := s.sched.Trigger()
	c.JSON(http.StatusAccepted, gin.H{
		"code":    "ok",
		"message": "ingest run scheduled",
		"data": gin.H{
			"queued":  queued,
			"running": s.sched.Running(),
		},
	})
}

func (s *Server) stats(c *gin.Context) {
	st, err := s.store.GetStats()
	if err != nil {
		respondErr(c, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	data := gin.H{
		"totalArticles":  st.TotalArticles,
		"activeKeywords": st.ActiveKeywords,
		"activeSources":  st.ActiveSources,
		"articlesToday":  st.ArticlesToday,
	}
	if rep := s.sched.LastReport(); rep != nil {
		data["lastRun"] = gin.H{
			"startedAt":        rep.StartedAt,
			"finishedAt":       rep.FinishedAt,
			"sourcesAttempted": rep.SourcesAttempted,
			"sourcesFailed":    rep.SourcesFailed,
			"articlesCreated":  rep.ArticlesCreated,
		}
	}
	respondOK(c, data)
}
