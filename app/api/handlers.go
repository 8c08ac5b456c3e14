package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/rss-deck/app/cfg"
	"github.com/lysyi3m/rss-deck/app/database"
	"github.com/lysyi3m/rss-deck/app/enrich"
	"github.com/lysyi3m/rss-deck/app/feed"
	"github.com/lysyi3m/rss-deck/app/proxy"
	"github.com/lysyi3m/rss-deck/app/tasks"
)

type Handler struct {
	feedRepo      database.FeedRepository
	articleRepo   database.ArticleRepository
	logRepo       database.LogRepository
	runner        tasks.TaskRunnerInterface
	queue         *enrich.Queue
	extractor     *feed.ContentExtractor
	proxyResolver *proxy.Resolver
	targetLang    string
}

func NewHandler(feedRepo database.FeedRepository, articleRepo database.ArticleRepository,
	logRepo database.LogRepository, runner tasks.TaskRunnerInterface, queue *enrich.Queue,
	extractor *feed.ContentExtractor, proxyResolver *proxy.Resolver) *Handler {
	return &Handler{
		feedRepo:      feedRepo,
		articleRepo:   articleRepo,
		logRepo:       logRepo,
		runner:        runner,
		queue:         queue,
		extractor:     extractor,
		proxyResolver: proxyResolver,
		targetLang:    cfg.Get().EnrichTargetLang,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := gin.H{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"version":   cfg.Get().Version,
	}

	if feedCount, err := h.feedRepo.GetFeedCount(); err == nil {
		health["feeds"] = feedCount
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := gin.H{}

	if feedCount, err := h.feedRepo.GetFeedCount(); err == nil {
		stats["feeds"] = feedCount
	}
	if articleCount, err := h.articleRepo.CountAll(); err == nil {
		stats["articles"] = articleCount
	}

	proxyURL := ""
	if u := h.proxyResolver.ProxyURL(); u != nil {
		proxyURL = u.String()
	}
	stats["proxy"] = proxyURL

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) ListFeeds(c *gin.Context) {
	feeds, err := h.feedRepo.GetAllFeeds()
	if err != nil {
		slog.Error("Database error", "operation", "list_feeds", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	out := make([]gin.H, 0, len(feeds))
	for _, f := range feeds {
		info := gin.H{
			"id":               f.ID,
			"url":              f.URL,
			"title":            f.Title,
			"site_url":         f.SiteURL,
			"icon_url":         f.IconURL,
			"refresh_interval": f.RefreshInterval,
			"enabled":          f.Enabled,
		}

		if status, err := h.feedRepo.GetFetchStatus(f.ID); err == nil && status != nil {
			info["last_fetch_at"] = status.LastFetchAt
			info["last_status"] = status.LastStatus
			info["last_error"] = status.LastError
			info["next_fetch_at"] = status.NextFetchAt
			info["article_count"] = status.ArticleCount
		}

		out = append(out, info)
	}

	c.JSON(http.StatusOK, gin.H{"feeds": out})
}

type createFeedRequest struct {
	URL             string `json:"url" binding:"required"`
	Title           string `json:"title"`
	SiteURL         string `json:"site_url"`
	RefreshInterval int    `json:"refresh_interval"`
}

func (h *Handler) CreateFeed(c *gin.Context) {
	var req createFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.RefreshInterval <= 0 {
		req.RefreshInterval = 60
	}

	iconURL := feed.FaviconURL(req.SiteURL)

	id, err := h.feedRepo.UpsertFeed(req.URL, req.Title, req.SiteURL, iconURL, req.RefreshInterval)
	if err != nil {
		slog.Error("Database error", "operation", "create_feed", "url", req.URL, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	resolution := feed.ResolveFeedURL(req.URL, feed.ResolveOptions{GatewayBaseURL: cfg.Get().GatewayBaseURL})

	c.JSON(http.StatusCreated, gin.H{
		"id":         id,
		"url":        req.URL,
		"resolved":   resolution.IsValid,
		"feed_url":   resolution.FeedURL,
		"resolve_error": resolution.Error,
	})
}

func (h *Handler) GetFeedStatus(c *gin.Context) {
	id := c.Param("id")

	status, err := h.feedRepo.GetFetchStatus(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_status", "feed_id", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if status == nil {
		c.Status(http.StatusNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"feed_id":          status.FeedID,
		"last_fetch_at":    status.LastFetchAt,
		"last_success_at":  status.LastSuccessAt,
		"last_status":      status.LastStatus,
		"last_error":       status.LastError,
		"last_duration_ms": status.LastDurationMs,
		"article_count":    status.ArticleCount,
		"next_fetch_at":    status.NextFetchAt,
	})
}

func (h *Handler) ListArticles(c *gin.Context) {
	id := c.Param("id")
	limit := intQuery(c, "limit", 50)

	articles, err := h.articleRepo.GetByFeed(id, limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_articles", "feed_id", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"articles": articles})
}

func (h *Handler) GetFeedLogs(c *gin.Context) {
	id := c.Param("id")
	limit := intQuery(c, "limit", 100)

	entries, err := h.logRepo.RecentByFeed(id, limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_logs", "feed_id", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, feed.FormatEntry(e))
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries, "lines": lines})
}

// FetchFeed triggers one ingestion cycle for a subscription. This is the
// manual "fetch now" action; the fetch itself runs on the worker pool.
func (h *Handler) FetchFeed(c *gin.Context) {
	id := c.Param("id")

	f, err := h.feedRepo.GetFeed(id)
	if err != nil {
		slog.Error("Database error", "operation", "fetch_feed", "feed_id", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if f == nil {
		c.Status(http.StatusNotFound)
		return
	}

	if err := h.runner.EnqueueFetch(*f); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"feed_id": id, "status": "queued"})
}

// FetchDueFeeds is the endpoint a periodic external caller hits; all
// scheduling lives outside this process.
func (h *Handler) FetchDueFeeds(c *gin.Context) {
	count, err := h.runner.EnqueueDueFeeds(c.Request.Context())
	if err != nil {
		slog.Error("Failed to enqueue due feeds", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"queued": count})
}

func (h *Handler) ExtractFeedContent(c *gin.Context) {
	id := c.Param("id")

	if err := h.runner.EnqueueExtract(id); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"feed_id": id, "status": "queued"})
}

// ExtractArticle recovers full article markup for a single stub entry,
// synchronously, for the reading surface.
func (h *Handler) ExtractArticle(c *gin.Context) {
	id := c.Param("id")

	article, err := h.articleRepo.GetByID(id)
	if err != nil {
		slog.Error("Database error", "operation", "extract_article", "article_id", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if article == nil {
		c.Status(http.StatusNotFound)
		return
	}
	if article.Link == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "article has no link"})
		return
	}

	extraction, err := h.extractor.Extract(c.Request.Context(), article.Link)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	if len(extraction.Content) > len(article.Content) {
		if err := h.articleRepo.UpdateContent(id, extraction.Content); err != nil {
			slog.Error("Failed to store extracted content", "article_id", id, "error", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"content": extraction.Content,
		"title":   extraction.Title,
	})
}

// TranslateArticle enqueues an enrichment job. A cache hit is applied
// synchronously and returned right away; otherwise the job completes in the
// background and the result lands on the article row.
func (h *Handler) TranslateArticle(c *gin.Context) {
	id := c.Param("id")

	article, err := h.articleRepo.GetByID(id)
	if err != nil {
		slog.Error("Database error", "operation", "translate_article", "article_id", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if article == nil {
		c.Status(http.StatusNotFound)
		return
	}

	if article.Translation != "" {
		c.JSON(http.StatusOK, gin.H{"translation": article.Translation, "cached": true})
		return
	}

	applied := make(chan string, 1)

	// The job must outlive the request, so it gets a background context.
	h.queue.Enqueue(context.Background(), enrich.Job{
		ArticleID:  id,
		Text:       article.Content,
		TargetLang: h.targetLang,
		Apply: func(translation string, fromCache bool) {
			if err := h.articleRepo.UpdateTranslation(id, translation); err != nil {
				slog.Error("Failed to store translation", "article_id", id, "error", err)
			}
			if fromCache {
				applied <- translation
			}
		},
	})

	select {
	case translation := <-applied:
		c.JSON(http.StatusOK, gin.H{"translation": translation, "cached": true})
	default:
		c.JSON(http.StatusAccepted, gin.H{"article_id": id, "status": "queued"})
	}
}

type proxySettingsRequest struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	Auto    bool   `json:"auto"`
}

// UpdateProxySettings invalidates the memoized proxy; the next outbound
// request re-resolves.
func (h *Handler) UpdateProxySettings(c *gin.Context) {
	var req proxySettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.proxyResolver.Invalidate(proxy.Config{
		Enabled: req.Enabled,
		URL:     req.URL,
		Auto:    req.Auto,
	})

	proxyURL := ""
	if u := h.proxyResolver.ProxyURL(); u != nil {
		proxyURL = u.String()
	}

	c.JSON(http.StatusOK, gin.H{"proxy": proxyURL})
}

func intQuery(c *gin.Context, name string, fallback int) int {
	if v := c.Query(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
