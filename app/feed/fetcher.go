package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lysyi3m/rss-deck/app/database"
)

const fetchTimeout = 10 * time.Second

// ClientProvider hands out the HTTP client used for outbound requests.
// Satisfied by proxy.Resolver; re-queried each run so proxy invalidation
// takes effect without restarting.
type ClientProvider interface {
	Client() *http.Client
}

type Fetcher struct {
	feedRepo    database.FeedRepository
	articleRepo database.ArticleRepository
	parser      *Parser
	logger      *FetchLogger
	clients     ClientProvider
	userAgent   string
	gatewayBase string
}

func NewFetcher(feedRepo database.FeedRepository, articleRepo database.ArticleRepository,
	parser *Parser, logger *FetchLogger, clients ClientProvider,
	userAgent, gatewayBase string) *Fetcher {
	return &Fetcher{
		feedRepo:    feedRepo,
		articleRepo: articleRepo,
		parser:      parser,
		logger:      logger,
		clients:     clients,
		userAgent:   userAgent,
		gatewayBase: gatewayBase,
	}
}

// Run executes one ingestion cycle for a subscription: resolve the address,
// fetch, parse, dedup and persist, then update scheduling metadata. The
// status update runs on every outcome, so a persistently failing feed is
// still rescheduled.
func (f *Fetcher) Run(ctx context.Context, feed database.Feed) FetchResult {
	start := time.Now().UTC()

	result := f.ingest(ctx, feed)
	result.Duration = time.Since(start)

	f.updateStatus(feed, start, result)

	return result
}

func (f *Fetcher) ingest(ctx context.Context, feed database.Feed) FetchResult {
	fetchURL := feed.URL
	resolution := ResolveFeedURL(feed.URL, ResolveOptions{GatewayBaseURL: f.gatewayBase})
	if resolution.IsValid {
		fetchURL = resolution.FeedURL
	} else {
		// Resolver failure degrades to treating the address as a literal URL.
		f.logger.Log(feed.ID, LevelWarning, "RESOLVE", feed.URL, 0, 0,
			fmt.Sprintf("address not resolvable, fetching as-is: %s", resolution.Error))
	}

	f.logger.Log(feed.ID, LevelInfo, "FETCH", fetchURL, 0, 0, "fetch started")

	data, httpStatus, err := f.fetch(ctx, fetchURL)
	if err != nil {
		f.logger.Log(feed.ID, LevelError, "FETCH", fetchURL, httpStatus, 0, err.Error())
		return FetchResult{Error: err.Error()}
	}

	_, items, err := f.parser.Run(data)
	if err != nil {
		f.logger.Log(feed.ID, LevelError, "FETCH", fetchURL, httpStatus, 0,
			fmt.Sprintf("parse failed: %s", err))
		return FetchResult{Error: err.Error()}
	}

	f.logger.Log(feed.ID, LevelInfo, "PARSE", fetchURL, httpStatus, 0,
		fmt.Sprintf("parsed %d items", len(items)))

	result := FetchResult{Success: true, ArticlesFound: len(items)}

	for _, item := range items {
		if item.Title == "" && item.Link == "" {
			continue
		}

		exists, err := f.articleRepo.Exists(feed.ID, item.ContentHash)
		if err != nil {
			// Partial-success semantics: one bad entry never aborts the rest.
			f.logger.Log(feed.ID, LevelWarning, "SAVE", item.Link, 0, 0,
				fmt.Sprintf("existence check failed: %s", err))
			continue
		}
		if exists {
			continue
		}

		article := database.Article{
			FeedID:      feed.ID,
			ContentHash: item.ContentHash,
			Title:       item.Title,
			Link:        item.Link,
			Author:      item.Author,
			PublishedAt: item.PublishedAt,
			Content:     item.Content,
			Summary:     item.Summary,
			Categories:  item.Categories,
		}

		if _, err := f.articleRepo.Insert(article); err != nil {
			f.logger.Log(feed.ID, LevelWarning, "SAVE", item.Link, 0, 0,
				fmt.Sprintf("insert failed: %s", err))
			continue
		}

		result.ArticlesNew++
		f.logger.Log(feed.ID, LevelSuccess, "SAVE", item.Link, 0, 0,
			fmt.Sprintf("new article: %s", item.Title))
	}

	f.logger.Log(feed.ID, LevelSuccess, "FETCH", fetchURL, httpStatus, 0,
		fmt.Sprintf("fetch completed: %d found, %d new", result.ArticlesFound, result.ArticlesNew))

	return result
}

func (f *Fetcher) fetch(ctx context.Context, url string) ([]byte, int, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	// Some origins reject bare scripted clients, so the header set mimics a
	// browser.
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/html;q=0.8, */*;q=0.7")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,zh-CN;q=0.8")

	resp, err := f.clients.Client().Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, resp.StatusCode, nil
}

// updateStatus writes fetch status and appends one history row regardless of
// outcome. Failures here are logged to slog only; there is no fallback layer.
func (f *Fetcher) updateStatus(feed database.Feed, fetchedAt time.Time, result FetchResult) {
	articleCount, err := f.articleRepo.CountByFeed(feed.ID)
	if err != nil {
		slog.Warn("Article count failed", "feed_id", feed.ID, "error", err)
	}

	update := database.FetchStatusUpdate{
		FetchedAt:    fetchedAt,
		Success:      result.Success,
		Error:        result.Error,
		DurationMs:   result.Duration.Milliseconds(),
		ArticleCount: articleCount,
		NextFetchAt:  fetchedAt.Add(time.Duration(feed.RefreshInterval) * time.Minute),
	}

	if err := f.feedRepo.UpdateFetchStatus(feed.ID, update); err != nil {
		slog.Error("Fetch status update failed", "feed_id", feed.ID, "error", err)
	}

	status := "success"
	if !result.Success {
		status = "error"
	}

	history := database.FetchHistoryEntry{
		FeedID:     feed.ID,
		FetchedAt:  fetchedAt,
		Status:     status,
		DurationMs: result.Duration.Milliseconds(),
		ItemsFound: result.ArticlesFound,
		ItemsNew:   result.ArticlesNew,
	}

	if err := f.feedRepo.AddFetchHistory(history); err != nil {
		slog.Error("Fetch history append failed", "feed_id", feed.ID, "error", err)
	}
}
