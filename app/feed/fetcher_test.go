package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/rss-deck/app/database"
)

type fakeFeedRepo struct {
	statusUpdates []database.FetchStatusUpdate
	history       []database.FetchHistoryEntry
}

func (r *fakeFeedRepo) GetFeed(id string) (*database.Feed, error)         { return nil, nil }
func (r *fakeFeedRepo) GetFeedByURL(url string) (*database.Feed, error)   { return nil, nil }
func (r *fakeFeedRepo) GetAllFeeds() ([]database.Feed, error)             { return nil, nil }
func (r *fakeFeedRepo) GetFeedCount() (int, error)                        { return 0, nil }
func (r *fakeFeedRepo) SetFeedEnabled(id string, enabled bool) error      { return nil }
func (r *fakeFeedRepo) GetFetchStatus(feedID string) (*database.FetchStatus, error) {
	return nil, nil
}
func (r *fakeFeedRepo) GetDueFeeds(now time.Time, limit int) ([]database.Feed, error) {
	return nil, nil
}
func (r *fakeFeedRepo) UpsertFeed(url, title, siteURL, iconURL string, refreshInterval int) (string, error) {
	return "", nil
}
func (r *fakeFeedRepo) UpdateFetchStatus(feedID string, update database.FetchStatusUpdate) error {
	r.statusUpdates = append(r.statusUpdates, update)
	return nil
}
func (r *fakeFeedRepo) AddFetchHistory(entry database.FetchHistoryEntry) error {
	r.history = append(r.history, entry)
	return nil
}

type fakeArticleRepo struct {
	articles  map[string]database.Article
	failLinks map[string]bool
}

func newFakeArticleRepo() *fakeArticleRepo {
	return &fakeArticleRepo{
		articles:  make(map[string]database.Article),
		failLinks: make(map[string]bool),
	}
}

func (r *fakeArticleRepo) Exists(feedID, contentHash string) (bool, error) {
	_, ok := r.articles[feedID+"|"+contentHash]
	return ok, nil
}

func (r *fakeArticleRepo) Insert(article database.Article) (string, error) {
	if r.failLinks[article.Link] {
		return "", fmt.Errorf("simulated insert failure")
	}
	r.articles[article.FeedID+"|"+article.ContentHash] = article
	return article.ContentHash, nil
}

func (r *fakeArticleRepo) GetByID(id string) (*database.Article, error)    { return nil, nil }
func (r *fakeArticleRepo) GetByFeed(feedID string, limit int) ([]database.Article, error) {
	return nil, nil
}
func (r *fakeArticleRepo) GetStubArticles(feedID string, maxContentLength, limit int) ([]database.Article, error) {
	return nil, nil
}
func (r *fakeArticleRepo) CountByFeed(feedID string) (int, error) { return len(r.articles), nil }
func (r *fakeArticleRepo) CountAll() (int, error)                 { return len(r.articles), nil }
func (r *fakeArticleRepo) UpdateContent(id, content string) error { return nil }
func (r *fakeArticleRepo) UpdateTranslation(id, translation string) error { return nil }

type fakeLogRepo struct {
	entries []database.FetchLogEntry
}

func (r *fakeLogRepo) Insert(entry database.FetchLogEntry) error {
	r.entries = append(r.entries, entry)
	return nil
}
func (r *fakeLogRepo) RecentByFeed(feedID string, limit int) ([]database.FetchLogEntry, error) {
	return r.entries, nil
}
func (r *fakeLogRepo) Recent(limit int) ([]database.FetchLogEntry, error) {
	return r.entries, nil
}

type staticClient struct {
	client *http.Client
}

func (s *staticClient) Client() *http.Client { return s.client }

const testFeedXML = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    <item>
      <title>First</title>
      <link>https://example.com/first</link>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Second</title>
      <link>https://example.com/second</link>
      <pubDate>Mon, 03 Jul 2023 11:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Third</title>
      <link>https://example.com/third</link>
      <pubDate>Mon, 03 Jul 2023 12:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func newTestFetcher(feedRepo *fakeFeedRepo, articleRepo *fakeArticleRepo, client *http.Client) *Fetcher {
	logger := NewFetchLogger(&fakeLogRepo{})
	return NewFetcher(feedRepo, articleRepo, NewParser(), logger,
		&staticClient{client: client}, "test-agent", "")
}

func testFeed(url string) database.Feed {
	return database.Feed{
		ID:              "feed-1",
		URL:             url,
		RefreshInterval: 30,
		Enabled:         true,
	}
}

func TestFetchIngestsNewArticles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testFeedXML))
	}))
	defer server.Close()

	feedRepo := &fakeFeedRepo{}
	articleRepo := newFakeArticleRepo()
	fetcher := newTestFetcher(feedRepo, articleRepo, server.Client())

	result := fetcher.Run(context.Background(), testFeed(server.URL))

	if !result.Success {
		t.Fatalf("Expected success, got error: %s", result.Error)
	}
	if result.ArticlesFound != 3 {
		t.Errorf("Expected 3 articles found, got: %d", result.ArticlesFound)
	}
	if result.ArticlesNew != 3 {
		t.Errorf("Expected 3 new articles, got: %d", result.ArticlesNew)
	}
}

func TestFetchIsIdempotent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testFeedXML))
	}))
	defer server.Close()

	feedRepo := &fakeFeedRepo{}
	articleRepo := newFakeArticleRepo()
	fetcher := newTestFetcher(feedRepo, articleRepo, server.Client())

	first := fetcher.Run(context.Background(), testFeed(server.URL))
	second := fetcher.Run(context.Background(), testFeed(server.URL))

	if first.ArticlesNew != 3 {
		t.Errorf("Expected 3 new articles on first run, got: %d", first.ArticlesNew)
	}
	if second.ArticlesNew != 0 {
		t.Errorf("Expected 0 new articles on second run, got: %d", second.ArticlesNew)
	}
	if len(articleRepo.articles) != 3 {
		t.Errorf("Expected 3 stored articles after two runs, got: %d", len(articleRepo.articles))
	}
}

func TestFetchAlwaysReschedules(t *testing.T) {
	cases := []struct {
		name       string
		statusCode int
		body       string
		success    bool
	}{
		{"success", http.StatusOK, testFeedXML, true},
		{"http error", http.StatusInternalServerError, "", false},
		{"parse error", http.StatusOK, "definitely not xml", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.statusCode)
				w.Write([]byte(tc.body))
			}))
			defer server.Close()

			feedRepo := &fakeFeedRepo{}
			fetcher := newTestFetcher(feedRepo, newFakeArticleRepo(), server.Client())

			result := fetcher.Run(context.Background(), testFeed(server.URL))

			if result.Success != tc.success {
				t.Errorf("Expected success=%v, got %v (error: %s)", tc.success, result.Success, result.Error)
			}

			if len(feedRepo.statusUpdates) != 1 {
				t.Fatalf("Expected exactly one status update, got: %d", len(feedRepo.statusUpdates))
			}

			update := feedRepo.statusUpdates[0]
			wantNext := update.FetchedAt.Add(30 * time.Minute)
			if !update.NextFetchAt.Equal(wantNext) {
				t.Errorf("Expected next fetch at %v, got: %v", wantNext, update.NextFetchAt)
			}

			if len(feedRepo.history) != 1 {
				t.Errorf("Expected one history row, got: %d", len(feedRepo.history))
			}
		})
	}
}

func TestFetchUnreachableHostReturnsResult(t *testing.T) {
	feedRepo := &fakeFeedRepo{}
	fetcher := newTestFetcher(feedRepo, newFakeArticleRepo(), &http.Client{Timeout: time.Second})

	result := fetcher.Run(context.Background(), testFeed("http://127.0.0.1:1/feed"))

	if result.Success {
		t.Fatal("Expected failure for unreachable host")
	}
	if result.Error == "" {
		t.Error("Expected error message in result")
	}
	if len(feedRepo.statusUpdates) != 1 {
		t.Errorf("Expected status update even on failure, got: %d", len(feedRepo.statusUpdates))
	}
}

func TestFetchPartialFailureIsolation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testFeedXML))
	}))
	defer server.Close()

	feedRepo := &fakeFeedRepo{}
	articleRepo := newFakeArticleRepo()
	articleRepo.failLinks["https://example.com/second"] = true
	fetcher := newTestFetcher(feedRepo, articleRepo, server.Client())

	result := fetcher.Run(context.Background(), testFeed(server.URL))

	if !result.Success {
		t.Fatalf("Expected success despite one poisoned entry, got error: %s", result.Error)
	}
	if result.ArticlesNew != 2 {
		t.Errorf("Expected 2 new articles with one failing, got: %d", result.ArticlesNew)
	}
	if len(articleRepo.articles) != 2 {
		t.Errorf("Expected siblings of the poisoned entry stored, got: %d", len(articleRepo.articles))
	}
}

func TestFetchSkipsEntriesWithoutTitleAndLink(t *testing.T) {
	emptyItemXML := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <item><description>no title, no link</description></item>
    <item><title>Real</title><link>https://example.com/real</link></item>
  </channel>
</rss>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(emptyItemXML))
	}))
	defer server.Close()

	articleRepo := newFakeArticleRepo()
	fetcher := newTestFetcher(&fakeFeedRepo{}, articleRepo, server.Client())

	result := fetcher.Run(context.Background(), testFeed(server.URL))

	if result.ArticlesNew != 1 {
		t.Errorf("Expected 1 new article, got: %d", result.ArticlesNew)
	}
}

func TestFetchSendsBrowserHeaders(t *testing.T) {
	var gotUserAgent, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte(testFeedXML))
	}))
	defer server.Close()

	fetcher := newTestFetcher(&fakeFeedRepo{}, newFakeArticleRepo(), server.Client())
	fetcher.Run(context.Background(), testFeed(server.URL))

	if gotUserAgent != "test-agent" {
		t.Errorf("Expected configured user agent, got: %s", gotUserAgent)
	}
	if !strings.Contains(gotAccept, "application/rss+xml") {
		t.Errorf("Expected feed Accept header, got: %s", gotAccept)
	}
}
