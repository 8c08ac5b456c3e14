package database

import (
	"time"
)

// FetchStatusUpdate carries the fields written after every fetch attempt.
// NextFetchAt is always set, success or failure, so a feed is never left
// without a due time.
type FetchStatusUpdate struct {
	FetchedAt    time.Time
	Success      bool
	Error        string
	DurationMs   int64
	ArticleCount int
	NextFetchAt  time.Time
}

type FeedRepository interface {
	GetFeed(id string) (*Feed, error)
	GetFeedByURL(url string) (*Feed, error)
	GetAllFeeds() ([]Feed, error)
	GetDueFeeds(now time.Time, limit int) ([]Feed, error)
	GetFeedCount() (int, error)

	UpsertFeed(url, title, siteURL, iconURL string, refreshInterval int) (string, error)
	SetFeedEnabled(id string, enabled bool) error

	GetFetchStatus(feedID string) (*FetchStatus, error)
	UpdateFetchStatus(feedID string, update FetchStatusUpdate) error
	AddFetchHistory(entry FetchHistoryEntry) error
}

type ArticleRepository interface {
	Exists(feedID, contentHash string) (bool, error)
	Insert(article Article) (string, error)
	GetByID(id string) (*Article, error)
	GetByFeed(feedID string, limit int) ([]Article, error)
	GetStubArticles(feedID string, maxContentLength, limit int) ([]Article, error)
	CountByFeed(feedID string) (int, error)
	CountAll() (int, error)

	UpdateContent(id, content string) error
	UpdateTranslation(id, translation string) error
}

type LogRepository interface {
	Insert(entry FetchLogEntry) error
	RecentByFeed(feedID string, limit int) ([]FetchLogEntry, error)
	Recent(limit int) ([]FetchLogEntry, error)
}
