package database

import (
	"time"
)

type Feed struct {
	ID              string // Database UUID
	URL             string // Subscription address as entered by the user
	URLHash         string // Stable hash of the address, partition key for logs/history
	Title           string
	SiteURL         string
	IconURL         string
	RefreshInterval int // minutes
	Enabled         bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type FetchStatus struct {
	FeedID         string
	LastFetchAt    *time.Time
	LastSuccessAt  *time.Time
	LastStatus     string // "success" or "error"
	LastError      string
	LastDurationMs int64
	ArticleCount   int
	NextFetchAt    *time.Time
	UpdatedAt      time.Time
}

type FetchHistoryEntry struct {
	ID         int64
	FeedID     string
	FetchedAt  time.Time
	Status     string
	DurationMs int64
	ItemsFound int
	ItemsNew   int
}

type Article struct {
	ID          string
	FeedID      string
	ContentHash string
	Title       string
	Link        string
	Author      string
	PublishedAt *time.Time
	Content     string
	Summary     string
	Categories  []string
	Translation string
	CreatedAt   time.Time
}

type FetchLogEntry struct {
	ID         int64
	FeedID     string
	CreatedAt  time.Time
	Level      string // INFO, SUCCESS, WARNING, ERROR
	Action     string
	URL        string
	HTTPStatus int
	DurationMs int64
	Message    string
}
