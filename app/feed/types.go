package feed

import (
	"time"
)

type Metadata struct {
	Title       string
	Link        string
	Description string
	ImageURL    string
	Language    string
}

type Item struct {
	GUID        string
	Title       string
	Link        string
	Author      string
	Summary     string
	Content     string
	PublishedAt *time.Time
	Categories  []string

	ContentHash string
}

// FetchResult is returned from every fetch cycle. Success=false is a value,
// never a panic or a passed-through error, so the caller's status update
// always runs.
type FetchResult struct {
	Success         bool
	ArticlesFound   int
	ArticlesNew     int
	ArticlesUpdated int
	Duration        time.Duration
	Error           string
}

// Resolution is the outcome of resolving a subscription address. Pure data:
// the resolver performs no network I/O.
type Resolution struct {
	IsValid bool
	FeedURL string
	BaseURL string
	Error   string
}

// Extraction is the content/title pair recovered from an article page.
type Extraction struct {
	Content string
	Title   string
}
