package database

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

var _ FeedRepository = (*feedRepository)(nil)

type feedRepository struct {
	db *DB
}

func NewFeedRepository(db *DB) FeedRepository {
	return &feedRepository{db: db}
}

// HashURL returns the stable hash of a subscription address, used as the
// partition key for logs and history.
func HashURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

const feedColumns = `id, url, url_hash, COALESCE(title, ''), COALESCE(site_url, ''),
	       COALESCE(icon_url, ''), refresh_interval, enabled, created_at, updated_at`

func (r *feedRepository) scanFeed(row interface{ Scan(...interface{}) error }) (*Feed, error) {
	var feed Feed
	err := row.Scan(
		&feed.ID, &feed.URL, &feed.URLHash, &feed.Title, &feed.SiteURL,
		&feed.IconURL, &feed.RefreshInterval, &feed.Enabled,
		&feed.CreatedAt, &feed.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &feed, nil
}

func (r *feedRepository) GetFeed(id string) (*Feed, error) {
	row := r.db.QueryRow(`
		SELECT `+feedColumns+`
		FROM feeds
		WHERE id = $1
	`, id)

	feed, err := r.scanFeed(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}

	return feed, nil
}

func (r *feedRepository) GetFeedByURL(url string) (*Feed, error) {
	row := r.db.QueryRow(`
		SELECT `+feedColumns+`
		FROM feeds
		WHERE url = $1
	`, url)

	feed, err := r.scanFeed(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed by URL: %w", err)
	}

	return feed, nil
}

func (r *feedRepository) GetAllFeeds() ([]Feed, error) {
	rows, err := r.db.Query(`
		SELECT ` + feedColumns + `
		FROM feeds
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get feeds: %w", err)
	}
	defer rows.Close()

	return r.collectFeeds(rows)
}

// GetDueFeeds returns enabled feeds whose next fetch time has passed or was
// never set. Consulted by the external trigger, not by any internal timer.
func (r *feedRepository) GetDueFeeds(now time.Time, limit int) ([]Feed, error) {
	rows, err := r.db.Query(`
		SELECT `+feedColumns+`
		FROM feeds f
		WHERE f.enabled = true
		  AND NOT EXISTS (
		      SELECT 1 FROM fetch_status s
		      WHERE s.feed_id = f.id AND s.next_fetch_at > $1
		  )
		ORDER BY f.created_at
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get due feeds: %w", err)
	}
	defer rows.Close()

	return r.collectFeeds(rows)
}

func (r *feedRepository) collectFeeds(rows *sql.Rows) ([]Feed, error) {
	var feeds []Feed
	for rows.Next() {
		feed, err := r.scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, *feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}

	return feeds, nil
}

func (r *feedRepository) GetFeedCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM feeds").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}

func (r *feedRepository) UpsertFeed(url, title, siteURL, iconURL string, refreshInterval int) (string, error) {
	var id string
	err := r.db.QueryRow(`
		INSERT INTO feeds (url, url_hash, title, site_url, icon_url, refresh_interval)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (url) DO UPDATE SET
			title = EXCLUDED.title,
			site_url = EXCLUDED.site_url,
			icon_url = EXCLUDED.icon_url,
			refresh_interval = EXCLUDED.refresh_interval,
			updated_at = NOW()
		RETURNING id
	`, url, HashURL(url), title, siteURL, iconURL, refreshInterval).Scan(&id)

	if err != nil {
		return "", fmt.Errorf("failed to upsert feed: %w", err)
	}

	return id, nil
}

func (r *feedRepository) SetFeedEnabled(id string, enabled bool) error {
	_, err := r.db.Exec(`
		UPDATE feeds
		SET enabled = $2, updated_at = NOW()
		WHERE id = $1
	`, id, enabled)

	if err != nil {
		return fmt.Errorf("failed to set feed enabled status: %w", err)
	}

	return nil
}

func (r *feedRepository) GetFetchStatus(feedID string) (*FetchStatus, error) {
	var status FetchStatus
	err := r.db.QueryRow(`
		SELECT feed_id, last_fetch_at, last_success_at, COALESCE(last_status, ''),
		       COALESCE(last_error, ''), last_duration_ms, article_count,
		       next_fetch_at, updated_at
		FROM fetch_status
		WHERE feed_id = $1
	`, feedID).Scan(
		&status.FeedID, &status.LastFetchAt, &status.LastSuccessAt, &status.LastStatus,
		&status.LastError, &status.LastDurationMs, &status.ArticleCount,
		&status.NextFetchAt, &status.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fetch status: %w", err)
	}

	return &status, nil
}

// UpdateFetchStatus upserts the per-feed status row. last_success_at is only
// advanced on success; next_fetch_at is written unconditionally.
func (r *feedRepository) UpdateFetchStatus(feedID string, update FetchStatusUpdate) error {
	status := "error"
	var successAt *time.Time
	if update.Success {
		status = "success"
		successAt = &update.FetchedAt
	}

	_, err := r.db.Exec(`
		INSERT INTO fetch_status (feed_id, last_fetch_at, last_success_at, last_status,
			last_error, last_duration_ms, article_count, next_fetch_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (feed_id) DO UPDATE SET
			last_fetch_at = EXCLUDED.last_fetch_at,
			last_success_at = COALESCE(EXCLUDED.last_success_at, fetch_status.last_success_at),
			last_status = EXCLUDED.last_status,
			last_error = EXCLUDED.last_error,
			last_duration_ms = EXCLUDED.last_duration_ms,
			article_count = EXCLUDED.article_count,
			next_fetch_at = EXCLUDED.next_fetch_at,
			updated_at = NOW()
	`, feedID, update.FetchedAt, successAt, status, update.Error,
		update.DurationMs, update.ArticleCount, update.NextFetchAt)

	if err != nil {
		return fmt.Errorf("failed to update fetch status: %w", err)
	}

	return nil
}

func (r *feedRepository) AddFetchHistory(entry FetchHistoryEntry) error {
	_, err := r.db.Exec(`
		INSERT INTO fetch_history (feed_id, fetched_at, status, duration_ms, items_found, items_new)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.FeedID, entry.FetchedAt, entry.Status, entry.DurationMs,
		entry.ItemsFound, entry.ItemsNew)

	if err != nil {
		return fmt.Errorf("failed to add fetch history: %w", err)
	}

	return nil
}
