package database

import (
	"fmt"
)

var _ LogRepository = (*logRepository)(nil)

type logRepository struct {
	db *DB
}

func NewLogRepository(db *DB) LogRepository {
	return &logRepository{db: db}
}

func (r *logRepository) Insert(entry FetchLogEntry) error {
	var feedID interface{}
	if entry.FeedID != "" {
		feedID = entry.FeedID
	}

	_, err := r.db.Exec(`
		INSERT INTO fetch_logs (feed_id, level, action, url, http_status, duration_ms, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, feedID, entry.Level, entry.Action, entry.URL, entry.HTTPStatus,
		entry.DurationMs, entry.Message)

	if err != nil {
		return fmt.Errorf("failed to insert log entry: %w", err)
	}

	return nil
}

const logColumns = `id, COALESCE(feed_id::text, ''), created_at, level, action,
	       COALESCE(url, ''), http_status, duration_ms, COALESCE(message, '')`

func (r *logRepository) RecentByFeed(feedID string, limit int) ([]FetchLogEntry, error) {
	rows, err := r.db.Query(`
		SELECT `+logColumns+`
		FROM fetch_logs
		WHERE feed_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, feedID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get log entries: %w", err)
	}
	defer rows.Close()

	return r.collectEntries(rows)
}

func (r *logRepository) Recent(limit int) ([]FetchLogEntry, error) {
	rows, err := r.db.Query(`
		SELECT `+logColumns+`
		FROM fetch_logs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get log entries: %w", err)
	}
	defer rows.Close()

	return r.collectEntries(rows)
}

func (r *logRepository) collectEntries(rows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
}) ([]FetchLogEntry, error) {
	var entries []FetchLogEntry
	for rows.Next() {
		var e FetchLogEntry
		err := rows.Scan(
			&e.ID, &e.FeedID, &e.CreatedAt, &e.Level, &e.Action,
			&e.URL, &e.HTTPStatus, &e.DurationMs, &e.Message,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log row: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating log rows: %w", err)
	}

	return entries, nil
}
