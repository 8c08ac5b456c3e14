package feed

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lysyi3m/rss-deck/app/database"
)

const (
	LevelInfo    = "INFO"
	LevelSuccess = "SUCCESS"
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
)

// FetchLogger persists pipeline events as fetch log rows and mirrors them to
// slog. A persistence failure of the log row itself is only reported to slog;
// there is no further fallback layer.
type FetchLogger struct {
	logRepo database.LogRepository
}

func NewFetchLogger(logRepo database.LogRepository) *FetchLogger {
	return &FetchLogger{logRepo: logRepo}
}

func (l *FetchLogger) Log(feedID, level, action, url string, httpStatus int, duration time.Duration, message string) {
	entry := database.FetchLogEntry{
		FeedID:     feedID,
		Level:      level,
		Action:     action,
		URL:        url,
		HTTPStatus: httpStatus,
		DurationMs: duration.Milliseconds(),
		Message:    message,
	}

	attrs := []any{"action", action, "url", url}
	if httpStatus != 0 {
		attrs = append(attrs, "status", httpStatus)
	}
	if duration != 0 {
		attrs = append(attrs, "duration", duration.String())
	}

	switch level {
	case LevelError:
		slog.Error(message, attrs...)
	case LevelWarning:
		slog.Warn(message, attrs...)
	default:
		slog.Info(message, attrs...)
	}

	if err := l.logRepo.Insert(entry); err != nil {
		slog.Error("Failed to persist fetch log entry", "action", action, "error", err)
	}
}

// FormatEntry renders a log row in the line format consumed by the UI layer:
// [timestamp] LEVEL [status] ACTION url (duration) - message
func FormatEntry(e database.FetchLogEntry) string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] %s", e.CreatedAt.Format(time.RFC3339), e.Level)
	if e.HTTPStatus != 0 {
		fmt.Fprintf(&b, " [%d]", e.HTTPStatus)
	}
	fmt.Fprintf(&b, " %s %s", e.Action, e.URL)
	if e.DurationMs != 0 {
		fmt.Fprintf(&b, " (%dms)", e.DurationMs)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, " - %s", e.Message)
	}

	return b.String()
}
