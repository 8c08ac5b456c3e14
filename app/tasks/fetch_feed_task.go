package tasks

import (
	"context"
	"log/slog"

	"github.com/lysyi3m/rss-deck/app/database"
	"github.com/lysyi3m/rss-deck/app/feed"
)

type FetchFeedTask struct {
	Task
	Feed    database.Feed
	fetcher *feed.Fetcher
}

func NewFetchFeedTask(f database.Feed, fetcher *feed.Fetcher) *FetchFeedTask {
	task := NewTask(TaskTypeFetchFeed, f.ID)
	// A failed fetch is a recorded outcome with its own next-due time, not a
	// task error, so the worker retry machinery stays out of it.
	task.MaxRetries = 0

	return &FetchFeedTask{
		Task:    task,
		Feed:    f,
		fetcher: fetcher,
	}
}

func (t *FetchFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.Feed.Enabled {
		slog.Debug("Feed disabled, skipping", "feed_id", t.Feed.ID)
		return nil
	}

	result := t.fetcher.Run(ctx, t.Feed)

	slog.Info("Task completed",
		"type", t.GetType(),
		"feed_id", t.Feed.ID,
		"success", result.Success,
		"found", result.ArticlesFound,
		"new", result.ArticlesNew,
		"duration", result.Duration)

	return nil
}
