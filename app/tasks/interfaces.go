package tasks

import (
	"context"

	"github.com/lysyi3m/rss-deck/app/database"
)

type TaskRunnerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	EnqueueFetch(feed database.Feed) error
	EnqueueExtract(feedID string) error
	EnqueueDueFeeds(ctx context.Context) (int, error)
}
