package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/rss-deck/app/database"
	"github.com/lysyi3m/rss-deck/app/feed"
)

var _ TaskRunnerInterface = (*Runner)(nil)

const dueFeedsBatchSize = 50

// Runner is a worker pool draining a task queue. It owns no timer: tasks are
// enqueued by API calls only, so scheduling stays with the external trigger
// and the runner remains purely reactive.
type Runner struct {
	feedRepo    database.FeedRepository
	articleRepo database.ArticleRepository
	fetcher     *feed.Fetcher
	extractor   *feed.ContentExtractor
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
}

func NewRunner(feedRepo database.FeedRepository, articleRepo database.ArticleRepository,
	fetcher *feed.Fetcher, extractor *feed.ContentExtractor, workerCount int) *Runner {
	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		feedRepo:    feedRepo,
		articleRepo: articleRepo,
		fetcher:     fetcher,
		extractor:   extractor,
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, 300),
	}
}

func (r *Runner) Start() {
	for i := 0; i < r.workerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
}

func (r *Runner) Stop() {
	r.cancel()
	r.wg.Wait()
	close(r.taskQueue)
}

func (r *Runner) EnqueueTask(task TaskInterface) error {
	select {
	case r.taskQueue <- task:
		return nil
	case <-r.ctx.Done():
		return r.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (r *Runner) EnqueueFetch(f database.Feed) error {
	return r.EnqueueTask(NewFetchFeedTask(f, r.fetcher))
}

func (r *Runner) EnqueueExtract(feedID string) error {
	return r.EnqueueTask(NewExtractContentTask(feedID, r.articleRepo, r.extractor))
}

// EnqueueDueFeeds fans out fetch tasks for every feed whose next-due time has
// passed. Invoked by the external trigger (a cron hitting the API), never by
// an internal timer.
func (r *Runner) EnqueueDueFeeds(ctx context.Context) (int, error) {
	feeds, err := r.feedRepo.GetDueFeeds(time.Now().UTC(), dueFeedsBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to get due feeds: %w", err)
	}

	enqueued := 0
	for _, f := range feeds {
		if err := r.EnqueueFetch(f); err != nil {
			slog.Warn("Failed to enqueue fetch task", "feed_id", f.ID, "error", err)
			continue
		}
		enqueued++
	}

	return enqueued, nil
}

func (r *Runner) worker(id int) {
	defer r.wg.Done()

	for {
		select {
		case task, ok := <-r.taskQueue:
			if !ok {
				return
			}
			r.executeTask(id, task)

		case <-r.ctx.Done():
			return
		}
	}
}

func (r *Runner) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(r.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		if task.GetMaxRetries() > 0 {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
		return
	}

	task.IncrementRetryCount()
	retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
	if retryDelay > 30*time.Second {
		retryDelay = 30 * time.Second
	}

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "feed_id", task.GetFeedID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	go func() {
		time.Sleep(retryDelay)
		select {
		case <-r.ctx.Done():
			slog.Debug("Runner stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
			return
		default:
			if retryErr := r.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			}
		}
	}()
}
