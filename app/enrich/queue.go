package enrich

import (
	"context"
	"log/slog"
	"sync"
)

const DefaultConcurrency = 10

// Job is one enrichment request. Apply receives the translated text; it runs
// synchronously from Enqueue on a cache hit, otherwise from the job's
// goroutine on completion.
type Job struct {
	ArticleID  string
	Text       string
	TargetLang string
	Apply      func(translation string, fromCache bool)
	OnError    func(err error)
}

// Queue runs enrichment jobs with a bounded-concurrency admission gate and a
// per-article single-flight guard. Enqueue is fire-and-forget; completion is
// observed through the job's Apply callback and the cache write-through.
type Queue struct {
	cache      Cache
	translator Translator

	sem chan struct{}

	mu       sync.Mutex
	inflight map[string]struct{}

	wg sync.WaitGroup
}

func NewQueue(cache Cache, translator Translator, concurrency int) *Queue {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Queue{
		cache:      cache,
		translator: translator,
		sem:        make(chan struct{}, concurrency),
		inflight:   make(map[string]struct{}),
	}
}

// Enqueue admits a job unless the same article is already queued or in
// flight. An unexpired cached translation is applied synchronously without
// any network work.
func (q *Queue) Enqueue(ctx context.Context, job Job) {
	q.mu.Lock()
	if _, busy := q.inflight[job.ArticleID]; busy {
		q.mu.Unlock()
		slog.Debug("Enrichment already in flight, ignoring", "article_id", job.ArticleID)
		return
	}
	q.inflight[job.ArticleID] = struct{}{}
	q.mu.Unlock()

	if cached, hit, err := q.cache.Get(ctx, job.ArticleID); err != nil {
		slog.Warn("Translation cache read failed", "article_id", job.ArticleID, "error", err)
	} else if hit {
		q.clearInflight(job.ArticleID)
		if job.Apply != nil {
			job.Apply(cached, true)
		}
		return
	}

	q.wg.Add(1)
	go q.run(ctx, job)
}

func (q *Queue) run(ctx context.Context, job Job) {
	defer q.wg.Done()
	// The marker is cleared on every outcome so a failed job can be retried.
	defer q.clearInflight(job.ArticleID)

	q.sem <- struct{}{}
	defer func() { <-q.sem }()

	translation, err := q.translator.Translate(ctx, job.Text, job.TargetLang)
	if err != nil {
		slog.Error("Enrichment job failed", "article_id", job.ArticleID, "error", err)
		if job.OnError != nil {
			job.OnError(err)
		}
		return
	}

	if err := q.cache.Set(ctx, job.ArticleID, translation); err != nil {
		slog.Warn("Translation cache write failed", "article_id", job.ArticleID, "error", err)
	}

	if job.Apply != nil {
		job.Apply(translation, false)
	}
}

func (q *Queue) clearInflight(articleID string) {
	q.mu.Lock()
	delete(q.inflight, articleID)
	q.mu.Unlock()
}

// Wait blocks until all admitted jobs have finished. Used during shutdown
// and in tests.
func (q *Queue) Wait() {
	q.wg.Wait()
}
