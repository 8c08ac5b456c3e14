package enrich

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type memCache struct {
	mu      sync.Mutex
	entries map[string]string
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]string)}
}

func (c *memCache) Get(ctx context.Context, articleID string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[articleID]
	return v, ok, nil
}

func (c *memCache) Set(ctx context.Context, articleID, translation string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[articleID] = translation
	return nil
}

type stubTranslator struct {
	calls   atomic.Int32
	active  atomic.Int32
	peak    atomic.Int32
	gate    chan struct{}
	failing atomic.Bool
}

func (s *stubTranslator) Translate(ctx context.Context, text, targetLang string) (string, error) {
	s.calls.Add(1)

	n := s.active.Add(1)
	for {
		peak := s.peak.Load()
		if n <= peak || s.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	defer s.active.Add(-1)

	if s.gate != nil {
		<-s.gate
	}
	if s.failing.Load() {
		return "", fmt.Errorf("simulated provider failure")
	}
	return "translated: " + text, nil
}

func TestQueueSingleFlight(t *testing.T) {
	translator := &stubTranslator{gate: make(chan struct{})}
	queue := NewQueue(newMemCache(), translator, 4)

	queue.Enqueue(context.Background(), Job{ArticleID: "a1", Text: "hello"})

	// Wait for the first job to reach the translator, then duplicate.
	deadline := time.Now().Add(2 * time.Second)
	for translator.active.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	queue.Enqueue(context.Background(), Job{ArticleID: "a1", Text: "hello"})
	queue.Enqueue(context.Background(), Job{ArticleID: "a1", Text: "hello"})

	close(translator.gate)
	queue.Wait()

	if got := translator.calls.Load(); got != 1 {
		t.Errorf("Expected exactly one translation call, got: %d", got)
	}
}

func TestQueueCacheHitIsSynchronous(t *testing.T) {
	cache := newMemCache()
	cache.Set(context.Background(), "a1", "cached translation")

	translator := &stubTranslator{}
	queue := NewQueue(cache, translator, 4)

	var gotTranslation string
	var gotFromCache bool
	queue.Enqueue(context.Background(), Job{
		ArticleID: "a1",
		Text:      "hello",
		Apply: func(translation string, fromCache bool) {
			gotTranslation = translation
			gotFromCache = fromCache
		},
	})

	// No Wait: the cache-hit path must have completed before Enqueue returned.
	if gotTranslation != "cached translation" {
		t.Errorf("Expected cached translation applied synchronously, got: %q", gotTranslation)
	}
	if !gotFromCache {
		t.Error("Expected fromCache=true on a cache hit")
	}
	if translator.calls.Load() != 0 {
		t.Errorf("Expected no translator calls on cache hit, got: %d", translator.calls.Load())
	}
}

func TestQueueBoundedConcurrency(t *testing.T) {
	translator := &stubTranslator{gate: make(chan struct{})}
	queue := NewQueue(newMemCache(), translator, 2)

	for i := 0; i < 6; i++ {
		queue.Enqueue(context.Background(), Job{
			ArticleID: fmt.Sprintf("a%d", i),
			Text:      "hello",
		})
	}

	deadline := time.Now().Add(2 * time.Second)
	for translator.active.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	// Give stragglers a moment to violate the limit if they are going to.
	time.Sleep(50 * time.Millisecond)

	close(translator.gate)
	queue.Wait()

	if peak := translator.peak.Load(); peak > 2 {
		t.Errorf("Expected at most 2 concurrent translations, observed: %d", peak)
	}
	if got := translator.calls.Load(); got != 6 {
		t.Errorf("Expected all 6 jobs to run, got: %d", got)
	}
}

func TestQueueFailureClearsMarkerForRetry(t *testing.T) {
	translator := &stubTranslator{}
	translator.failing.Store(true)
	queue := NewQueue(newMemCache(), translator, 2)

	errChan := make(chan error, 1)
	queue.Enqueue(context.Background(), Job{
		ArticleID: "a1",
		Text:      "hello",
		OnError:   func(err error) { errChan <- err },
	})
	queue.Wait()

	select {
	case err := <-errChan:
		if err == nil {
			t.Error("Expected non-nil error")
		}
	default:
		t.Fatal("Expected OnError to be called")
	}

	// The marker must be gone: the same article can be enqueued again.
	translator.failing.Store(false)
	var gotTranslation string
	queue.Enqueue(context.Background(), Job{
		ArticleID: "a1",
		Text:      "hello",
		Apply:     func(translation string, fromCache bool) { gotTranslation = translation },
	})
	queue.Wait()

	if gotTranslation != "translated: hello" {
		t.Errorf("Expected retry to succeed, got: %q", gotTranslation)
	}
	if got := translator.calls.Load(); got != 2 {
		t.Errorf("Expected 2 translation calls across failure and retry, got: %d", got)
	}
}

func TestQueueWritesThroughCache(t *testing.T) {
	cache := newMemCache()
	translator := &stubTranslator{}
	queue := NewQueue(cache, translator, 2)

	queue.Enqueue(context.Background(), Job{ArticleID: "a1", Text: "hello"})
	queue.Wait()

	cached, hit, err := cache.Get(context.Background(), "a1")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !hit {
		t.Fatal("Expected translation to be cached after completion")
	}
	if cached != "translated: hello" {
		t.Errorf("Expected cached translation, got: %q", cached)
	}

	// A second enqueue must be served from the cache.
	queue.Enqueue(context.Background(), Job{ArticleID: "a1", Text: "hello"})
	queue.Wait()

	if got := translator.calls.Load(); got != 1 {
		t.Errorf("Expected cache to absorb the second request, got %d calls", got)
	}
}
