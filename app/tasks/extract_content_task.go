package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/rss-deck/app/database"
	"github.com/lysyi3m/rss-deck/app/feed"
)

// Articles with less stored content than this are considered stubs worth
// extracting.
const stubContentLength = 500

const extractBatchSize = 20

type ExtractContentTask struct {
	Task
	articleRepo database.ArticleRepository
	extractor   *feed.ContentExtractor
}

func NewExtractContentTask(feedID string, articleRepo database.ArticleRepository,
	extractor *feed.ContentExtractor) *ExtractContentTask {
	return &ExtractContentTask{
		Task:        NewTask(TaskTypeExtractContent, feedID),
		articleRepo: articleRepo,
		extractor:   extractor,
	}
}

func (t *ExtractContentTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	articles, err := t.articleRepo.GetStubArticles(t.FeedID, stubContentLength, extractBatchSize)
	if err != nil {
		return fmt.Errorf("failed to get stub articles: %w", err)
	}

	if len(articles) == 0 {
		slog.Debug("No articles need content extraction", "feed_id", t.FeedID)
		return nil
	}

	successCount := 0
	errorCount := 0

	for _, article := range articles {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		extraction, err := t.extractor.Extract(ctx, article.Link)
		if err != nil {
			slog.Error("Failed to extract content", "article_id", article.ID, "url", article.Link, "error", err)
			errorCount++
			continue
		}

		// Only replace when extraction actually recovered more than the stub.
		if len(extraction.Content) <= len(article.Content) {
			continue
		}

		if err := t.articleRepo.UpdateContent(article.ID, extraction.Content); err != nil {
			slog.Error("Failed to store extracted content", "article_id", article.ID, "error", err)
			errorCount++
			continue
		}

		successCount++
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"feed_id", t.FeedID,
		"duration", t.GetDuration(),
		"success", successCount,
		"errors", errorCount)

	return nil
}
