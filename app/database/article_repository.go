package database

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

var _ ArticleRepository = (*articleRepository)(nil)

type articleRepository struct {
	db *DB
}

func NewArticleRepository(db *DB) ArticleRepository {
	return &articleRepository{db: db}
}

const articleColumns = `id, feed_id, content_hash, COALESCE(title, ''), COALESCE(link, ''),
	       COALESCE(author, ''), published_at, COALESCE(content, ''),
	       COALESCE(summary, ''), COALESCE(categories, '{}'),
	       COALESCE(translation, ''), created_at`

func (r *articleRepository) scanArticle(row interface{ Scan(...interface{}) error }) (*Article, error) {
	var a Article
	err := row.Scan(
		&a.ID, &a.FeedID, &a.ContentHash, &a.Title, &a.Link,
		&a.Author, &a.PublishedAt, &a.Content,
		&a.Summary, pq.Array(&a.Categories),
		&a.Translation, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Exists is the dedup check: one row per (feed, content hash), ever.
func (r *articleRepository) Exists(feedID, contentHash string) (bool, error) {
	var id string
	err := r.db.QueryRow(`
		SELECT id FROM articles WHERE feed_id = $1 AND content_hash = $2 LIMIT 1
	`, feedID, contentHash).Scan(&id)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check article existence: %w", err)
	}

	return true, nil
}

func (r *articleRepository) Insert(article Article) (string, error) {
	var id string
	err := r.db.QueryRow(`
		INSERT INTO articles (feed_id, content_hash, title, link, author,
			published_at, content, summary, categories)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (feed_id, content_hash) DO NOTHING
		RETURNING id
	`, article.FeedID, article.ContentHash, article.Title, article.Link, article.Author,
		article.PublishedAt, article.Content, article.Summary,
		pq.Array(article.Categories)).Scan(&id)

	// A conflicting insert returns no row; the existing row wins.
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to insert article: %w", err)
	}

	return id, nil
}

func (r *articleRepository) GetByID(id string) (*Article, error) {
	row := r.db.QueryRow(`
		SELECT `+articleColumns+`
		FROM articles
		WHERE id = $1
	`, id)

	article, err := r.scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}

	return article, nil
}

func (r *articleRepository) GetByFeed(feedID string, limit int) ([]Article, error) {
	rows, err := r.db.Query(`
		SELECT `+articleColumns+`
		FROM articles
		WHERE feed_id = $1
		ORDER BY COALESCE(published_at, created_at) DESC
		LIMIT $2
	`, feedID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get articles: %w", err)
	}
	defer rows.Close()

	return r.collectArticles(rows)
}

// GetStubArticles returns articles whose stored content is too short to read,
// candidates for full-text extraction.
func (r *articleRepository) GetStubArticles(feedID string, maxContentLength, limit int) ([]Article, error) {
	rows, err := r.db.Query(`
		SELECT `+articleColumns+`
		FROM articles
		WHERE feed_id = $1
		  AND LENGTH(COALESCE(content, '')) < $2
		  AND link != ''
		ORDER BY COALESCE(published_at, created_at) DESC
		LIMIT $3
	`, feedID, maxContentLength, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get stub articles: %w", err)
	}
	defer rows.Close()

	return r.collectArticles(rows)
}

func (r *articleRepository) collectArticles(rows *sql.Rows) ([]Article, error) {
	var articles []Article
	for rows.Next() {
		article, err := r.scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article row: %w", err)
		}
		articles = append(articles, *article)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating article rows: %w", err)
	}

	return articles, nil
}

func (r *articleRepository) CountByFeed(feedID string) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM articles WHERE feed_id = $1", feedID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get article count: %w", err)
	}
	return count, nil
}

func (r *articleRepository) CountAll() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM articles").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get total article count: %w", err)
	}
	return count, nil
}

// UpdateContent replaces the article body after full-text extraction. The
// original summary and metadata stay untouched.
func (r *articleRepository) UpdateContent(id, content string) error {
	_, err := r.db.Exec(`
		UPDATE articles
		SET content = $2
		WHERE id = $1
	`, id, content)

	if err != nil {
		return fmt.Errorf("failed to update article content: %w", err)
	}

	return nil
}

func (r *articleRepository) UpdateTranslation(id, translation string) error {
	_, err := r.db.Exec(`
		UPDATE articles
		SET translation = $2
		WHERE id = $1
	`, id, translation)

	if err != nil {
		return fmt.Errorf("failed to update article translation: %w", err)
	}

	return nil
}
