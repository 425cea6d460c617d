package corpus

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/selivandex/marketmood/pkg/logger"
	"github.com/selivandex/marketmood/pkg/models"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Page is one slice of a time-range listing
type Page struct {
	Items    []models.ContentItem `json:"items"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
	Total    int                  `json:"total"`
}

// Repository handles database operations for collected posts and comments
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates new corpus repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const contentColumns = `id, kind, post_id, subreddit, title, body, author, url, score, num_comments, created_utc`

// SaveItems upserts items by id. Engagement counters are refreshed on conflict,
// text is left as first collected.
func (r *Repository) SaveItems(ctx context.Context, items []models.ContentItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO content_items (`+contentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			score = EXCLUDED.score,
			num_comments = EXCLUDED.num_comments
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	saved := 0
	for _, item := range items {
		_, err := stmt.ExecContext(ctx,
			item.ID,
			item.Kind,
			item.PostID,
			item.Subreddit,
			item.Title,
			item.Body,
			item.Author,
			item.URL,
			item.Engagement,
			item.NumComments,
			item.CreatedAt.UTC(),
		)
		if err != nil {
			return saved, fmt.Errorf("failed to save item %s: %w", item.ID, err)
		}
		saved++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}

	logger.Debug("saved content items", zap.Int("count", saved))

	return saved, nil
}

// GetWindow returns every item created within [start, end], posts first
// ('post' sorts after 'comment'), newest first within each kind, id breaking
// timestamp ties so repeated runs see the same order
func (r *Repository) GetWindow(ctx context.Context, start, end time.Time) ([]models.ContentItem, error) {
	query := `
		SELECT ` + contentColumns + `
		FROM content_items
		WHERE created_utc >= $1 AND created_utc <= $2
		ORDER BY kind DESC, created_utc DESC, id
	`

	items := make([]models.ContentItem, 0)
	if err := r.db.SelectContext(ctx, &items, query, start.UTC(), end.UTC()); err != nil {
		return nil, fmt.Errorf("failed to query content window: %w", err)
	}

	return items, nil
}

// GetContentInRange returns one page of items created within [start, end].
// page starts at 1; pageSize is clamped to [1, MaxPageSize].
func (r *Repository) GetContentInRange(ctx context.Context, start, end time.Time, page, pageSize int) (*Page, error) {
	page, pageSize = NormalizePage(page, pageSize)

	var total int
	if err := r.db.GetContext(ctx, &total, `
		SELECT COUNT(*) FROM content_items
		WHERE created_utc >= $1 AND created_utc <= $2
	`, start.UTC(), end.UTC()); err != nil {
		return nil, fmt.Errorf("failed to count content: %w", err)
	}

	items := make([]models.ContentItem, 0, pageSize)
	if err := r.db.SelectContext(ctx, &items, `
		SELECT `+contentColumns+`
		FROM content_items
		WHERE created_utc >= $1 AND created_utc <= $2
		ORDER BY created_utc DESC, id
		LIMIT $3 OFFSET $4
	`, start.UTC(), end.UTC(), pageSize, (page-1)*pageSize); err != nil {
		return nil, fmt.Errorf("failed to query content page: %w", err)
	}

	return &Page{
		Items:    items,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	}, nil
}

// NormalizePage applies listing defaults and bounds
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}
