package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/selivandex/marketmood/pkg/logger"
	"github.com/selivandex/marketmood/pkg/models"
)

// Repository stores per-run symbol tallies in ClickHouse
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates new ClickHouse repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// SaveMentions appends mention snapshots to history
func (r *Repository) SaveMentions(ctx context.Context, snapshots []models.MentionSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO mention_history
		(recorded_at, date, run_id, symbol, mentions, rank, fear_greed_index, fallback)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, s := range snapshots {
		day, err := time.Parse(models.DateLayout, s.Date)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("invalid snapshot date %q: %w", s.Date, err)
		}

		var fallback uint8
		if s.Fallback {
			fallback = 1
		}

		_, err = stmt.ExecContext(ctx,
			s.RecordedAt.UTC(),
			day,
			s.RunID,
			s.Symbol,
			uint32(s.Mentions),
			uint16(s.Rank),
			s.FearGreedIndex,
			fallback,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert mention: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	logger.Debug("saved mentions to ClickHouse",
		zap.Int("count", len(snapshots)),
	)

	return nil
}

type mentionRow struct {
	RecordedAt     time.Time `db:"recorded_at"`
	Date           string    `db:"date"`
	RunID          string    `db:"run_id"`
	Symbol         string    `db:"symbol"`
	Mentions       uint32    `db:"mentions"`
	Rank           uint16    `db:"rank"`
	FearGreedIndex float64   `db:"fear_greed_index"`
	Fallback       uint8     `db:"fallback"`
}

// GetSymbolHistory returns one snapshot per date for symbol since the given
// date, oldest first. Only the latest run of each date counts: a date whose
// latest run did not rank symbol is absent even if an earlier run did.
func (r *Repository) GetSymbolHistory(ctx context.Context, symbol string, since time.Time) ([]models.MentionSnapshot, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}

	query := `
		SELECT recorded_at, toString(date) AS date, run_id, symbol,
		       mentions, rank, fear_greed_index, fallback
		FROM mention_history
		WHERE symbol = ? AND date >= toDate(?)
		  AND (date, run_id) IN (
			SELECT date, argMax(run_id, recorded_at)
			FROM mention_history
			WHERE date >= toDate(?)
			GROUP BY date
		  )
		ORDER BY date ASC
		LIMIT 1 BY date
	`

	sinceDate := since.UTC().Format(models.DateLayout)

	var rows []mentionRow
	if err := r.db.SelectContext(ctx, &rows, query, symbol, sinceDate, sinceDate); err != nil {
		return nil, fmt.Errorf("failed to query mention history: %w", err)
	}

	history := make([]models.MentionSnapshot, len(rows))
	for i, row := range rows {
		history[i] = models.MentionSnapshot{
			RecordedAt:     row.RecordedAt,
			Date:           row.Date,
			RunID:          row.RunID,
			Symbol:         row.Symbol,
			Mentions:       int(row.Mentions),
			Rank:           int(row.Rank),
			FearGreedIndex: row.FearGreedIndex,
			Fallback:       row.Fallback == 1,
		}
	}

	return history, nil
}
