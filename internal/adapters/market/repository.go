package market

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/selivandex/marketmood/pkg/models"
)

// Repository handles daily analysis storage
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates new market repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

type analysisRow struct {
	Date            string    `db:"date"`
	StockMentions   []byte    `db:"stock_mentions"`
	WordFrequencies []byte    `db:"word_frequencies"`
	FearGreedIndex  float64   `db:"fear_greed_index"`
	MarketSentiment []byte    `db:"market_sentiment"`
	TrendingTopics  []byte    `db:"trending_topics"`
	RiskIndicators  []byte    `db:"risk_indicators"`
	CreatedAt       time.Time `db:"created_at"`
}

const selectAnalysis = `
	SELECT to_char(date, 'YYYY-MM-DD') AS date,
		stock_mentions, word_frequencies, fear_greed_index,
		market_sentiment, trending_topics, risk_indicators, created_at
	FROM daily_analysis
`

// UpsertDailyAnalysis inserts or fully replaces the record for a.Date in a
// single statement and sets a.CreatedAt to the server-assigned timestamp
func (r *Repository) UpsertDailyAnalysis(ctx context.Context, a *models.DailyAnalysis) error {
	if _, err := time.Parse(models.DateLayout, a.Date); err != nil {
		return fmt.Errorf("invalid analysis date %q: %w", a.Date, err)
	}

	docs, err := encodeDocuments(a)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO daily_analysis (
			date, stock_mentions, word_frequencies, fear_greed_index,
			market_sentiment, trending_topics, risk_indicators, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (date) DO UPDATE SET
			stock_mentions = EXCLUDED.stock_mentions,
			word_frequencies = EXCLUDED.word_frequencies,
			fear_greed_index = EXCLUDED.fear_greed_index,
			market_sentiment = EXCLUDED.market_sentiment,
			trending_topics = EXCLUDED.trending_topics,
			risk_indicators = EXCLUDED.risk_indicators,
			created_at = NOW()
		RETURNING created_at
	`

	var createdAt time.Time
	err = r.db.QueryRowxContext(ctx, query,
		a.Date,
		docs[0],
		docs[1],
		a.FearGreedIndex,
		docs[2],
		docs[3],
		docs[4],
	).Scan(&createdAt)
	if err != nil {
		return fmt.Errorf("failed to upsert daily analysis for %s: %w", a.Date, err)
	}

	a.CreatedAt = createdAt
	return nil
}

// GetLatestAnalysis returns the record with the most recent date, or nil
// when nothing has been stored yet
func (r *Repository) GetLatestAnalysis(ctx context.Context) (*models.DailyAnalysis, error) {
	return r.getOne(ctx, selectAnalysis+` ORDER BY date DESC, created_at DESC LIMIT 1`)
}

// GetAnalysisByDate returns the record for date (YYYY-MM-DD), or nil
func (r *Repository) GetAnalysisByDate(ctx context.Context, date string) (*models.DailyAnalysis, error) {
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return nil, fmt.Errorf("invalid analysis date %q: %w", date, err)
	}
	return r.getOne(ctx, selectAnalysis+` WHERE date = $1`, date)
}

func (r *Repository) getOne(ctx context.Context, query string, args ...any) (*models.DailyAnalysis, error) {
	var row analysisRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query daily analysis: %w", err)
	}

	return decodeRow(&row)
}

func encodeDocuments(a *models.DailyAnalysis) ([5][]byte, error) {
	var docs [5][]byte

	stockMentions := a.StockMentions
	if stockMentions == nil {
		stockMentions = []models.StockMention{}
	}
	wordFrequencies := a.WordFrequencies
	if wordFrequencies == nil {
		wordFrequencies = []models.WordFrequencyEntry{}
	}
	trendingTopics := a.TrendingTopics
	if trendingTopics == nil {
		trendingTopics = []models.TrendingTopic{}
	}
	risk := a.RiskIndicators
	if risk.ContrarianSignals == nil {
		risk.ContrarianSignals = []string{}
	}

	values := []any{stockMentions, wordFrequencies, a.MarketSentiment, trendingTopics, risk}
	names := []string{"stock_mentions", "word_frequencies", "market_sentiment", "trending_topics", "risk_indicators"}

	for i, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return docs, fmt.Errorf("failed to encode %s: %w", names[i], err)
		}
		docs[i] = data
	}

	return docs, nil
}

func decodeRow(row *analysisRow) (*models.DailyAnalysis, error) {
	a := &models.DailyAnalysis{
		Date:           row.Date,
		FearGreedIndex: row.FearGreedIndex,
		CreatedAt:      row.CreatedAt,
	}

	fields := []struct {
		name string
		data []byte
		dst  any
	}{
		{"stock_mentions", row.StockMentions, &a.StockMentions},
		{"word_frequencies", row.WordFrequencies, &a.WordFrequencies},
		{"market_sentiment", row.MarketSentiment, &a.MarketSentiment},
		{"trending_topics", row.TrendingTopics, &a.TrendingTopics},
		{"risk_indicators", row.RiskIndicators, &a.RiskIndicators},
	}

	for _, f := range fields {
		if len(f.data) == 0 {
			continue
		}
		if err := json.Unmarshal(f.data, f.dst); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", f.name, err)
		}
	}

	return a, nil
}
