package models

import "time"

// DateLayout is the canonical calendar-date key format
const DateLayout = "2006-01-02"

// StockMention is a ticker candidate with its tally in one run
type StockMention struct {
	Symbol string `json:"symbol"`
	Count  int    `json:"count"`
}

// WordFrequencyEntry is one row of the word cloud histogram
type WordFrequencyEntry struct {
	Word      string `json:"word"`
	Frequency int    `json:"frequency"`
}

// TrendingStock is a stock the narrative summarizer reports as trending
type TrendingStock struct {
	Symbol         string         `json:"symbol"`
	Mentions       int            `json:"mentions"`
	SentimentScore float64        `json:"sentiment_score"`
	SentimentLabel SentimentLabel `json:"sentiment_label"`
}

// NarrativeSentiment is the overall market mood as judged by the summarizer
type NarrativeSentiment struct {
	Score float64        `json:"score"`
	Label SentimentLabel `json:"label"`
}

// MarketNarrative is the validated structured payload of the narrative summarizer
type MarketNarrative struct {
	TrendingStocks  []TrendingStock    `json:"trending_stocks"`
	MarketSentiment NarrativeSentiment `json:"market_sentiment"`
	FearGreedIndex  float64            `json:"fear_greed_index"`
	KeyThemes       []string           `json:"key_themes"`
	Confidence      float64            `json:"confidence"`
	Placeholder     bool               `json:"placeholder,omitempty"` // set only on the fallback payload
}

// FallbackNarrative returns the fixed placeholder used when the summarizer times out
func FallbackNarrative() *MarketNarrative {
	return &MarketNarrative{
		TrendingStocks: []TrendingStock{},
		MarketSentiment: NarrativeSentiment{
			Score: 0,
			Label: SentimentNeutral,
		},
		FearGreedIndex: 50.0,
		KeyThemes:      []string{"narrative analysis unavailable"},
		Confidence:     0,
		Placeholder:    true,
	}
}

// MarketSentiment is the persisted market_sentiment sub-document
type MarketSentiment struct {
	Score          float64        `json:"score"`
	Label          SentimentLabel `json:"label"`
	Confidence     float64        `json:"confidence"`
	FearGreedIndex float64        `json:"fear_greed_index"` // narrative view, not the statistical index
	Placeholder    bool           `json:"placeholder,omitempty"`
}

// TopicKind tells which narrative list a trending topic came from
type TopicKind string

const (
	TopicKindStock TopicKind = "stock"
	TopicKindTheme TopicKind = "theme"
)

// TrendingTopic is one entry of the persisted trending_topics sequence
type TrendingTopic struct {
	Topic          string         `json:"topic"`
	Kind           TopicKind      `json:"kind"`
	Mentions       int            `json:"mentions,omitempty"`
	SentimentScore *float64       `json:"sentiment_score,omitempty"`
	SentimentLabel SentimentLabel `json:"sentiment_label,omitempty"`
}

// RiskIndicators is the persisted risk_indicators sub-document
type RiskIndicators struct {
	VolatilityScore     float64  `json:"volatility_score"`     // std-dev of per-item scores, 0-1
	SentimentDivergence float64  `json:"sentiment_divergence"` // |statistical - narrative| fear/greed
	NarrativeConfidence float64  `json:"narrative_confidence"`
	ContrarianSignals   []string `json:"contrarian_signals"`
}

// DailyAnalysis is the aggregate root, one per calendar date
type DailyAnalysis struct {
	CreatedAt       time.Time            `json:"created_at" db:"created_at"`
	Date            string               `json:"date" db:"date"` // YYYY-MM-DD
	StockMentions   []StockMention       `json:"stock_mentions" db:"stock_mentions"`
	WordFrequencies []WordFrequencyEntry `json:"word_frequencies" db:"word_frequencies"`
	MarketSentiment MarketSentiment      `json:"market_sentiment" db:"market_sentiment"`
	TrendingTopics  []TrendingTopic      `json:"trending_topics" db:"trending_topics"`
	RiskIndicators  RiskIndicators       `json:"risk_indicators" db:"risk_indicators"`
	FearGreedIndex  float64              `json:"fear_greed_index" db:"fear_greed_index"`
}

// MentionSnapshot is one symbol tally recorded into mention history
type MentionSnapshot struct {
	RecordedAt     time.Time `json:"recorded_at"`
	Date           string    `json:"date"`
	RunID          string    `json:"run_id"`
	Symbol         string    `json:"symbol"`
	Mentions       int       `json:"mentions"`
	Rank           int       `json:"rank"`
	FearGreedIndex float64   `json:"fear_greed_index"`
	Fallback       bool      `json:"fallback"`
}
