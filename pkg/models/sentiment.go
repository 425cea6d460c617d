package models

import "math"

// SentimentLabel is the coarse polarity bucket of a score
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNegative SentimentLabel = "negative"
	SentimentNeutral  SentimentLabel = "neutral"
)

// NeutralBand is the half-width around zero that derives to neutral
const NeutralBand = 0.1

// Valid reports whether label is one of the known buckets
func (l SentimentLabel) Valid() bool {
	switch l {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

// SentimentScore represents polarity of a single text.
// Label and Confidence are advisory and may be absent for local scoring.
type SentimentScore struct {
	Score      float64        `json:"score"`                // -1.0 to 1.0
	Label      SentimentLabel `json:"label,omitempty"`      // empty when scorer did not provide it
	Confidence *float64       `json:"confidence,omitempty"` // nil when scorer did not provide it
}

// ResolvedLabel returns the provided label or derives one from the score
func (s SentimentScore) ResolvedLabel() SentimentLabel {
	if s.Label != "" {
		return s.Label
	}
	return LabelForScore(s.Score)
}

// LabelForScore derives label from sign of score using NeutralBand
func LabelForScore(score float64) SentimentLabel {
	if math.Abs(score) < NeutralBand {
		return SentimentNeutral
	}
	if score > 0 {
		return SentimentPositive
	}
	return SentimentNegative
}
