package ai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/selivandex/marketmood/pkg/apperr"
	"github.com/selivandex/marketmood/pkg/logger"
	"github.com/selivandex/marketmood/pkg/models"
	"github.com/selivandex/marketmood/pkg/templates"
)

// DefaultSummarizerTimeout bounds a single narrative request
const DefaultSummarizerTimeout = 25 * time.Second

type trendingStockPayload struct {
	Symbol         string   `json:"symbol" validate:"required"`
	Mentions       int      `json:"mentions" validate:"gte=0"`
	SentimentScore *float64 `json:"sentiment_score" validate:"omitempty,gte=-1,lte=1"`
	SentimentLabel string   `json:"sentiment_label" validate:"omitempty,oneof=positive negative neutral"`
}

type marketSentimentPayload struct {
	Score *float64 `json:"score" validate:"required,gte=-1,lte=1"`
	Label *string  `json:"label" validate:"required,oneof=positive negative neutral"`
}

type narrativePayload struct {
	TrendingStocks  *[]trendingStockPayload `json:"trending_stocks" validate:"required,dive"`
	MarketSentiment *marketSentimentPayload `json:"market_sentiment" validate:"required"`
	FearGreedIndex  *float64                `json:"fear_greed_index" validate:"required,gte=0,lte=100"`
	KeyThemes       *[]string               `json:"key_themes" validate:"required"`
	Confidence      *float64                `json:"confidence" validate:"required,gte=0,lte=1"`
}

// NarrativeSummarizer asks the completion provider for one structured
// narrative of the whole corpus
type NarrativeSummarizer struct {
	completer Completer
	prompts   templates.Renderer
	validate  *validator.Validate
	timeout   time.Duration
	maxChars  int
}

// NewNarrativeSummarizer creates summarizer. maxChars caps corpus text sent
// in the prompt (0 = unlimited).
func NewNarrativeSummarizer(completer Completer, prompts templates.Renderer, timeout time.Duration, maxChars int) *NarrativeSummarizer {
	if timeout <= 0 {
		timeout = DefaultSummarizerTimeout
	}
	return &NarrativeSummarizer{
		completer: completer,
		prompts:   prompts,
		validate:  validator.New(),
		timeout:   timeout,
		maxChars:  maxChars,
	}
}

// Summarize returns the validated narrative. A request that exceeds the
// timeout yields a KindSummarizerTimeout error; every other failure is
// KindSummarizer.
func (s *NarrativeSummarizer) Summarize(ctx context.Context, items []models.ContentItem) (*models.MarketNarrative, error) {
	prompt, err := renderNarrativePrompt(s.prompts, items, s.maxChars)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindSummarizer, err, "failed to build narrative prompt")
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	startTime := time.Now()
	content, err := s.completer.Complete(reqCtx, prompt)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			logger.Warn("narrative request timed out",
				zap.Duration("timeout", s.timeout),
				zap.Duration("elapsed", time.Since(startTime)),
			)
			return nil, apperr.Wrap(apperr.KindSummarizerTimeout, err, "narrative request timed out after %s", s.timeout)
		}
		return nil, apperr.Wrap(apperr.KindSummarizer, err, "narrative request failed")
	}

	narrative, err := s.parse(content)
	if err != nil {
		logger.Debug("rejected narrative response", zap.String("response", content))
		return nil, apperr.Wrap(apperr.KindSummarizer, err, "narrative response rejected")
	}

	logger.Info("narrative summarized",
		zap.Int("items", len(items)),
		zap.Int("trending_stocks", len(narrative.TrendingStocks)),
		zap.Duration("latency", time.Since(startTime)),
	)

	return narrative, nil
}

func (s *NarrativeSummarizer) parse(content string) (*models.MarketNarrative, error) {
	var payload narrativePayload
	if err := json.Unmarshal([]byte(extractJSON(content)), &payload); err != nil {
		return nil, err
	}

	if payload.MarketSentiment != nil && payload.MarketSentiment.Label != nil {
		label := normalizeLabel(*payload.MarketSentiment.Label)
		payload.MarketSentiment.Label = &label
	}
	if payload.TrendingStocks != nil {
		for i := range *payload.TrendingStocks {
			stock := &(*payload.TrendingStocks)[i]
			stock.SentimentLabel = normalizeLabel(stock.SentimentLabel)
		}
	}

	if err := s.validate.Struct(payload); err != nil {
		return nil, err
	}

	stocks := make([]models.TrendingStock, 0, len(*payload.TrendingStocks))
	for _, p := range *payload.TrendingStocks {
		stock := models.TrendingStock{
			Symbol:         strings.TrimSpace(p.Symbol),
			Mentions:       p.Mentions,
			SentimentLabel: models.SentimentLabel(p.SentimentLabel),
		}
		if p.SentimentScore != nil {
			stock.SentimentScore = *p.SentimentScore
		}
		if stock.SentimentLabel == "" {
			stock.SentimentLabel = models.LabelForScore(stock.SentimentScore)
		}
		stocks = append(stocks, stock)
	}

	return &models.MarketNarrative{
		TrendingStocks: stocks,
		MarketSentiment: models.NarrativeSentiment{
			Score: *payload.MarketSentiment.Score,
			Label: models.SentimentLabel(*payload.MarketSentiment.Label),
		},
		FearGreedIndex: *payload.FearGreedIndex,
		KeyThemes:      *payload.KeyThemes,
		Confidence:     *payload.Confidence,
	}, nil
}

func normalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}
