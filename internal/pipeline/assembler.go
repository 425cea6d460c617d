package pipeline

import (
	"context"
	"math"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/selivandex/marketmood/internal/analysis"
	"github.com/selivandex/marketmood/internal/sentiment"
	"github.com/selivandex/marketmood/pkg/apperr"
	"github.com/selivandex/marketmood/pkg/logger"
	"github.com/selivandex/marketmood/pkg/models"
)

// Contrarian signal thresholds
const (
	ExtremeGreedThreshold      = 80.0
	ExtremeFearThreshold       = 20.0
	NarrativeDivergenceTrigger = 25.0
)

const (
	SignalExtremeGreed         = "extreme_greed"
	SignalExtremeFear          = "extreme_fear"
	SignalNarrativeDivergence  = "narrative_divergence"
	SignalNarrativeUnavailable = "narrative_unavailable"
)

// Summarizer produces one structured narrative for the whole corpus
type Summarizer interface {
	Summarize(ctx context.Context, items []models.ContentItem) (*models.MarketNarrative, error)
}

// AnalysisWriter persists assembled analyses keyed by date
type AnalysisWriter interface {
	UpsertDailyAnalysis(ctx context.Context, a *models.DailyAnalysis) error
}

// Assembler turns a window of content into a DailyAnalysis
type Assembler struct {
	extractor  *analysis.SymbolExtractor
	scorer     sentiment.Scorer
	summarizer Summarizer
	store      AnalysisWriter
	maxWords   int
	workers    int
}

// NewAssembler creates assembler. maxWords <= 0 uses the default word
// cloud size; workers < 1 scores sequentially.
func NewAssembler(scorer sentiment.Scorer, summarizer Summarizer, store AnalysisWriter, maxWords, workers int) *Assembler {
	return &Assembler{
		extractor:  analysis.NewSymbolExtractor(),
		scorer:     scorer,
		summarizer: summarizer,
		store:      store,
		maxWords:   maxWords,
		workers:    workers,
	}
}

// Assemble computes every field of the analysis for date. Local scoring and
// the narrative request run concurrently. A summarizer timeout substitutes
// the placeholder narrative and reports StatusFallback. No items yield the
// neutral analysis with StatusEmpty and no summarizer call.
func (a *Assembler) Assemble(ctx context.Context, items []models.ContentItem, date string) (*models.DailyAnalysis, Status, error) {
	if len(items) == 0 {
		return emptyAnalysis(date), StatusEmpty, nil
	}

	corpus := models.JoinText(items)

	mentions := a.extractor.Extract(corpus)
	words := analysis.WordFrequencies(corpus, a.maxWords)

	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = item.Body
	}

	var (
		scores    []float64
		narrative *models.MarketNarrative
		status    = StatusOK
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		scores, err = sentiment.ScoreAll(gctx, a.scorer, texts, a.workers)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindScoring {
				return err
			}
			return apperr.Wrap(apperr.KindScoring, err, "failed to score content")
		}
		return nil
	})

	g.Go(func() error {
		var err error
		narrative, err = a.summarizer.Summarize(gctx, items)
		if err == nil {
			return nil
		}
		if apperr.IsKind(err, apperr.KindSummarizerTimeout) {
			logger.Warn("narrative unavailable, using placeholder",
				zap.String("date", date),
				zap.Error(err),
			)
			narrative = models.FallbackNarrative()
			status = StatusFallback
			return nil
		}
		if apperr.IsKind(err, apperr.KindSummarizer) {
			return err
		}
		return apperr.Wrap(apperr.KindSummarizer, err, "narrative summarization failed")
	})

	if err := g.Wait(); err != nil {
		return nil, "", err
	}

	fearGreed := analysis.FearGreedIndex(scores)

	return &models.DailyAnalysis{
		Date:            date,
		StockMentions:   mentions,
		WordFrequencies: words,
		FearGreedIndex:  fearGreed,
		MarketSentiment: marketSentiment(narrative),
		TrendingTopics:  trendingTopics(narrative),
		RiskIndicators:  riskIndicators(scores, fearGreed, narrative),
	}, status, nil
}

// Persist upserts the analysis by its date
func (a *Assembler) Persist(ctx context.Context, analysis *models.DailyAnalysis) error {
	if err := a.store.UpsertDailyAnalysis(ctx, analysis); err != nil {
		return apperr.Wrap(apperr.KindPersistence, err, "failed to persist analysis for %s", analysis.Date)
	}
	return nil
}

// emptyAnalysis is the record for a window with no content: fear/greed at
// its neutral default and nothing extracted
func emptyAnalysis(date string) *models.DailyAnalysis {
	fearGreed := analysis.FearGreedIndex(nil)

	return &models.DailyAnalysis{
		Date:            date,
		StockMentions:   []models.StockMention{},
		WordFrequencies: []models.WordFrequencyEntry{},
		FearGreedIndex:  fearGreed,
		MarketSentiment: models.MarketSentiment{
			Label:          models.SentimentNeutral,
			FearGreedIndex: fearGreed,
		},
		TrendingTopics: []models.TrendingTopic{},
		RiskIndicators: models.RiskIndicators{ContrarianSignals: []string{}},
	}
}

func marketSentiment(n *models.MarketNarrative) models.MarketSentiment {
	return models.MarketSentiment{
		Score:          n.MarketSentiment.Score,
		Label:          n.MarketSentiment.Label,
		Confidence:     n.Confidence,
		FearGreedIndex: n.FearGreedIndex,
		Placeholder:    n.Placeholder,
	}
}

// trendingTopics lists narrative stocks first, then key themes
func trendingTopics(n *models.MarketNarrative) []models.TrendingTopic {
	topics := make([]models.TrendingTopic, 0, len(n.TrendingStocks)+len(n.KeyThemes))

	for _, stock := range n.TrendingStocks {
		score := stock.SentimentScore
		topics = append(topics, models.TrendingTopic{
			Topic:          stock.Symbol,
			Kind:           models.TopicKindStock,
			Mentions:       stock.Mentions,
			SentimentScore: &score,
			SentimentLabel: stock.SentimentLabel,
		})
	}

	for _, theme := range n.KeyThemes {
		topics = append(topics, models.TrendingTopic{
			Topic: theme,
			Kind:  models.TopicKindTheme,
		})
	}

	return topics
}

func riskIndicators(scores []float64, fearGreed float64, n *models.MarketNarrative) models.RiskIndicators {
	risk := models.RiskIndicators{
		VolatilityScore:     analysis.Volatility(scores),
		NarrativeConfidence: n.Confidence,
		ContrarianSignals:   []string{},
	}

	if fearGreed >= ExtremeGreedThreshold {
		risk.ContrarianSignals = append(risk.ContrarianSignals, SignalExtremeGreed)
	}
	if fearGreed <= ExtremeFearThreshold {
		risk.ContrarianSignals = append(risk.ContrarianSignals, SignalExtremeFear)
	}

	if n.Placeholder {
		risk.ContrarianSignals = append(risk.ContrarianSignals, SignalNarrativeUnavailable)
		return risk
	}

	risk.SentimentDivergence = math.Abs(fearGreed - n.FearGreedIndex)
	if risk.SentimentDivergence >= NarrativeDivergenceTrigger {
		risk.ContrarianSignals = append(risk.ContrarianSignals, SignalNarrativeDivergence)
	}

	return risk
}
