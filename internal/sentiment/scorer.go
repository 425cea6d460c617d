package sentiment

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/selivandex/marketmood/pkg/models"
)

// Scorer maps a text to a polarity score
type Scorer interface {
	Score(ctx context.Context, text string) (models.SentimentScore, error)
}

// LocalScorer scores text synchronously with the keyword analyzer.
// It returns the score only; label and confidence are left unset.
type LocalScorer struct {
	analyzer *Analyzer
}

// NewLocalScorer creates local scorer
func NewLocalScorer(analyzer *Analyzer) *LocalScorer {
	if analyzer == nil {
		analyzer = NewAnalyzer()
	}
	return &LocalScorer{analyzer: analyzer}
}

// Score implements Scorer
func (s *LocalScorer) Score(_ context.Context, text string) (models.SentimentScore, error) {
	return models.SentimentScore{Score: s.analyzer.AnalyzeSentiment(text)}, nil
}

// ScoreAll scores texts with up to workers concurrent calls. Results are
// positional: scores[i] belongs to texts[i] regardless of completion order.
func ScoreAll(ctx context.Context, scorer Scorer, texts []string, workers int) ([]float64, error) {
	if workers < 1 {
		workers = 1
	}

	scores := make([]float64, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, text := range texts {
		g.Go(func() error {
			result, err := scorer.Score(gctx, text)
			if err != nil {
				return err
			}
			scores[i] = result.Score
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return scores, nil
}
