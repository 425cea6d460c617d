package workers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/marketmood/internal/adapters/reddit"
	"github.com/selivandex/marketmood/internal/metrics"
	"github.com/selivandex/marketmood/pkg/apperr"
	"github.com/selivandex/marketmood/pkg/logger"
	"github.com/selivandex/marketmood/pkg/models"
)

// ContentCollector fetches one pass of fresh corpus content
type ContentCollector interface {
	Collect(ctx context.Context) (*reddit.CollectResult, error)
}

// ItemSaver stores corpus items, upserting by id
type ItemSaver interface {
	SaveItems(ctx context.Context, items []models.ContentItem) (int, error)
}

// CollectStats summarizes one collector iteration
type CollectStats struct {
	Posts            int           `json:"posts"`
	Comments         int           `json:"comments"`
	Saved            int           `json:"saved"`
	FailedSubreddits []string      `json:"failed_subreddits"`
	Duration         time.Duration `json:"duration"`
}

// CollectorWorker pulls Reddit content into the corpus store
type CollectorWorker struct {
	source  ContentCollector
	store   ItemSaver
	metrics *metrics.PipelineMetrics
}

// NewCollectorWorker creates new collector worker. metrics may be nil.
func NewCollectorWorker(source ContentCollector, store ItemSaver, m *metrics.PipelineMetrics) *CollectorWorker {
	return &CollectorWorker{source: source, store: store, metrics: m}
}

// Name implements worker.Worker
func (w *CollectorWorker) Name() string {
	return "reddit_collector"
}

// Run implements worker.Worker
func (w *CollectorWorker) Run(ctx context.Context) error {
	_, err := w.Collect(ctx)
	return err
}

// Collect runs one collection pass and stores everything it fetched
func (w *CollectorWorker) Collect(ctx context.Context) (*CollectStats, error) {
	startTime := time.Now()

	result, err := w.source.Collect(ctx)
	if err != nil {
		return nil, err
	}

	saved, err := w.store.SaveItems(ctx, result.Items)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, err, "failed to store collected content")
	}

	w.metrics.ObserveCollect(result.Posts, result.Comments, result.FailedSubreddits)

	stats := &CollectStats{
		Posts:            result.Posts,
		Comments:         result.Comments,
		Saved:            saved,
		FailedSubreddits: result.FailedSubreddits,
		Duration:         time.Since(startTime),
	}

	logger.Info("corpus collection stored",
		zap.Int("posts", stats.Posts),
		zap.Int("comments", stats.Comments),
		zap.Int("saved", stats.Saved),
		zap.Duration("duration", stats.Duration),
	)

	return stats, nil
}
