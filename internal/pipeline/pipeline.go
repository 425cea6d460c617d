package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/selivandex/marketmood/pkg/apperr"
	"github.com/selivandex/marketmood/pkg/logger"
	"github.com/selivandex/marketmood/pkg/models"
)

// Status tells whether a persisted run used the real narrative
type Status string

const (
	StatusOK       Status = "ok"
	StatusFallback Status = "fallback"
	// StatusEmpty marks a run whose window held no content; the neutral
	// analysis is still persisted
	StatusEmpty Status = "empty"
)

// Result describes one successful run
type Result struct {
	RunID    string                `json:"run_id"`
	Date     string                `json:"date"`
	Status   Status                `json:"status"`
	Window   models.Window         `json:"window"`
	Items    int                   `json:"items"`
	Duration time.Duration         `json:"duration"`
	Analysis *models.DailyAnalysis `json:"analysis"`
}

// ContentSource reads the corpus for a time window
type ContentSource interface {
	GetWindow(ctx context.Context, start, end time.Time) ([]models.ContentItem, error)
}

// RunObserver is notified after every run. Implementations must not block
// for long; they run on the caller's goroutine.
type RunObserver interface {
	OnRunComplete(ctx context.Context, result *Result)
	OnRunFailed(ctx context.Context, runID, date string, err error)
}

// Pipeline runs the daily analysis: fetch window, assemble, persist
type Pipeline struct {
	source    ContentSource
	assembler *Assembler
	window    time.Duration
	clock     func() time.Time
	observers []RunObserver
}

// Option customizes Pipeline
type Option func(*Pipeline)

// WithClock overrides the time source
func WithClock(clock func() time.Time) Option {
	return func(p *Pipeline) { p.clock = clock }
}

// WithObservers registers run observers
func WithObservers(observers ...RunObserver) Option {
	return func(p *Pipeline) { p.observers = append(p.observers, observers...) }
}

// New creates pipeline over a trailing window of the given length
func New(source ContentSource, assembler *Assembler, window time.Duration, opts ...Option) *Pipeline {
	if window <= 0 {
		window = 24 * time.Hour
	}

	p := &Pipeline{
		source:    source,
		assembler: assembler,
		window:    window,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CurrentDate returns the date key a run started now would write
func (p *Pipeline) CurrentDate() string {
	return p.clock().UTC().Format(models.DateLayout)
}

// RunDaily processes the trailing window ending now
func (p *Pipeline) RunDaily(ctx context.Context) (*Result, error) {
	return p.RunAt(ctx, p.clock())
}

// RunAt processes the trailing window ending at end. The record is keyed by
// end's UTC calendar date; re-running replaces it.
func (p *Pipeline) RunAt(ctx context.Context, end time.Time) (*Result, error) {
	startTime := time.Now()
	end = end.UTC()
	window := models.TrailingWindow(end, p.window)
	date := end.Format(models.DateLayout)
	runID := uuid.NewString()

	log := logger.With(zap.String("run_id", runID), zap.String("date", date))

	log.Info("daily pipeline started",
		zap.Time("window_start", window.Start),
		zap.Time("window_end", window.End),
	)

	result, err := p.run(ctx, runID, date, window)
	if err != nil {
		log.Error("daily pipeline failed",
			zap.String("kind", string(apperr.KindOf(err))),
			zap.Error(err),
		)
		for _, o := range p.observers {
			o.OnRunFailed(ctx, runID, date, err)
		}
		return nil, err
	}

	result.Duration = time.Since(startTime)

	log.Info("daily pipeline completed",
		zap.String("status", string(result.Status)),
		zap.Int("items", result.Items),
		zap.Float64("fear_greed_index", result.Analysis.FearGreedIndex),
		zap.Duration("duration", result.Duration),
	)

	for _, o := range p.observers {
		o.OnRunComplete(ctx, result)
	}

	return result, nil
}

func (p *Pipeline) run(ctx context.Context, runID, date string, window models.Window) (*Result, error) {
	items, err := p.source.GetWindow(ctx, window.Start, window.End)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindSourceUnavailable, err, "failed to read content window")
	}
	analysis, status, err := p.assembler.Assemble(ctx, items, date)
	if err != nil {
		return nil, err
	}

	if err := p.assembler.Persist(ctx, analysis); err != nil {
		return nil, err
	}

	return &Result{
		RunID:    runID,
		Date:     date,
		Status:   status,
		Window:   window,
		Items:    len(items),
		Analysis: analysis,
	}, nil
}
