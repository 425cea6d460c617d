package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/selivandex/marketmood/internal/pipeline"
	"github.com/selivandex/marketmood/pkg/logger"
	"github.com/selivandex/marketmood/pkg/worker"
)

// DailyRunner is the part of the pipeline the scheduler drives
type DailyRunner interface {
	RunDaily(ctx context.Context) (*pipeline.Result, error)
	CurrentDate() string
}

// DateLock guards one run per date across replicas
type DateLock interface {
	TryAcquire(ctx context.Context, date string) (bool, error)
	Release(ctx context.Context, date string) error
}

// DailyPipelineWorker triggers the daily pipeline on a cron schedule
type DailyPipelineWorker struct {
	runner   DailyRunner
	lock     DateLock
	schedule cron.Schedule
	spec     string
	cron     *cron.Cron
}

// NewDailyPipelineWorker creates the scheduled job. lock may be nil.
func NewDailyPipelineWorker(runner DailyRunner, lock DateLock, spec string) (*DailyPipelineWorker, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid pipeline schedule %q: %w", spec, err)
	}

	return &DailyPipelineWorker{
		runner:   runner,
		lock:     lock,
		schedule: schedule,
		spec:     spec,
	}, nil
}

// Name implements worker.Worker
func (w *DailyPipelineWorker) Name() string {
	return "daily_pipeline"
}

// Run executes one guarded run. When another replica holds the date lock
// the run is skipped. A failed run releases the lock so it can be retried.
func (w *DailyPipelineWorker) Run(ctx context.Context) error {
	date := w.runner.CurrentDate()

	if w.lock != nil {
		acquired, err := w.lock.TryAcquire(ctx, date)
		switch {
		case err != nil:
			logger.Warn("run lock unavailable, running unguarded",
				zap.String("date", date),
				zap.Error(err),
			)
		case !acquired:
			logger.Info("daily pipeline already claimed by another replica",
				zap.String("date", date),
			)
			return nil
		}
	}

	if _, err := w.runner.RunDaily(ctx); err != nil {
		if w.lock != nil {
			if releaseErr := w.lock.Release(ctx, date); releaseErr != nil {
				logger.Warn("failed to release run lock",
					zap.String("date", date),
					zap.Error(releaseErr),
				)
			}
		}
		return err
	}

	return nil
}

// Start implements worker.Service
func (w *DailyPipelineWorker) Start(ctx context.Context) {
	w.cron = cron.New(cron.WithLocation(time.UTC))
	w.cron.Schedule(w.schedule, cron.FuncJob(func() {
		_ = worker.RunOnce(ctx, w)
	}))
	w.cron.Start()

	logger.Info("daily pipeline scheduled",
		zap.String("schedule", w.spec),
		zap.Time("next_run", w.schedule.Next(time.Now().UTC())),
	)
}

// Stop implements worker.Service; it waits for a running job up to timeout
func (w *DailyPipelineWorker) Stop(timeout time.Duration) {
	if w.cron == nil {
		return
	}

	done := w.cron.Stop()
	select {
	case <-done.Done():
		logger.Info("daily pipeline scheduler stopped")
	case <-time.After(timeout):
		logger.Warn("daily pipeline scheduler stop timeout")
	}
}
