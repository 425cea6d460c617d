package sentry

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/selivandex/marketmood/internal/pipeline"
	"github.com/selivandex/marketmood/pkg/apperr"
)

// Tracker reports failed and degraded pipeline runs to Sentry
type Tracker struct {
	hub *sentry.Hub
}

// New creates a new Sentry tracker
func New(dsn string, environment string) (*Tracker, error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
	})
	if err != nil {
		return nil, err
	}

	return &Tracker{
		hub: sentry.CurrentHub(),
	}, nil
}

// NewWithHub creates tracker over an existing hub
func NewWithHub(hub *sentry.Hub) *Tracker {
	return &Tracker{hub: hub}
}

// CaptureError sends an error to Sentry
func (t *Tracker) CaptureError(_ context.Context, err error, tags map[string]string) {
	hub := t.hub.Clone()

	hub.ConfigureScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
	})

	hub.CaptureException(err)
}

// CaptureMessage sends a message to Sentry
func (t *Tracker) CaptureMessage(_ context.Context, message string, level sentry.Level, tags map[string]string) {
	hub := t.hub.Clone()

	hub.ConfigureScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		scope.SetLevel(level)
	})

	hub.CaptureMessage(message)
}

// OnRunComplete implements pipeline.RunObserver. Only fallback runs are reported.
func (t *Tracker) OnRunComplete(ctx context.Context, result *pipeline.Result) {
	if result.Status != pipeline.StatusFallback {
		return
	}

	t.CaptureMessage(ctx, "daily analysis persisted with placeholder narrative", sentry.LevelWarning, map[string]string{
		"kind":   string(apperr.KindSummarizerTimeout),
		"date":   result.Date,
		"run_id": result.RunID,
	})
}

// OnRunFailed implements pipeline.RunObserver
func (t *Tracker) OnRunFailed(ctx context.Context, runID, date string, err error) {
	t.CaptureError(ctx, err, map[string]string{
		"kind":   string(apperr.KindOf(err)),
		"date":   date,
		"run_id": runID,
	})
}

// Flush waits for all pending events to be sent
func (t *Tracker) Flush(timeout time.Duration) bool {
	return t.hub.Flush(timeout)
}
