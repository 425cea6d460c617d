package health

import (
	"context"
	"sync"
	"time"

	"github.com/selivandex/marketmood/internal/pipeline"
	"github.com/selivandex/marketmood/pkg/apperr"
)

// LastRun is the outcome of the most recent daily run seen by this process
type LastRun struct {
	RunID      string `json:"run_id"`
	Date       string `json:"date"`
	Outcome    string `json:"outcome"` // ok, fallback, empty or failed
	Kind       string `json:"kind,omitempty"`
	FinishedAt string `json:"finished_at"`
}

// RunTracker remembers the last run and the last successful one. It is a
// pipeline.RunObserver.
type RunTracker struct {
	mu          sync.RWMutex
	last        *LastRun
	lastSuccess time.Time
	now         func() time.Time
}

// NewRunTracker creates tracker using the wall clock
func NewRunTracker() *RunTracker {
	return &RunTracker{now: time.Now}
}

// OnRunComplete implements pipeline.RunObserver
func (t *RunTracker) OnRunComplete(_ context.Context, result *pipeline.Result) {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = &LastRun{
		RunID:      result.RunID,
		Date:       result.Date,
		Outcome:    string(result.Status),
		FinishedAt: now.UTC().Format(time.RFC3339),
	}
	t.lastSuccess = now
}

// OnRunFailed implements pipeline.RunObserver
func (t *RunTracker) OnRunFailed(_ context.Context, runID, date string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = &LastRun{
		RunID:      runID,
		Date:       date,
		Outcome:    "failed",
		Kind:       string(apperr.KindOf(err)),
		FinishedAt: t.now().UTC().Format(time.RFC3339),
	}
}

// Snapshot returns a copy of the last run (nil before the first one) and
// the time of the last success (zero if none)
func (t *RunTracker) Snapshot() (*LastRun, time.Time) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.last == nil {
		return nil, t.lastSuccess
	}
	last := *t.last
	return &last, t.lastSuccess
}

// Stale reports whether no run has succeeded within maxAge. A process younger
// than maxAge that has not run yet is not stale.
func (t *RunTracker) Stale(maxAge time.Duration, startedAt time.Time) bool {
	if maxAge <= 0 {
		return false
	}

	_, lastSuccess := t.Snapshot()
	since := lastSuccess
	if since.IsZero() {
		since = startedAt
	}
	return t.now().Sub(since) > maxAge
}
