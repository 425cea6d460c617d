package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/selivandex/marketmood/internal/pipeline"
	"github.com/selivandex/marketmood/pkg/apperr"
)

func fixedTracker(now *time.Time) *RunTracker {
	return &RunTracker{now: func() time.Time { return *now }}
}

func TestRunTracker_RecordsOutcomes(t *testing.T) {
	now := time.Date(2024, 3, 2, 0, 5, 0, 0, time.UTC)
	tracker := fixedTracker(&now)

	if last, _ := tracker.Snapshot(); last != nil {
		t.Fatalf("expected no run yet, got %+v", last)
	}

	tracker.OnRunComplete(context.Background(), &pipeline.Result{RunID: "r1", Date: "2024-03-01", Status: pipeline.StatusFallback})
	last, success := tracker.Snapshot()
	if last.Outcome != "fallback" || last.Date != "2024-03-01" || !success.Equal(now) {
		t.Errorf("unexpected snapshot %+v / %v", last, success)
	}

	now = now.Add(time.Hour)
	tracker.OnRunFailed(context.Background(), "r2", "2024-03-02", apperr.New(apperr.KindSourceUnavailable, "db down"))
	last, success = tracker.Snapshot()
	if last.Outcome != "failed" || last.Kind != "source_unavailable" || last.RunID != "r2" {
		t.Errorf("unexpected snapshot %+v", last)
	}
	if !success.Equal(now.Add(-time.Hour)) {
		t.Errorf("a failure must not move the last success, got %v", success)
	}
}

func TestRunTracker_Stale(t *testing.T) {
	started := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		elapsed time.Duration
		success bool
		maxAge  time.Duration
		want    bool
	}{
		{"young process without runs", 2 * time.Hour, false, 26 * time.Hour, false},
		{"old process without runs", 30 * time.Hour, false, 26 * time.Hour, true},
		{"recent success", 30 * time.Hour, true, 26 * time.Hour, false},
		{"disabled", 100 * time.Hour, false, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := started
			tracker := fixedTracker(&now)
			if tt.success {
				now = started.Add(tt.elapsed - time.Hour)
				tracker.OnRunComplete(context.Background(), &pipeline.Result{Status: pipeline.StatusOK})
			}
			now = started.Add(tt.elapsed)

			if got := tracker.Stale(tt.maxAge, started); got != tt.want {
				t.Errorf("Stale() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHealth_ReportsLastRun(t *testing.T) {
	now := time.Now()
	tracker := fixedTracker(&now)
	tracker.OnRunFailed(context.Background(), "r9", "2024-03-01", apperr.New(apperr.KindSummarizer, "bad json"))

	s := NewServer("0", nil, WithRunTracker(tracker, 26*time.Hour))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var body HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if body.LastRun == nil || body.LastRun.Kind != "summarizer_error" {
		t.Fatalf("last run = %+v", body.LastRun)
	}
	// the process just started, so a failed run alone does not degrade it
	if body.Status != "healthy" || body.RunStale {
		t.Errorf("unexpected status %+v", body)
	}
}
