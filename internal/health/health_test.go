package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func okCheck() Checker {
	return CheckerFunc(func(context.Context) error { return nil })
}

func failingCheck(msg string) Checker {
	return CheckerFunc(func(context.Context) error { return errors.New(msg) })
}

func TestHealth_AlwaysOK(t *testing.T) {
	s := NewServer("0", map[string]Checker{
		"database": okCheck(),
		"redis":    failingCheck("connection refused"),
	})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("liveness status = %d, want 200", rec.Code)
	}

	var body HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if body.Status != "degraded" || body.Services["database"] != "connected" {
		t.Errorf("unexpected body: %+v", body)
	}
	if body.Services["redis"] != "unhealthy: connection refused" {
		t.Errorf("redis = %q", body.Services["redis"])
	}
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name   string
		ready  bool
		checks map[string]Checker
		want   int
	}{
		{"not marked ready", false, map[string]Checker{"database": okCheck()}, http.StatusServiceUnavailable},
		{"dependency down", true, map[string]Checker{"database": failingCheck("timeout")}, http.StatusServiceUnavailable},
		{"ready", true, map[string]Checker{"database": okCheck(), "redis": okCheck()}, http.StatusOK},
		{"no dependencies", true, nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer("0", tt.checks)
			s.SetReady(tt.ready)

			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestHealth_ChecksRunConcurrently(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(2)

	// each check waits for the other to start; run serially they would time out
	rendezvous := CheckerFunc(func(ctx context.Context) error {
		wg.Done()
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	s := NewServer("0", map[string]Checker{"database": rendezvous, "redis": rendezvous})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if body.Status != "healthy" {
		t.Errorf("expected healthy, got %+v", body)
	}
}
