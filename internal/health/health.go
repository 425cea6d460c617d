package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/selivandex/marketmood/pkg/logger"
)

const checkTimeout = 2 * time.Second

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
	checkOK        = "connected"
)

// Checker probes one dependency
type Checker interface {
	Health(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker
type CheckerFunc func(ctx context.Context) error

// Health implements Checker
func (f CheckerFunc) Health(ctx context.Context) error { return f(ctx) }

// HealthStatus is the /health body
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Services  map[string]string `json:"services"`
	LastRun   *LastRun          `json:"last_run,omitempty"`
	RunStale  bool              `json:"run_stale,omitempty"`
}

// ReadinessStatus is the /ready body
type ReadinessStatus struct {
	Ready     bool              `json:"ready"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// Option configures Server
type Option func(*Server)

// WithRunTracker reports the last daily run on /health. The status turns
// degraded when no run succeeded within maxAge (0 disables that check).
func WithRunTracker(tracker *RunTracker, maxAge time.Duration) Option {
	return func(s *Server) {
		s.runs = tracker
		s.maxRunAge = maxAge
	}
}

// Server serves liveness and readiness probes on their own port
type Server struct {
	server    *http.Server
	checks    map[string]Checker
	runs      *RunTracker
	maxRunAge time.Duration
	ready     atomic.Bool
	startedAt time.Time
}

// NewServer creates server. checks maps a dependency name (database,
// redis, clickhouse) to its probe.
func NewServer(port string, checks map[string]Checker, opts ...Option) *Server {
	s := &Server{
		checks:    checks,
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	for _, path := range []string{"/health", "/healthz"} {
		mux.HandleFunc(path, s.handleHealth)
	}
	for _, path := range []string{"/ready", "/readyz"} {
		mux.HandleFunc(path, s.handleReadiness)
	}

	s.server = &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the mux (tests)
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start blocks serving probes until Stop
func (s *Server) Start() error {
	logger.Info("health server listening", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// SetReady flips readiness; dependencies must still pass for /ready to be 200
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
	logger.Info("readiness changed", zap.Bool("ready", ready))
}

// probe runs every check concurrently. ok is false if any failed.
func (s *Server) probe(ctx context.Context) (results map[string]string, ok bool) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	var mu sync.Mutex
	results = make(map[string]string, len(s.checks))
	ok = true

	var g errgroup.Group
	for name, check := range s.checks {
		g.Go(func() error {
			result := checkOK
			if err := check.Health(ctx); err != nil {
				result = "unhealthy: " + err.Error()
			}

			mu.Lock()
			results[name] = result
			ok = ok && result == checkOK
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results, ok
}

// handleHealth always answers 200 while the process is alive
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	services, ok := s.probe(r.Context())

	body := HealthStatus{
		Status:    statusHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(s.startedAt).Round(time.Second).String(),
		Services:  services,
	}

	if s.runs != nil {
		body.LastRun, _ = s.runs.Snapshot()
		body.RunStale = s.runs.Stale(s.maxRunAge, s.startedAt)
	}
	if !ok || body.RunStale {
		body.Status = statusDegraded
	}

	writeJSON(w, http.StatusOK, body)
}

// handleReadiness answers 200 only once SetReady(true) was called and every
// dependency passes
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	checks, ok := s.probe(r.Context())
	ready := s.ready.Load() && ok

	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, ReadinessStatus{
		Ready:     ready,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode health response", zap.Error(err))
	}
}
