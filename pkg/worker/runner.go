package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/marketmood/pkg/logger"
)

// Worker is one unit of background work
type Worker interface {
	// Name returns worker name for logging
	Name() string
	// Run executes one iteration of work
	Run(ctx context.Context) error
}

// Service is anything the group can start and stop
type Service interface {
	Start(ctx context.Context)
	Stop(timeout time.Duration)
}

// RunOnce executes a single iteration and logs its outcome
func RunOnce(ctx context.Context, w Worker) error {
	start := time.Now()

	if err := w.Run(ctx); err != nil {
		logger.Error("worker execution failed",
			zap.String("worker", w.Name()),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return err
	}

	logger.Debug("worker iteration completed",
		zap.String("worker", w.Name()),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// PeriodicWorker runs a Worker on a fixed interval
type PeriodicWorker struct {
	worker     Worker
	interval   time.Duration
	runOnStart bool
	wg         sync.WaitGroup
}

// NewPeriodicWorker creates new periodic worker. When runOnStart is set the
// first iteration happens immediately instead of after one interval.
func NewPeriodicWorker(worker Worker, interval time.Duration, runOnStart bool) *PeriodicWorker {
	return &PeriodicWorker{
		worker:     worker,
		interval:   interval,
		runOnStart: runOnStart,
	}
}

// Start launches the loop; it ends when ctx is cancelled
func (pw *PeriodicWorker) Start(ctx context.Context) {
	pw.wg.Add(1)
	go pw.run(ctx)
}

// Stop waits up to timeout for the loop to exit
func (pw *PeriodicWorker) Stop(timeout time.Duration) {
	waitTimeout(&pw.wg, timeout, pw.worker.Name())
}

func (pw *PeriodicWorker) run(ctx context.Context) {
	defer pw.wg.Done()

	logger.Info("worker started",
		zap.String("worker", pw.worker.Name()),
		zap.Duration("interval", pw.interval),
	)

	if pw.runOnStart {
		_ = RunOnce(ctx, pw.worker)
	}

	ticker := time.NewTicker(pw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker stopping",
				zap.String("worker", pw.worker.Name()),
			)
			return

		case <-ticker.C:
			// errors are logged; the loop keeps going
			_ = RunOnce(ctx, pw.worker)
		}
	}
}

func waitTimeout(wg *sync.WaitGroup, timeout time.Duration, name string) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("worker stopped gracefully",
			zap.String("worker", name),
		)
	case <-time.After(timeout):
		logger.Warn("worker stop timeout",
			zap.String("worker", name),
		)
	}
}

// Group manages several services with a shared lifetime
type Group struct {
	services []Service
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
}

// NewGroup creates new group bound to ctx
func NewGroup(ctx context.Context) *Group {
	ctx, cancel := context.WithCancel(ctx)
	return &Group{
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers a periodic worker
func (g *Group) Add(w Worker, interval time.Duration, runOnStart bool) {
	g.AddService(NewPeriodicWorker(w, interval, runOnStart))
}

// AddService registers any service
func (g *Group) AddService(s Service) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.services = append(g.services, s)
}

// Start starts all services
func (g *Group) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, s := range g.services {
		s.Start(g.ctx)
	}

	logger.Info("worker group started",
		zap.Int("services", len(g.services)),
	)
}

// Stop cancels the group context and waits for every service
func (g *Group) Stop(timeout time.Duration) {
	g.cancel()

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, s := range g.services {
		s.Stop(timeout)
	}

	logger.Info("worker group stopped")
}
