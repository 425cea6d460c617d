package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/amyangfei/redlock-go/v3/redlock"
	redis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/selivandex/marketmood/pkg/logger"
)

// RunLock guards scheduled pipeline runs so that only one replica processes
// a given date. Manual runs do not take it.
type RunLock struct {
	lockManager *redlock.RedLock
	// presence is a quorum member used to tell a held lock from an outage
	presence *redis.Client
	ttl   time.Duration
}

// NewRunLock creates run lock. ttl should exceed the longest expected run.
func NewRunLock(lockManager *redlock.RedLock, presence *redis.Client, ttl time.Duration) *RunLock {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RunLock{lockManager: lockManager, presence: presence, ttl: ttl}
}

func runLockName(date string) string {
	return fmt.Sprintf("pipeline:lock:%s", date)
}

// TryAcquire attempts to take the lock for date. It returns false without
// error only when another holder has the lock; an unreachable Redis or a
// missed quorum is returned as an error.
func (l *RunLock) TryAcquire(ctx context.Context, date string) (bool, error) {
	lockName := runLockName(date)

	expiry, err := l.lockManager.Lock(ctx, lockName, l.ttl)
	if err != nil {
		return false, l.classify(ctx, lockName, err)
	}

	if expiry <= 0 {
		return false, fmt.Errorf("failed to acquire lock: invalid expiry %v", expiry)
	}

	logger.Info("pipeline lock acquired",
		zap.String("date", date),
		zap.Duration("ttl", l.ttl),
	)

	return true, nil
}

// classify returns nil when lockName is held by someone else, else the
// reason the lock could not be taken
func (l *RunLock) classify(ctx context.Context, lockName string, lockErr error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	n, err := l.presence.Exists(ctx, lockName).Result()
	if err != nil {
		return fmt.Errorf("run lock unavailable: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("failed to acquire %s: %w", lockName, lockErr)
	}

	logger.Debug("pipeline lock already held", zap.String("lock_name", lockName))
	return nil
}

// Release releases the lock for date
func (l *RunLock) Release(ctx context.Context, date string) error {
	if err := l.lockManager.UnLock(ctx, runLockName(date)); err != nil {
		// May have already expired
		logger.Warn("failed to release pipeline lock",
			zap.String("date", date),
			zap.Error(err),
		)
	}
	return nil
}
