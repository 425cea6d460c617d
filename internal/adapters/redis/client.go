package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/amyangfei/redlock-go/v3/redlock"
	redis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/selivandex/marketmood/internal/adapters/config"
	"github.com/selivandex/marketmood/pkg/logger"
)

const (
	connectTimeout = 5 * time.Second
	healthTimeout  = 2 * time.Second
)

// Client bundles the analysis cache connection and the redlock manager
// guarding scheduled runs
type Client struct {
	lockManager *redlock.RedLock
	cache       *redis.Client
	lockAddrs   []string
}

// New connects the cache and builds a lock manager over the cache instance
// plus any extra quorum members from cfg.LockAddrs
func New(cfg *config.RedisConfig) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	cache := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  connectTimeout,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	if err := cache.Ping(ctx).Err(); err != nil {
		cache.Close()
		return nil, fmt.Errorf("failed to connect to redis cache: %w", err)
	}

	lockAddrs := lockAddresses(cfg)
	lockManager, err := redlock.NewRedLock(ctx, lockAddrs)
	if err != nil {
		cache.Close()
		return nil, fmt.Errorf("failed to create redlock manager: %w", err)
	}

	logger.Info("redis client initialized",
		zap.String("address", cfg.Addr()),
		zap.Int("db", cfg.DB),
		zap.Int("lock_quorum", len(lockAddrs)/2+1),
	)

	return &Client{
		lockManager: lockManager,
		cache:       cache,
		lockAddrs:   lockAddrs,
	}, nil
}

// lockAddresses returns redlock URLs, cache instance first, without duplicates
func lockAddresses(cfg *config.RedisConfig) []string {
	seen := make(map[string]bool)
	var addrs []string

	for _, addr := range append([]string{cfg.Addr()}, cfg.LockAddrs...) {
		if addr == "" || seen[addr] {
			continue
		}
		seen[addr] = true
		addrs = append(addrs, "tcp://"+addr)
	}

	return addrs
}

// NewWithClients assembles a client from existing connections
func NewWithClients(cache *redis.Client, lockManager *redlock.RedLock) *Client {
	return &Client{cache: cache, lockManager: lockManager}
}

// Cache returns the caching client
func (c *Client) Cache() *redis.Client {
	return c.cache
}

// LockManager returns the redlock manager
func (c *Client) LockManager() *redlock.RedLock {
	return c.lockManager
}

// Close closes the cache connection; redlock holds no long-lived state
func (c *Client) Close() error {
	if c.cache == nil {
		return nil
	}

	logger.Info("closing redis cache client")
	if err := c.cache.Close(); err != nil {
		return fmt.Errorf("failed to close redis cache: %w", err)
	}
	return nil
}

// Health implements health.Checker. Only the cache instance is probed.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	if err := c.cache.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
