package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/selivandex/marketmood/pkg/logger"
	"github.com/selivandex/marketmood/pkg/models"
)

const (
	latestAnalysisKey        = "analysis:latest"
	latestAnalysisVersionKey = "analysis:latest:version"
)

// storeIfNewer writes the payload unless a newer version is already cached.
// KEYS: payload, version. ARGV: version, payload, ttl in ms. The version key
// has no expiry so a slow reader cannot resurrect an old record after the
// payload expired.
var storeIfNewer = redis.NewScript(`
local current = redis.call('GET', KEYS[2])
if current and current > ARGV[1] then
	return 0
end
redis.call('SET', KEYS[2], ARGV[1])
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// AnalysisStore is the persistence contract the cache sits in front of
type AnalysisStore interface {
	UpsertDailyAnalysis(ctx context.Context, a *models.DailyAnalysis) error
	GetLatestAnalysis(ctx context.Context) (*models.DailyAnalysis, error)
	GetAnalysisByDate(ctx context.Context, date string) (*models.DailyAnalysis, error)
}

// AnalysisCache serves the latest analysis from Redis. Entries are versioned
// by (date, created_at) so an older record read before an upsert can never
// replace the one the upsert cached. Cache failures fall through to the store.
type AnalysisCache struct {
	store AnalysisStore
	cache *redis.Client
	ttl   time.Duration
}

// NewAnalysisCache wraps store with a read-through cache
func NewAnalysisCache(store AnalysisStore, cache *redis.Client, ttl time.Duration) *AnalysisCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &AnalysisCache{store: store, cache: cache, ttl: ttl}
}

// cacheVersion orders records the way the store picks the latest one
func cacheVersion(a *models.DailyAnalysis) string {
	var nanos int64
	if !a.CreatedAt.IsZero() {
		nanos = a.CreatedAt.UnixNano()
	}
	return fmt.Sprintf("%s|%020d", a.Date, nanos)
}

// UpsertDailyAnalysis writes through to the store, then refreshes the cached
// latest record from the store. The upserted date may not be the latest one.
func (c *AnalysisCache) UpsertDailyAnalysis(ctx context.Context, a *models.DailyAnalysis) error {
	if err := c.store.UpsertDailyAnalysis(ctx, a); err != nil {
		return err
	}

	latest, err := c.store.GetLatestAnalysis(ctx)
	if err != nil || latest == nil {
		// the next read repopulates
		if err := c.cache.Del(ctx, latestAnalysisKey).Err(); err != nil {
			logger.Warn("failed to invalidate latest analysis cache", zap.Error(err))
		}
		return nil
	}

	c.put(ctx, latest)
	return nil
}

// GetLatestAnalysis implements AnalysisStore
func (c *AnalysisCache) GetLatestAnalysis(ctx context.Context) (*models.DailyAnalysis, error) {
	data, err := c.cache.Get(ctx, latestAnalysisKey).Bytes()
	switch {
	case err == nil:
		var cached models.DailyAnalysis
		if jsonErr := json.Unmarshal(data, &cached); jsonErr == nil {
			return &cached, nil
		}
		logger.Warn("discarding malformed cached analysis")
	case !errors.Is(err, redis.Nil):
		logger.Warn("latest analysis cache read failed", zap.Error(err))
	}

	analysis, err := c.store.GetLatestAnalysis(ctx)
	if err != nil || analysis == nil {
		return analysis, err
	}

	c.put(ctx, analysis)
	return analysis, nil
}

func (c *AnalysisCache) put(ctx context.Context, a *models.DailyAnalysis) {
	payload, err := json.Marshal(a)
	if err != nil {
		logger.Warn("failed to encode analysis for cache", zap.Error(err))
		return
	}

	stored, err := storeIfNewer.Run(ctx, c.cache,
		[]string{latestAnalysisKey, latestAnalysisVersionKey},
		cacheVersion(a), payload, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		logger.Warn("failed to cache latest analysis", zap.Error(err))
		return
	}
	if stored == 0 {
		logger.Debug("newer analysis already cached", zap.String("date", a.Date))
	}
}

// GetAnalysisByDate is not cached
func (c *AnalysisCache) GetAnalysisByDate(ctx context.Context, date string) (*models.DailyAnalysis, error) {
	return c.store.GetAnalysisByDate(ctx, date)
}
