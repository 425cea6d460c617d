package redis

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/amyangfei/redlock-go/v3/redlock"
	redis "github.com/go-redis/redis/v8"

	"github.com/selivandex/marketmood/internal/adapters/config"
	"github.com/selivandex/marketmood/pkg/models"
)

type memoryStore struct {
	latest      *models.DailyAnalysis
	latestCalls int
	upserts     int
	err         error
}

func (s *memoryStore) UpsertDailyAnalysis(_ context.Context, a *models.DailyAnalysis) error {
	if s.err != nil {
		return s.err
	}
	s.upserts++
	a.CreatedAt = time.Now()
	if s.latest == nil || a.Date >= s.latest.Date {
		copied := *a
		s.latest = &copied
	}
	return nil
}

func (s *memoryStore) GetLatestAnalysis(_ context.Context) (*models.DailyAnalysis, error) {
	s.latestCalls++
	return s.latest, s.err
}

func (s *memoryStore) GetAnalysisByDate(_ context.Context, date string) (*models.DailyAnalysis, error) {
	if s.latest != nil && s.latest.Date == date {
		return s.latest, nil
	}
	return nil, nil
}

func setupTestCache(t *testing.T) (*AnalysisCache, *memoryStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := &memoryStore{}
	return NewAnalysisCache(store, client, time.Minute), store, mr
}

func TestAnalysisCache_ReadThrough(t *testing.T) {
	cache, store, mr := setupTestCache(t)
	ctx := context.Background()

	store.latest = &models.DailyAnalysis{Date: "2024-03-01", FearGreedIndex: 55}

	first, err := cache.GetLatestAnalysis(ctx)
	if err != nil || first == nil || first.Date != "2024-03-01" {
		t.Fatalf("unexpected first read: %+v, %v", first, err)
	}
	if !mr.Exists(latestAnalysisKey) {
		t.Fatal("latest analysis should be cached after a miss")
	}

	second, err := cache.GetLatestAnalysis(ctx)
	if err != nil || second.FearGreedIndex != 55 {
		t.Fatalf("unexpected cached read: %+v, %v", second, err)
	}
	if store.latestCalls != 1 {
		t.Errorf("store should be hit once, got %d", store.latestCalls)
	}

	if ttl := mr.TTL(latestAnalysisKey); ttl != time.Minute {
		t.Errorf("TTL = %v, want 1m", ttl)
	}
}

func TestAnalysisCache_UpsertRefreshes(t *testing.T) {
	cache, store, mr := setupTestCache(t)
	ctx := context.Background()

	store.latest = &models.DailyAnalysis{Date: "2024-03-01", FearGreedIndex: 40}
	if _, err := cache.GetLatestAnalysis(ctx); err != nil {
		t.Fatalf("GetLatestAnalysis failed: %v", err)
	}

	if err := cache.UpsertDailyAnalysis(ctx, &models.DailyAnalysis{Date: "2024-03-01", FearGreedIndex: 80}); err != nil {
		t.Fatalf("UpsertDailyAnalysis failed: %v", err)
	}
	if !mr.Exists(latestAnalysisKey) {
		t.Fatal("upsert must leave the new record cached")
	}

	calls := store.latestCalls
	latest, err := cache.GetLatestAnalysis(ctx)
	if err != nil || latest.FearGreedIndex != 80 {
		t.Errorf("expected fresh record after upsert, got %+v, %v", latest, err)
	}
	if store.latestCalls != calls {
		t.Error("read after upsert should be served from cache")
	}
}

func TestAnalysisCache_BackfillKeepsLatest(t *testing.T) {
	cache, _, _ := setupTestCache(t)
	ctx := context.Background()

	for _, date := range []string{"2024-03-05", "2024-03-01"} {
		if err := cache.UpsertDailyAnalysis(ctx, &models.DailyAnalysis{Date: date}); err != nil {
			t.Fatalf("UpsertDailyAnalysis(%s) failed: %v", date, err)
		}
	}

	latest, err := cache.GetLatestAnalysis(ctx)
	if err != nil || latest.Date != "2024-03-05" {
		t.Errorf("older upsert replaced the cached latest: %+v, %v", latest, err)
	}
}

// gatedStore holds its first GetLatestAnalysis call open after reading
type gatedStore struct {
	mu      sync.Mutex
	latest  *models.DailyAnalysis
	calls   int
	entered chan struct{}
	release chan struct{}
}

func (s *gatedStore) UpsertDailyAnalysis(_ context.Context, a *models.DailyAnalysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.CreatedAt = time.Now()
	copied := *a
	s.latest = &copied
	return nil
}

func (s *gatedStore) GetLatestAnalysis(_ context.Context) (*models.DailyAnalysis, error) {
	s.mu.Lock()
	s.calls++
	first := s.calls == 1
	snapshot := *s.latest
	s.mu.Unlock()

	if first {
		close(s.entered)
		<-s.release
	}
	return &snapshot, nil
}

func (s *gatedStore) GetAnalysisByDate(context.Context, string) (*models.DailyAnalysis, error) {
	return nil, nil
}

func TestAnalysisCache_ReadDuringUpsertServesNewest(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := &gatedStore{
		latest:  &models.DailyAnalysis{Date: "2026-10-18", CreatedAt: time.Now().Add(-24 * time.Hour)},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	cache := NewAnalysisCache(store, client, 10*time.Minute)
	ctx := context.Background()

	done := make(chan *models.DailyAnalysis)
	go func() {
		stale, _ := cache.GetLatestAnalysis(ctx)
		done <- stale
	}()

	<-store.entered
	if err := cache.UpsertDailyAnalysis(ctx, &models.DailyAnalysis{Date: "2026-10-19"}); err != nil {
		t.Fatalf("UpsertDailyAnalysis failed: %v", err)
	}
	close(store.release)

	if stale := <-done; stale.Date != "2026-10-18" {
		t.Fatalf("in-flight read should return what it read, got %s", stale.Date)
	}

	latest, err := cache.GetLatestAnalysis(ctx)
	if err != nil || latest.Date != "2026-10-19" {
		t.Errorf("latest served = %+v, %v; want 2026-10-19", latest, err)
	}
}

func TestAnalysisCache_SameDateRerunReplaces(t *testing.T) {
	cache, _, _ := setupTestCache(t)
	ctx := context.Background()

	first := &models.DailyAnalysis{Date: "2024-03-01", FearGreedIndex: 30}
	if err := cache.UpsertDailyAnalysis(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := cache.UpsertDailyAnalysis(ctx, &models.DailyAnalysis{Date: "2024-03-01", FearGreedIndex: 70}); err != nil {
		t.Fatal(err)
	}

	// a reader that fetched the first version late must not win
	cache.put(ctx, first)

	latest, err := cache.GetLatestAnalysis(ctx)
	if err != nil || latest.FearGreedIndex != 70 {
		t.Errorf("expected the re-run, got %+v, %v", latest, err)
	}
}

func TestAnalysisCache_EmptyStoreNotCached(t *testing.T) {
	cache, _, mr := setupTestCache(t)

	latest, err := cache.GetLatestAnalysis(context.Background())
	if err != nil || latest != nil {
		t.Fatalf("expected (nil, nil), got (%+v, %v)", latest, err)
	}
	if mr.Exists(latestAnalysisKey) {
		t.Error("absent analysis must not be cached")
	}
}

func TestAnalysisCache_UpsertErrorKeepsCache(t *testing.T) {
	cache, store, mr := setupTestCache(t)
	ctx := context.Background()

	store.latest = &models.DailyAnalysis{Date: "2024-03-01"}
	if _, err := cache.GetLatestAnalysis(ctx); err != nil {
		t.Fatalf("GetLatestAnalysis failed: %v", err)
	}

	store.err = errors.New("db down")
	if err := cache.UpsertDailyAnalysis(ctx, &models.DailyAnalysis{Date: "2024-03-02"}); err == nil {
		t.Fatal("expected store error to propagate")
	}
	if !mr.Exists(latestAnalysisKey) {
		t.Error("failed upsert must not invalidate the cache")
	}
}

func TestAnalysisCache_RedisDownFallsThrough(t *testing.T) {
	cache, store, mr := setupTestCache(t)
	store.latest = &models.DailyAnalysis{Date: "2024-03-01"}

	mr.Close()

	latest, err := cache.GetLatestAnalysis(context.Background())
	if err != nil || latest == nil {
		t.Fatalf("expected store result when redis is down, got %+v, %v", latest, err)
	}
}

func TestRunLock(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	manager, err := redlock.NewRedLock(ctx, []string{"tcp://" + mr.Addr()})
	if err != nil {
		t.Fatalf("failed to create redlock: %v", err)
	}

	presence := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { presence.Close() })
	lock := NewRunLock(manager, presence, time.Minute)

	acquired, err := lock.TryAcquire(ctx, "2024-03-01")
	if err != nil || !acquired {
		t.Fatalf("first acquire should succeed, got %v, %v", acquired, err)
	}

	acquired, err = lock.TryAcquire(ctx, "2024-03-01")
	if err != nil || acquired {
		t.Fatalf("second acquire should be refused, got %v, %v", acquired, err)
	}

	acquired, err = lock.TryAcquire(ctx, "2024-03-02")
	if err != nil || !acquired {
		t.Fatalf("other dates are independent, got %v, %v", acquired, err)
	}

	if err := lock.Release(ctx, "2024-03-01"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	acquired, err = lock.TryAcquire(ctx, "2024-03-01")
	if err != nil || !acquired {
		t.Fatalf("acquire after release should succeed, got %v, %v", acquired, err)
	}
}

func TestRunLock_OutageIsAnError(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	manager, err := redlock.NewRedLock(ctx, []string{"tcp://" + mr.Addr()})
	if err != nil {
		t.Fatalf("failed to create redlock: %v", err)
	}
	manager.SetRetryCount(2)
	manager.SetRetryDelay(10)

	presence := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { presence.Close() })
	lock := NewRunLock(manager, presence, time.Minute)

	mr.Close()

	acquired, err := lock.TryAcquire(ctx, "2026-10-19")
	if acquired {
		t.Fatal("lock cannot be acquired while redis is down")
	}
	if err == nil {
		t.Fatal("an unreachable redis must be reported, not treated as a held lock")
	}
}

func TestLockAddresses(t *testing.T) {
	cfg := &config.RedisConfig{
		Host:      "cache",
		Port:      6379,
		LockAddrs: []string{"lock-a:6379", "cache:6379", "", "lock-b:6379"},
	}

	got := lockAddresses(cfg)
	want := []string{"tcp://cache:6379", "tcp://lock-a:6379", "tcp://lock-b:6379"}

	if len(got) != len(want) {
		t.Fatalf("lockAddresses() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("lockAddresses()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNew_HealthAgainstMiniredis(t *testing.T) {
	mr := miniredis.RunT(t)

	host, portStr, err := net.SplitHostPort(mr.Addr())
	if err != nil {
		t.Fatalf("bad miniredis addr: %v", err)
	}
	port, _ := strconv.Atoi(portStr)

	client, err := New(&config.RedisConfig{Host: host, Port: port})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer client.Close()

	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("expected healthy redis, got %v", err)
	}

	mr.Close()
	if err := client.Health(context.Background()); err == nil {
		t.Fatal("expected health error after redis stopped")
	}
}
