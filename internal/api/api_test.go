package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selivandex/marketmood/internal/adapters/corpus"
	"github.com/selivandex/marketmood/internal/pipeline"
	"github.com/selivandex/marketmood/internal/sentiment"
	"github.com/selivandex/marketmood/pkg/apperr"
	"github.com/selivandex/marketmood/pkg/models"
)

var now = time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)

type fakeAnalyses struct {
	latest *models.DailyAnalysis
	byDate map[string]*models.DailyAnalysis
	err    error
}

func (f *fakeAnalyses) GetLatestAnalysis(context.Context) (*models.DailyAnalysis, error) {
	return f.latest, f.err
}

func (f *fakeAnalyses) GetAnalysisByDate(_ context.Context, date string) (*models.DailyAnalysis, error) {
	return f.byDate[date], f.err
}

type fakeContent struct {
	start, end     time.Time
	page, pageSize int
}

func (f *fakeContent) GetContentInRange(_ context.Context, start, end time.Time, page, pageSize int) (*corpus.Page, error) {
	f.start, f.end, f.page, f.pageSize = start, end, page, pageSize
	return &corpus.Page{Items: []models.ContentItem{{ID: "p1"}}, Page: page, PageSize: pageSize, Total: 1}, nil
}

type fakeRunner struct {
	result *pipeline.Result
	err    error
}

func (f *fakeRunner) RunDaily(context.Context) (*pipeline.Result, error) {
	return f.result, f.err
}

type fakeMentions struct {
	symbol string
	since  time.Time
}

func (f *fakeMentions) GetSymbolHistory(_ context.Context, symbol string, since time.Time) ([]models.MentionSnapshot, error) {
	f.symbol, f.since = symbol, since
	return []models.MentionSnapshot{{Symbol: symbol, Date: "2024-03-01", Mentions: 4, Rank: 1}}, nil
}

type failingScorer struct{}

func (failingScorer) Score(context.Context, string) (models.SentimentScore, error) {
	return models.SentimentScore{}, apperr.New(apperr.KindScoring, "sentiment_label missing")
}

func sampleAnalysis() *models.DailyAnalysis {
	return &models.DailyAnalysis{
		Date:            "2024-03-01",
		CreatedAt:       now,
		FearGreedIndex:  64.2,
		StockMentions:   []models.StockMention{{Symbol: "TSLA", Count: 3}},
		WordFrequencies: []models.WordFrequencyEntry{{Word: "moon", Frequency: 7}},
		MarketSentiment: models.MarketSentiment{Score: 0.3, Label: models.SentimentPositive},
		TrendingTopics:  []models.TrendingTopic{{Topic: "EV rally", Kind: models.TopicKindTheme}},
		RiskIndicators:  models.RiskIndicators{ContrarianSignals: []string{}},
	}
}

type testEnv struct {
	analyses *fakeAnalyses
	content  *fakeContent
	runner   *fakeRunner
	mentions *fakeMentions
	router   *gin.Engine
}

func newTestEnv() *testEnv {
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		analyses: &fakeAnalyses{latest: sampleAnalysis(), byDate: map[string]*models.DailyAnalysis{}},
		content:  &fakeContent{},
		runner:   &fakeRunner{},
		mentions: &fakeMentions{},
	}

	env.router = NewRouter(Deps{
		Analyses: env.analyses,
		Content:  env.content,
		Pipeline: env.runner,
		Mentions: env.mentions,
		Scorers: map[string]sentiment.Scorer{
			"local":  sentiment.NewLocalScorer(nil),
			"remote": failingScorer{},
		},
		Gatherer: prometheus.NewRegistry(),
		Clock:    func() time.Time { return now },
	})
	return env
}

func (env *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRoot(t *testing.T) {
	env := newTestEnv()
	rec := env.do(http.MethodGet, "/", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "operational", decode(t, rec)["status"])
}

func TestMarketViews(t *testing.T) {
	tests := []struct {
		view string
		keys []string
	}{
		{"overview", []string{"date", "stock_mentions", "word_frequencies", "fear_greed_index", "market_sentiment", "trending_topics", "risk_indicators", "created_at"}},
		{"sentiment", []string{"fear_greed_index", "market_sentiment", "risk_indicators", "date", "last_updated"}},
		{"wordcloud", []string{"word_frequencies", "timestamp"}},
		{"stocks", []string{"stock_mentions", "date", "last_updated"}},
		{"trends", []string{"trending_topics", "date", "last_updated"}},
	}

	env := newTestEnv()
	for _, tt := range tests {
		t.Run(tt.view, func(t *testing.T) {
			rec := env.do(http.MethodGet, "/api/market/"+tt.view, "")
			require.Equal(t, http.StatusOK, rec.Code)

			body := decode(t, rec)
			assert.Len(t, body, len(tt.keys))
			for _, key := range tt.keys {
				assert.Contains(t, body, key)
			}
		})
	}
}

func TestMarketView_NoAnalysis(t *testing.T) {
	env := newTestEnv()
	env.analyses.latest = nil

	for _, view := range []string{"overview", "sentiment", "wordcloud"} {
		rec := env.do(http.MethodGet, "/api/market/"+view, "")
		require.Equal(t, http.StatusNotFound, rec.Code)

		body := decode(t, rec)
		assert.Equal(t, "not_found", body["kind"])
		assert.Equal(t, "No market analysis available. Please try again later.", body["message"])
	}
}

func TestMarketView_ByDate(t *testing.T) {
	env := newTestEnv()
	older := sampleAnalysis()
	older.Date = "2024-02-28"
	env.analyses.byDate["2024-02-28"] = older

	rec := env.do(http.MethodGet, "/api/market/sentiment?date=2024-02-28", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-02-28", decode(t, rec)["date"])

	rec = env.do(http.MethodGet, "/api/market/sentiment?date=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, "/api/market/sentiment?date=2020-01-01", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarketView_Errors(t *testing.T) {
	env := newTestEnv()

	rec := env.do(http.MethodGet, "/api/market/heatmap", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env.analyses.err = errors.New("pq: connection refused")
	rec = env.do(http.MethodGet, "/api/market/overview", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "persistence_error", body["kind"])
	assert.NotContains(t, body["message"], "pq:")
}

func TestContent(t *testing.T) {
	env := newTestEnv()

	rec := env.do(http.MethodGet, "/api/content?page=2&page_size=10000", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, now.Add(-24*time.Hour), env.content.start)
	assert.Equal(t, now, env.content.end)
	assert.Equal(t, 2, env.content.page)
	assert.Equal(t, corpus.MaxPageSize, env.content.pageSize)

	rec = env.do(http.MethodGet, "/api/content?start=2024-03-01T00:00:00Z&end=2024-03-01T06:00:00Z", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC), env.content.end)
	assert.Equal(t, 1, env.content.page)

	rec = env.do(http.MethodGet, "/api/content?start=2024-03-02T00:00:00Z&end=2024-03-01T00:00:00Z", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, "/api/content?start=monday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunPipeline(t *testing.T) {
	env := newTestEnv()
	env.runner.result = &pipeline.Result{
		RunID:    "run-1",
		Date:     "2024-03-02",
		Status:   pipeline.StatusFallback,
		Items:    12,
		Duration: 1500 * time.Millisecond,
		Analysis: sampleAnalysis(),
	}

	rec := env.do(http.MethodPost, "/api/pipeline/run", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "fallback", body["status"])
	assert.Equal(t, float64(1500), body["duration_ms"])
}

func TestRunPipeline_ErrorKinds(t *testing.T) {
	tests := []struct {
		err  error
		code int
		kind string
	}{
		{apperr.New(apperr.KindSourceUnavailable, "db down"), http.StatusServiceUnavailable, "source_unavailable"},
		{apperr.New(apperr.KindSummarizer, "missing key_themes"), http.StatusBadGateway, "summarizer_error"},
		{apperr.New(apperr.KindPersistence, "upsert failed"), http.StatusInternalServerError, "persistence_error"},
		{errors.New("unexpected"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			env := newTestEnv()
			env.runner.err = tt.err

			rec := env.do(http.MethodPost, "/api/pipeline/run", "")
			require.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.kind, decode(t, rec)["kind"])
		})
	}
}

func TestScoreSentiment(t *testing.T) {
	env := newTestEnv()

	rec := env.do(http.MethodPost, "/api/sentiment/score", `{"text":"The market is showing strong bullish signals today."}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "local", body["strategy"])
	assert.Equal(t, "positive", body["sentiment_label"])
	assert.Nil(t, body["confidence"])

	rec = env.do(http.MethodPost, "/api/sentiment/score", `{"text":"x","strategy":"remote"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "scoring_error", decode(t, rec)["kind"])

	rec = env.do(http.MethodPost, "/api/sentiment/score", `{"text":"x","strategy":"magic"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/sentiment/score", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMentionHistory(t *testing.T) {
	env := newTestEnv()

	rec := env.do(http.MethodGet, "/api/mentions/$GME?days=7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "GME", env.mentions.symbol)
	assert.Equal(t, now.AddDate(0, 0, -7), env.mentions.since)

	rec = env.do(http.MethodGet, "/api/mentions/GME?days=1000", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSAndMetrics(t *testing.T) {
	env := newTestEnv()

	req := httptest.NewRequest(http.MethodGet, "/api/market/overview", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = env.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
