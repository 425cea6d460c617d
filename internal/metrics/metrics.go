package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/selivandex/marketmood/internal/pipeline"
	"github.com/selivandex/marketmood/pkg/apperr"
)

const namespace = "marketmood"

// PipelineMetrics holds Prometheus metrics for ingest and daily runs.
// A nil *PipelineMetrics is valid and records nothing.
type PipelineMetrics struct {
	RunsTotal       *prometheus.CounterVec
	RunFailures     *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	FearGreedIndex  prometheus.Gauge
	ItemsAnalyzed   prometheus.Gauge
	LastSuccess     prometheus.Gauge
	ItemsCollected  *prometheus.CounterVec
	CollectFailures *prometheus.CounterVec
}

// NewPipelineMetrics creates and registers the metrics with reg
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Daily pipeline runs by outcome status.",
		}, []string{"status"}),
		RunFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_failures_total",
			Help:      "Failed daily pipeline runs by error kind.",
		}, []string{"kind"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_run_duration_seconds",
			Help:      "Wall time of successful daily pipeline runs.",
			Buckets:   []float64{1, 5, 10, 20, 30, 60, 120, 300},
		}),
		FearGreedIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fear_greed_index",
			Help:      "Statistical fear/greed index of the latest persisted analysis.",
		}),
		ItemsAnalyzed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_items_analyzed",
			Help:      "Content items in the latest analyzed window.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_last_success_timestamp_seconds",
			Help:      "Unix time of the last persisted analysis.",
		}),
		ItemsCollected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collector_items_total",
			Help:      "Content items stored by the collector by kind.",
		}, []string{"kind"}),
		CollectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collector_subreddit_failures_total",
			Help:      "Subreddit fetches skipped after an error.",
		}, []string{"subreddit"}),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RunFailures,
		m.RunDuration,
		m.FearGreedIndex,
		m.ItemsAnalyzed,
		m.LastSuccess,
		m.ItemsCollected,
		m.CollectFailures,
	)

	return m
}

// OnRunComplete implements pipeline.RunObserver
func (m *PipelineMetrics) OnRunComplete(_ context.Context, result *pipeline.Result) {
	if m == nil || result == nil {
		return
	}

	m.RunsTotal.WithLabelValues(string(result.Status)).Inc()
	m.RunDuration.Observe(result.Duration.Seconds())
	m.ItemsAnalyzed.Set(float64(result.Items))
	m.LastSuccess.Set(float64(time.Now().Unix()))
	if result.Analysis != nil {
		m.FearGreedIndex.Set(result.Analysis.FearGreedIndex)
	}
}

// OnRunFailed implements pipeline.RunObserver
func (m *PipelineMetrics) OnRunFailed(_ context.Context, _, _ string, err error) {
	if m == nil {
		return
	}

	m.RunsTotal.WithLabelValues("failed").Inc()
	m.RunFailures.WithLabelValues(string(apperr.KindOf(err))).Inc()
}

// ObserveCollect records one collection pass
func (m *PipelineMetrics) ObserveCollect(posts, comments int, failedSubreddits []string) {
	if m == nil {
		return
	}

	m.ItemsCollected.WithLabelValues("post").Add(float64(posts))
	m.ItemsCollected.WithLabelValues("comment").Add(float64(comments))
	for _, sub := range failedSubreddits {
		m.CollectFailures.WithLabelValues(sub).Inc()
	}
}
