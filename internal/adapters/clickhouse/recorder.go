package clickhouse

import (
	"context"
	"time"

	"github.com/selivandex/marketmood/internal/pipeline"
	"github.com/selivandex/marketmood/pkg/models"
)

// DefaultTopSymbols is how many ranked symbols each run records
const DefaultTopSymbols = 25

// MentionRecorder appends the top symbols of every completed run to
// mention history. Writes are buffered and flushed off the run's goroutine.
type MentionRecorder struct {
	writer *BatchWriter[models.MentionSnapshot]
	topN   int
	clock  func() time.Time
}

// NewMentionRecorder creates recorder backed by repo
func NewMentionRecorder(repo *Repository, topN, maxBatch int, maxWait time.Duration) *MentionRecorder {
	if topN < 1 {
		topN = DefaultTopSymbols
	}

	return &MentionRecorder{
		writer: NewBatchWriter("mention_history", maxBatch, maxWait, repo.SaveMentions),
		topN:   topN,
		clock:  time.Now,
	}
}

// OnRunComplete implements pipeline.RunObserver
func (m *MentionRecorder) OnRunComplete(_ context.Context, result *pipeline.Result) {
	m.writer.Add(Snapshots(result, m.topN, m.clock())...)
}

// OnRunFailed implements pipeline.RunObserver. Failed runs leave no history.
func (m *MentionRecorder) OnRunFailed(context.Context, string, string, error) {}

// Close flushes buffered snapshots
func (m *MentionRecorder) Close() error {
	return m.writer.Close()
}

// Snapshots converts the ranked mentions of result into history rows. A run
// without mentions yields a single marker row with an empty symbol so that
// it still supersedes earlier runs of its date.
func Snapshots(result *pipeline.Result, topN int, recordedAt time.Time) []models.MentionSnapshot {
	if result == nil || result.Analysis == nil {
		return nil
	}

	mentions := result.Analysis.StockMentions
	if topN > 0 && len(mentions) > topN {
		mentions = mentions[:topN]
	}

	if len(mentions) == 0 {
		return []models.MentionSnapshot{{
			RecordedAt:     recordedAt,
			Date:           result.Date,
			RunID:          result.RunID,
			FearGreedIndex: result.Analysis.FearGreedIndex,
			Fallback:       result.Status == pipeline.StatusFallback,
		}}
	}

	snapshots := make([]models.MentionSnapshot, len(mentions))
	for i, mention := range mentions {
		snapshots[i] = models.MentionSnapshot{
			RecordedAt:     recordedAt,
			Date:           result.Date,
			RunID:          result.RunID,
			Symbol:         mention.Symbol,
			Mentions:       mention.Count,
			Rank:           i + 1,
			FearGreedIndex: result.Analysis.FearGreedIndex,
			Fallback:       result.Status == pipeline.StatusFallback,
		}
	}

	return snapshots
}
