package clickhouse

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/marketmood/pkg/logger"
)

const flushTimeout = 30 * time.Second

// FlushFunc writes one batch of buffered records
type FlushFunc[T any] func(ctx context.Context, records []T) error

// BatchWriter buffers records and writes them in batches, either when the
// buffer reaches maxBatch or every maxWait, whichever comes first. Writes
// happen on the writer's own goroutine; Add never waits for the sink.
type BatchWriter[T any] struct {
	name        string
	buffer      []T
	bufferMu    sync.Mutex
	flushMu     sync.Mutex
	maxBatch    int
	flushTicker *time.Ticker
	flushFunc   FlushFunc[T]
	full        chan struct{}
	done        chan struct{}
	closeOnce   sync.Once
	wg          sync.WaitGroup
}

// NewBatchWriter creates new batch writer and starts its flush loop
func NewBatchWriter[T any](name string, maxBatch int, maxWait time.Duration, flushFunc FlushFunc[T]) *BatchWriter[T] {
	if maxBatch < 1 {
		maxBatch = 1
	}
	if maxWait <= 0 {
		maxWait = 5 * time.Second
	}

	bw := &BatchWriter[T]{
		name:        name,
		buffer:      make([]T, 0, maxBatch),
		maxBatch:    maxBatch,
		flushTicker: time.NewTicker(maxWait),
		flushFunc:   flushFunc,
		full:        make(chan struct{}, 1),
		done:        make(chan struct{}),
	}

	bw.wg.Add(1)
	go bw.autoFlush()

	return bw
}

// Add appends records to the buffer and wakes the flush loop once the
// buffer reaches maxBatch
func (bw *BatchWriter[T]) Add(records ...T) {
	if len(records) == 0 {
		return
	}

	bw.bufferMu.Lock()
	bw.buffer = append(bw.buffer, records...)
	shouldFlush := len(bw.buffer) >= bw.maxBatch
	bw.bufferMu.Unlock()

	if shouldFlush {
		select {
		case bw.full <- struct{}{}:
		default:
			// a flush is already pending
		}
	}
}

// Pending returns number of buffered records
func (bw *BatchWriter[T]) Pending() int {
	bw.bufferMu.Lock()
	defer bw.bufferMu.Unlock()
	return len(bw.buffer)
}

func (bw *BatchWriter[T]) autoFlush() {
	defer bw.wg.Done()

	for {
		select {
		case <-bw.flushTicker.C:
			bw.Flush()
		case <-bw.full:
			bw.Flush()
		case <-bw.done:
			// Final flush before exit
			bw.Flush()
			return
		}
	}
}

// Flush writes buffered records now. Failed batches are logged and dropped.
func (bw *BatchWriter[T]) Flush() {
	bw.flushMu.Lock()
	defer bw.flushMu.Unlock()

	bw.bufferMu.Lock()
	if len(bw.buffer) == 0 {
		bw.bufferMu.Unlock()
		return
	}
	toWrite := make([]T, len(bw.buffer))
	copy(toWrite, bw.buffer)
	bw.buffer = bw.buffer[:0]
	bw.bufferMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	if err := bw.flushFunc(ctx, toWrite); err != nil {
		logger.Error("failed to flush batch",
			zap.String("writer", bw.name),
			zap.Int("records", len(toWrite)),
			zap.Error(err),
		)
		return
	}

	logger.Debug("flushed batch",
		zap.String("writer", bw.name),
		zap.Int("records", len(toWrite)),
	)
}

// Close stops the writer and flushes remaining data
func (bw *BatchWriter[T]) Close() error {
	bw.closeOnce.Do(func() {
		bw.flushTicker.Stop()
		close(bw.done)
	})
	bw.wg.Wait()
	return nil
}
