// Package collector provides a batch-oriented analytics event collector
// that accumulates events in memory and flushes them to Kafka in bulk. The
// indexer uses it so per-document index events do not cost one Kafka round
// trip each.
package collector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/logger"
)

// BatchCollector accumulates analytics events and flushes them to Kafka
// when the batch fills or the flush interval elapses, whichever comes
// first. Flushing happens on a single background goroutine; Track only
// appends and signals.
type BatchCollector struct {
	producer      *kafka.Producer
	batchSize     int
	flushInterval time.Duration
	log           *slog.Logger

	mu     sync.Mutex
	buffer []kafka.Event

	flushNow chan struct{}
	done     chan struct{}
}

// NewBatchCollector creates a collector with the given batch size and
// flush interval. Non-positive arguments take defaults of 100 events and
// 5 seconds.
func NewBatchCollector(producer *kafka.Producer, batchSize int, flushInterval time.Duration) *BatchCollector {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &BatchCollector{
		producer:      producer,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		log:           logger.WithComponent("batch-collector"),
		buffer:        make([]kafka.Event, 0, batchSize),
		flushNow:      make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
}

// Start launches the flush loop. The loop exits when ctx is cancelled,
// after a final bounded flush.
func (bc *BatchCollector) Start(ctx context.Context) {
	go func() {
		defer close(bc.done)
		ticker := time.NewTicker(bc.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				bc.flush(ctx)
			case <-bc.flushNow:
				bc.flush(ctx)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				bc.flush(flushCtx)
				cancel()
				return
			}
		}
	}()
	bc.log.Info("batch collector started",
		"batch_size", bc.batchSize,
		"flush_interval", bc.flushInterval,
	)
}

// Track buffers one event. A full buffer nudges the flush loop; Track
// itself never blocks on Kafka.
func (bc *BatchCollector) Track(key string, value any) {
	bc.mu.Lock()
	bc.buffer = append(bc.buffer, kafka.Event{Key: key, Value: value})
	full := len(bc.buffer) >= bc.batchSize
	bc.mu.Unlock()

	if full {
		select {
		case bc.flushNow <- struct{}{}:
		default:
		}
	}
}

// Close waits for the flush loop to finish. Call after cancelling the
// context passed to Start.
func (bc *BatchCollector) Close() {
	<-bc.done
}

// BufferLen returns the number of buffered events.
func (bc *BatchCollector) BufferLen() int {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return len(bc.buffer)
}

func (bc *BatchCollector) flush(ctx context.Context) {
	bc.mu.Lock()
	if len(bc.buffer) == 0 {
		bc.mu.Unlock()
		return
	}
	batch := bc.buffer
	bc.buffer = make([]kafka.Event, 0, bc.batchSize)
	bc.mu.Unlock()

	err := bc.producer.PublishBatch(ctx, batch)
	if err == nil {
		bc.log.Debug("batch flushed", "events", len(batch))
		return
	}
	bc.log.Error("batch flush failed", "batch_size", len(batch), "error", err)

	// Put failed events back, capped so repeated broker outages cannot
	// grow the buffer without bound.
	limit := bc.batchSize * 3
	bc.mu.Lock()
	bc.buffer = append(batch, bc.buffer...)
	if len(bc.buffer) > limit {
		bc.log.Warn("buffer overflow, events dropped", "dropped", len(bc.buffer)-limit)
		bc.buffer = bc.buffer[:limit]
	}
	bc.mu.Unlock()
}
