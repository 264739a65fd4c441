package analytics

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/logger"
)

// Collector forwards tracked events to Kafka from a background goroutine.
// Track never blocks the request path: when the buffer is full the event is
// dropped with a warning.
type Collector struct {
	producer *kafka.Producer
	eventCh  chan any
	log      *slog.Logger
	done     chan struct{}
}

func NewCollector(producer *kafka.Producer, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		producer: producer,
		eventCh:  make(chan any, bufferSize),
		log:      logger.WithComponent("analytics-collector"),
		done:     make(chan struct{}),
	}
}

// Start launches the publish loop. Events still buffered when ctx is
// cancelled are drained best-effort before the loop exits.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				if err := c.producer.Publish(ctx, kafka.Event{Key: "analytics", Value: event}); err != nil {
					c.log.Error("failed to publish analytics event", "error", err)
				}
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.log.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

// Track enqueues an event for publication without blocking.
func (c *Collector) Track(event any) {
	select {
	case c.eventCh <- event:
	default:
		c.log.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops accepting events and waits for the publish loop to exit.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

func (c *Collector) drainRemaining() {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			if err := c.producer.Publish(context.Background(), kafka.Event{Key: "analytics", Value: event}); err != nil {
				c.log.Error("failed to publish remaining event", "error", err)
			}
		default:
			return
		}
	}
}
