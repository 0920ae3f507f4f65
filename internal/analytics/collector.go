package analytics

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/kafka"
)

// Tracker accepts analytics events. Track must not block the caller.
type Tracker interface {
	Track(event Event)
}

// Collector buffers events and publishes them to Kafka in batches, flushing
// when a batch fills up or the flush interval passes. Events that do not fit
// in the buffer are dropped and counted.
type Collector struct {
	publisher     kafka.Publisher
	events        chan Event
	batchSize     int
	flushInterval time.Duration
	dropped       atomic.Int64
	published     atomic.Int64
	logger        *slog.Logger
	done          chan struct{}
}

func NewCollector(publisher kafka.Publisher, cfg config.AnalyticsConfig) *Collector {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 10000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	return &Collector{
		publisher:     publisher,
		events:        make(chan Event, cfg.BufferSize),
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		logger:        slog.Default().With("component", "analytics-collector"),
		done:          make(chan struct{}),
	}
}

// Start runs the publish loop until ctx is cancelled, then drains whatever
// is still buffered with a short deadline.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()

		batch := make([]kafka.Event, 0, c.batchSize)
		for {
			select {
			case event := <-c.events:
				batch = append(batch, toKafka(event))
				if len(batch) >= c.batchSize {
					batch = c.flush(ctx, batch)
				}
			case <-ticker.C:
				batch = c.flush(ctx, batch)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				c.drain(flushCtx, batch)
				cancel()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.events),
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

func (c *Collector) Track(event Event) {
	select {
	case c.events <- event:
	default:
		if c.dropped.Add(1)%1000 == 1 {
			c.logger.Warn("analytics event dropped (buffer full)", "dropped_total", c.dropped.Load())
		}
	}
}

// Close waits for the publish loop to finish after its context ends.
func (c *Collector) Close() {
	<-c.done
}

func (c *Collector) Dropped() int64   { return c.dropped.Load() }
func (c *Collector) Published() int64 { return c.published.Load() }

// flush publishes batch and returns an empty slice to refill. A failed batch
// is logged and discarded; analytics never hold up searches.
func (c *Collector) flush(ctx context.Context, batch []kafka.Event) []kafka.Event {
	if len(batch) == 0 {
		return batch
	}
	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.dropped.Add(int64(len(batch)))
		c.logger.Error("batch flush failed", "batch_size", len(batch), "error", err)
	} else {
		c.published.Add(int64(len(batch)))
		c.logger.Debug("batch flushed", "events", len(batch))
	}
	return make([]kafka.Event, 0, c.batchSize)
}

func (c *Collector) drain(ctx context.Context, batch []kafka.Event) {
	for {
		select {
		case event := <-c.events:
			batch = append(batch, toKafka(event))
			if len(batch) >= c.batchSize {
				batch = c.flush(ctx, batch)
			}
		default:
			c.flush(ctx, batch)
			return
		}
	}
}

func toKafka(event Event) kafka.Event {
	switch e := event.(type) {
	case SearchEvent:
		e.Type = e.Kind()
		event = e
	case RebuildEvent:
		e.Type = EventRebuild
		event = e
	}
	return kafka.Event{Key: string(event.Kind()), Type: string(event.Kind()), Value: event}
}
