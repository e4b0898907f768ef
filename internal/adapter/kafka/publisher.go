// Package kafka publishes geocode activity events to an analytics topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/domicilios/geocoding-service/internal/config"
	"github.com/domicilios/geocoding-service/internal/geocoder"
	"github.com/domicilios/geocoding-service/internal/observability"
)

const flushTimeout = 5 * time.Second

// messageWriter is the slice of kafka-go's Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher batches activity events and writes them to the analytics topic.
// It implements geocoder.ActivitySink. Record never blocks: when the queue
// is full the event is dropped and counted, keeping analytics strictly
// fire-and-forget from the geocoding path.
type Publisher struct {
	writer        messageWriter
	queue         chan geocoder.ActivityEvent
	batchSize     int
	flushInterval time.Duration
	clock         clockwork.Clock
	metrics       *observability.Metrics
	logger        *slog.Logger

	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewPublisher creates a producer for the configured analytics topic and
// starts its flush loop.
func NewPublisher(cfg *config.Config, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.AnalyticsTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireOne,
	}
	return newPublisher(w, cfg.AnalyticsBatchSize, cfg.AnalyticsFlushInterval, clock, metrics, logger)
}

func newPublisher(w messageWriter, batchSize int, flushInterval time.Duration, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Publisher {
	p := &Publisher{
		writer:        w,
		queue:         make(chan geocoder.ActivityEvent, batchSize*4),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		clock:         clock,
		metrics:       metrics,
		logger:        logger,
		done:          make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go p.run()
	return p
}

// Record queues one event for publishing.
func (p *Publisher) Record(ev geocoder.ActivityEvent) {
	select {
	case p.queue <- ev:
		p.metrics.AnalyticsQueue.Inc()
	default:
		p.metrics.AnalyticsDropped.Inc()
	}
}

// run accumulates events and flushes on batch size or on the ticker,
// whichever comes first.
func (p *Publisher) run() {
	defer close(p.stopped)

	ticker := p.clock.NewTicker(p.flushInterval)
	defer ticker.Stop()

	batch := make([]geocoder.ActivityEvent, 0, p.batchSize)
	for {
		select {
		case ev := <-p.queue:
			batch = append(batch, ev)
			if len(batch) >= p.batchSize {
				batch = p.flush(batch)
			}
		case <-ticker.Chan():
			batch = p.flush(batch)
		case <-p.done:
			// Drain whatever is still queued, then flush one last time.
			for {
				select {
				case ev := <-p.queue:
					batch = append(batch, ev)
				default:
					p.flush(batch)
					return
				}
			}
		}
	}
}

// flush writes the batch in a single WriteMessages call. Failures drop the
// batch: analytics never earns a retry at the expense of freshness.
func (p *Publisher) flush(batch []geocoder.ActivityEvent) []geocoder.ActivityEvent {
	if len(batch) == 0 {
		return batch
	}

	msgs := make([]kafkago.Message, 0, len(batch))
	for i := range batch {
		msg, err := serializeToMessage(batch[i])
		if err != nil {
			p.logger.Error("serialize activity event", "error", err)
			p.metrics.AnalyticsDropped.Inc()
			continue
		}
		msgs = append(msgs, msg)
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	n := float64(len(batch))
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.logger.Warn("publish activity batch failed", "count", len(batch), "error", err)
		p.metrics.AnalyticsDropped.Add(n)
	} else {
		p.metrics.AnalyticsPublished.Add(n)
	}
	p.metrics.AnalyticsQueue.Sub(n)

	return batch[:0]
}

// Close stops the flush loop, drains the queue, and closes the writer.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		<-p.stopped
	})
	return p.writer.Close()
}

// serializeToMessage marshals an activity event into a Kafka message keyed
// by provider so per-provider consumers stay ordered.
func serializeToMessage(ev geocoder.ActivityEvent) (kafkago.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize activity event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(ev.Provider),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "operation", Value: []byte(ev.Operation)},
			{Key: "outcome", Value: []byte(ev.Outcome)},
		},
	}, nil
}
