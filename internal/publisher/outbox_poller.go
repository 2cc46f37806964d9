package publisher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fjod/storefront-checkout/internal/metrics"
	r "github.com/fjod/storefront-checkout/internal/repository"
	"github.com/fjod/storefront-checkout/pkg/circuitbreaker"
	"github.com/segmentio/kafka-go"
)

const DefaultTopic = "checkout-orders"

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// OutboxPoller relays outbox events written by committed checkouts to Kafka and
// marks them processed. Delivery is at least once.
type OutboxPoller struct {
	timeout   time.Duration
	eventTick time.Duration
	batchSize int
	repo      r.OutboxStore
	writer    MessageWriter
	breaker   *circuitbreaker.Breaker
	metrics   *metrics.Metrics
	log       *slog.Logger
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

func NewOutboxPoller(repo r.OutboxStore, writer MessageWriter, m *metrics.Metrics, log *slog.Logger) *OutboxPoller {
	if log == nil {
		log = slog.Default()
	}
	return &OutboxPoller{
		timeout:   5 * time.Second,
		eventTick: time.Second,
		batchSize: 100,
		repo:      repo,
		writer:    writer,
		breaker:   circuitbreaker.New(circuitbreaker.DefaultSettings("kafka-outbox"), log),
		metrics:   m,
		log:       log,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	defer eventTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Start runs the poller in the background. The returned stop cancels it and
// waits for Run to return, so the writer can be closed afterwards.
func (p *OutboxPoller) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, p.batchSize)
	if err != nil {
		p.log.Error("failed to fetch outbox events", "error", err)
		return
	}

	for _, event := range events {
		errPublish := p.breaker.Do(func() error {
			return p.publishToKafka(ctx, event)
		})
		if errors.Is(errPublish, circuitbreaker.ErrOpen) {
			// the rest of the batch would fail the same way
			p.metrics.ObservePublish("rejected")
			p.log.Warn("broker circuit open, postponing outbox batch", "pending", len(events))
			return
		}
		if errPublish != nil {
			p.metrics.ObservePublish("error")
			p.log.Error("failed to publish outbox event", "event_id", event.ID, "error", errPublish)
			continue
		}
		p.metrics.ObservePublish("ok")

		errMark := p.repo.MarkEventAsProcessed(ctx, event.ID)
		if errMark != nil {
			p.log.Error("failed to mark outbox event as processed", "event_id", event.ID, "error", errMark)
			continue
		}
	}
}

func (p *OutboxPoller) publishToKafka(ctx context.Context, event *r.OutboxEvent) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // order id keeps events of one order in one partition
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
		Time: event.CreatedAt,
	}
	return p.writer.WriteMessages(ctx, msg)
}
