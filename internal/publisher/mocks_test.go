package publisher

import (
	"context"
	"sync"
	"sync/atomic"

	r "github.com/fjod/storefront-checkout/internal/repository"
	"github.com/segmentio/kafka-go"
)

// MockWriter implements MessageWriter for testing
type MockWriter struct {
	mu       sync.Mutex
	Messages []kafka.Message
	Err      error
	Calls    int
}

func (m *MockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return m.Err
	}
	m.Messages = append(m.Messages, msgs...)
	return nil
}

// MockOutboxStore implements r.OutboxStore for testing
type MockOutboxStore struct {
	Events      []*r.OutboxEvent
	GetErr      error
	MarkErr     error
	ProcessedID []string
}

func (m *MockOutboxStore) GetUnprocessedEvents(context.Context, int) ([]*r.OutboxEvent, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	return m.Events, nil
}

func (m *MockOutboxStore) MarkEventAsProcessed(_ context.Context, id string) error {
	if m.MarkErr != nil {
		return m.MarkErr
	}
	m.ProcessedID = append(m.ProcessedID, id)
	return nil
}

// BlockingWriter holds WriteMessages until its context is cancelled.
type BlockingWriter struct {
	Entered  chan struct{}
	returned atomic.Bool
	once     sync.Once
}

func NewBlockingWriter() *BlockingWriter {
	return &BlockingWriter{Entered: make(chan struct{})}
}

func (b *BlockingWriter) WriteMessages(ctx context.Context, _ ...kafka.Message) error {
	b.once.Do(func() { close(b.Entered) })
	<-ctx.Done()
	b.returned.Store(true)
	return ctx.Err()
}

func (b *BlockingWriter) Returned() bool {
	return b.returned.Load()
}
