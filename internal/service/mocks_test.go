package service

import (
	"context"
	"sync"

	"github.com/fjod/storefront-checkout/internal/cache"
	"github.com/fjod/storefront-checkout/internal/domain"
	"github.com/fjod/storefront-checkout/internal/idempotency"
	r "github.com/fjod/storefront-checkout/internal/repository"
)

// MockCache implements cache.ReplayCache for testing
type MockCache struct {
	mu      sync.Mutex
	Entries map[string]string
	GetErr  error
	SetErr  error
	Sets    int
}

func NewMockCache() *MockCache {
	return &MockCache{Entries: make(map[string]string)}
}

func (m *MockCache) Get(_ context.Context, fingerprint string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return "", m.GetErr
	}
	id, ok := m.Entries[fingerprint]
	if !ok {
		return "", cache.ErrCacheMiss
	}
	return id, nil
}

func (m *MockCache) Set(_ context.Context, fingerprint, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sets++
	if m.SetErr != nil {
		return m.SetErr
	}
	m.Entries[fingerprint] = orderID
	return nil
}

// FlakyStore wraps a MemoryStore to inject storage failures
type FlakyStore struct {
	*r.MemoryStore
	TxErr error
	// HideDuplicatesOnce makes the next duplicate lookup miss, as a snapshot
	// taken before a concurrent commit would.
	HideDuplicatesOnce bool
	TxCalls            int
}

func (f *FlakyStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx r.Tx) error) error {
	f.TxCalls++
	if f.TxErr != nil {
		return f.TxErr
	}
	return f.MemoryStore.RunInTransaction(ctx, func(ctx context.Context, tx r.Tx) error {
		return fn(ctx, &flakyTx{Tx: tx, store: f})
	})
}

type flakyTx struct {
	r.Tx
	store *FlakyStore
}

func (t *flakyTx) FindDuplicateOrder(ctx context.Context, q idempotency.DuplicateQuery) (*domain.Order, error) {
	if t.store.HideDuplicatesOnce {
		t.store.HideDuplicatesOnce = false
		return nil, r.ErrOrderNotFound
	}
	return t.Tx.FindDuplicateOrder(ctx, q)
}

// BlockingStore holds the first transaction until Release is closed, honoring
// the transaction context while it waits.
type BlockingStore struct {
	*r.MemoryStore
	Entered chan struct{}
	Release chan struct{}
	once    sync.Once
}

func NewBlockingStore(store *r.MemoryStore) *BlockingStore {
	return &BlockingStore{
		MemoryStore: store,
		Entered:     make(chan struct{}),
		Release:     make(chan struct{}),
	}
}

func (b *BlockingStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx r.Tx) error) error {
	first := false
	b.once.Do(func() { first = true })
	if first {
		close(b.Entered)
		select {
		case <-b.Release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return b.MemoryStore.RunInTransaction(ctx, fn)
}
