package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fjod/storefront-checkout/internal/domain"
	"github.com/fjod/storefront-checkout/internal/idempotency"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore implements Store and OutboxStore in memory. Transactions are
// serialized by a single lock and buffer their writes until commit, so a failing
// transaction leaves nothing behind.
type MemoryStore struct {
	mu       sync.Mutex
	products map[primitive.ObjectID]*domain.Product
	orders   []*domain.Order
	events   []*OutboxEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[primitive.ObjectID]*domain.Product),
	}
}

// SetProduct stores a copy of p, assigning an id when missing.
func (s *MemoryStore) SetProduct(p domain.Product) primitive.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	s.products[p.ID] = cloneProduct(&p)
	return p.ID
}

// Product returns a copy of the stored product.
func (s *MemoryStore) Product(id primitive.ObjectID) (*domain.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, false
	}
	return cloneProduct(p), true
}

// Orders returns copies of all committed orders in insertion order.
func (s *MemoryStore) Orders() []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Order, len(s.orders))
	for i, o := range s.orders {
		out[i] = *o
	}
	return out
}

func (s *MemoryStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return classifyError(err)
	}

	tx := &memoryTx{store: s, staged: make(map[primitive.ObjectID]*domain.Product)}
	if err := fn(ctx, tx); err != nil {
		return classifyError(err)
	}
	if err := ctx.Err(); err != nil {
		return classifyError(err)
	}

	for id, p := range tx.staged {
		s.products[id] = p
	}
	s.orders = append(s.orders, tx.orders...)
	s.events = append(s.events, tx.events...)
	return nil
}

func (s *MemoryStore) GetOrder(_ context.Context, id primitive.ObjectID) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.orders {
		if o.ID == id {
			order := *o
			return &order, nil
		}
	}
	return nil, ErrOrderNotFound
}

func (s *MemoryStore) GetUnprocessedEvents(_ context.Context, limit int) ([]*OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*OutboxEvent
	for _, e := range s.events {
		if e.ProcessedAt != nil {
			continue
		}
		event := *e
		out = append(out, &event)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkEventAsProcessed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.events {
		if e.ID == id && e.ProcessedAt == nil {
			now := time.Now().UTC()
			e.ProcessedAt = &now
			return nil
		}
	}
	return ErrEventNotFound
}

func (s *MemoryStore) Close(context.Context) error {
	return nil
}

// memoryTx runs with the store lock held.
type memoryTx struct {
	store  *MemoryStore
	staged map[primitive.ObjectID]*domain.Product
	orders []*domain.Order
	events []*OutboxEvent
}

func (t *memoryTx) current(id primitive.ObjectID) (*domain.Product, bool) {
	if p, ok := t.staged[id]; ok {
		return p, true
	}
	p, ok := t.store.products[id]
	return p, ok
}

func (t *memoryTx) FindProducts(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*domain.Product, error) {
	found := make(map[primitive.ObjectID]*domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := t.current(id); ok {
			found[id] = cloneProduct(p)
		}
	}
	return found, nil
}

func (t *memoryTx) FindDuplicateOrder(_ context.Context, q idempotency.DuplicateQuery) (*domain.Order, error) {
	for _, list := range [][]*domain.Order{t.store.orders, t.orders} {
		for _, o := range list {
			if q.Matches(o) {
				order := *o
				return &order, nil
			}
		}
	}
	return nil, ErrOrderNotFound
}

func (t *memoryTx) DecrementStock(_ context.Context, d Decrement) error {
	if d.Quantity <= 0 {
		return ErrInvalidDecrement
	}
	p, ok := t.current(d.ProductID)
	if !ok {
		return ErrStockConflict
	}
	p = cloneProduct(p)

	if d.Bucket == nil {
		if p.Stock == nil || *p.Stock < d.Quantity {
			return ErrStockConflict
		}
		left := *p.Stock - d.Quantity
		p.Stock = &left
		t.staged[p.ID] = p
		return nil
	}

	for i := range p.Variants {
		v := &p.Variants[i]
		if v.Color == d.Bucket.Color && v.Size == d.Bucket.Size && v.Stock >= d.Quantity {
			v.Stock -= d.Quantity
			t.staged[p.ID] = p
			return nil
		}
	}
	return ErrStockConflict
}

func (t *memoryTx) InsertOrder(_ context.Context, order *domain.Order) error {
	if order.Metadata.Fingerprint != "" {
		q := idempotency.DuplicateQuery{Fingerprint: order.Metadata.Fingerprint}
		if _, err := t.FindDuplicateOrder(context.Background(), q); err == nil {
			return ErrDuplicateOrder
		}
	}
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	stored := *order
	t.orders = append(t.orders, &stored)
	return nil
}

func (t *memoryTx) InsertOutboxEvent(_ context.Context, event *OutboxEvent) error {
	stored := *event
	t.events = append(t.events, &stored)
	return nil
}

func cloneProduct(p *domain.Product) *domain.Product {
	c := *p
	if p.Stock != nil {
		stock := *p.Stock
		c.Stock = &stock
	}
	if p.Variants != nil {
		c.Variants = append([]domain.Variant(nil), p.Variants...)
	}
	return &c
}
