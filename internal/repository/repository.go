package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/storefront-checkout/internal/domain"
	"github.com/fjod/storefront-checkout/internal/idempotency"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrEventNotFound = errors.New("outbox event not found")

	// ErrStockConflict means a conditional decrement matched nothing: a concurrent
	// checkout took the stock after it was validated.
	ErrStockConflict = errors.New("stock changed during commit")

	// ErrInvalidDecrement means a decrement asked for a non-positive quantity.
	ErrInvalidDecrement = errors.New("decrement quantity must be positive")

	// ErrDuplicateOrder means the order insert hit the unique fingerprint index.
	ErrDuplicateOrder = errors.New("order with this fingerprint already exists")
)

// Decrement targets one flat-stock count or one variant bucket.
type Decrement struct {
	ProductID primitive.ObjectID
	Quantity  int
	// Bucket is nil for flat-stock products. Color and Size are the stored values.
	Bucket *domain.Variant
}

type OutboxEvent struct {
	ID          string     `bson:"_id"`
	AggregateID string     `bson:"aggregateId"`
	EventType   string     `bson:"eventType"`
	Payload     []byte     `bson:"payload"`
	CreatedAt   time.Time  `bson:"createdAt"`
	ProcessedAt *time.Time `bson:"processedAt"`
}

// Tx is the scope of one checkout transaction. Every call made through a Tx is
// part of the same all-or-nothing unit; a Tx must not be used after the function
// it was handed to returns.
type Tx interface {
	// FindProducts returns the products found among ids, keyed by id.
	FindProducts(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*domain.Product, error)
	// FindDuplicateOrder returns ErrOrderNotFound when nothing matches q.
	FindDuplicateOrder(ctx context.Context, q idempotency.DuplicateQuery) (*domain.Order, error)
	// DecrementStock returns ErrStockConflict when the stock no longer covers d.Quantity.
	DecrementStock(ctx context.Context, d Decrement) error
	// InsertOrder assigns order.ID.
	InsertOrder(ctx context.Context, order *domain.Order) error
	InsertOutboxEvent(ctx context.Context, event *OutboxEvent) error
}

// Store is the document store backing checkout. It is the only writer of stock
// counts and orders.
type Store interface {
	// RunInTransaction runs fn in a single transaction. The transaction commits
	// when fn returns nil and rolls back otherwise.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	GetOrder(ctx context.Context, id primitive.ObjectID) (*domain.Order, error)
	Close(ctx context.Context) error
}

// OutboxStore is read by the outbox poller.
type OutboxStore interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id string) error
}
