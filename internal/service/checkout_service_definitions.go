package service

import (
	"context"
	"time"

	"github.com/fjod/storefront-checkout/internal/cache"
	"github.com/fjod/storefront-checkout/internal/domain"
	"github.com/fjod/storefront-checkout/internal/metrics"
	r "github.com/fjod/storefront-checkout/internal/repository"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultExpressFee = 10.00
	DefaultTxTimeout  = 10 * time.Second
)

type CheckoutService interface {
	// Checkout normalizes an untrusted submission and commits it. ack is the
	// payment provider acknowledgement and may be nil.
	Checkout(ctx context.Context, raw map[string]any, ack map[string]any) (*Result, error)
	Commit(ctx context.Context, payload *domain.CheckoutPayload, ack domain.PaymentAck) (*Result, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
}

// Result is the outcome of a successful commit. Duplicate is set when the
// checkout had already been committed and nothing new was written.
type Result struct {
	OrderID   string
	Duplicate bool
	Order     *domain.Order
}

type Options struct {
	ExpressFee float64
	TxTimeout  time.Duration
	Cache      cache.ReplayCache
	Metrics    *metrics.Metrics
}

type CheckoutServiceImpl struct {
	store      r.Store
	cache      cache.ReplayCache
	metrics    *metrics.Metrics
	inflight   singleflight.Group
	expressFee float64
	txTimeout  time.Duration
	now        func() time.Time
}

func NewCheckoutService(store r.Store, opts Options) *CheckoutServiceImpl {
	s := &CheckoutServiceImpl{
		store:      store,
		cache:      opts.Cache,
		metrics:    opts.Metrics,
		expressFee: opts.ExpressFee,
		txTimeout:  opts.TxTimeout,
		now:        func() time.Time { return time.Now().UTC() },
	}
	if s.cache == nil {
		s.cache = cache.Noop{}
	}
	if s.expressFee <= 0 {
		s.expressFee = DefaultExpressFee
	}
	if s.txTimeout <= 0 {
		s.txTimeout = DefaultTxTimeout
	}
	return s
}
