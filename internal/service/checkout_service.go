package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/storefront-checkout/internal/cache"
	"github.com/fjod/storefront-checkout/internal/domain"
	"github.com/fjod/storefront-checkout/internal/idempotency"
	"github.com/fjod/storefront-checkout/internal/normalize"
	r "github.com/fjod/storefront-checkout/internal/repository"
	"github.com/fjod/storefront-checkout/pkg/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (s *CheckoutServiceImpl) Checkout(ctx context.Context, raw map[string]any, ack map[string]any) (*Result, error) {
	start := time.Now()
	payload, err := normalize.Payload(raw)
	if err != nil {
		s.metrics.ObserveCommit(OutcomeValidation, time.Since(start))
		logger.FromContext(ctx).Info("checkout rejected", "error", err)
		return nil, err
	}
	return s.Commit(ctx, payload, idempotency.PaymentAck(ack))
}

// Commit persists payload as one order, or reports the order an identical
// earlier checkout produced.
func (s *CheckoutServiceImpl) Commit(ctx context.Context, payload *domain.CheckoutPayload, ack domain.PaymentAck) (*Result, error) {
	start := time.Now()

	fingerprint, err := idempotency.Fingerprint(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint checkout: %w", err)
	}
	log := logger.FromContext(ctx).With("fingerprint", fingerprint)

	if res := s.replayed(ctx, fingerprint); res != nil {
		s.metrics.ObserveCommit(OutcomeDuplicate, time.Since(start))
		log.Info("duplicate checkout answered from replay cache", "order_id", res.OrderID)
		return res, nil
	}

	// Identical submissions racing inside this process share one transaction. It
	// outlives the first caller's cancellation so later callers still get the
	// order; commit bounds it with txTimeout.
	leader := false
	v, err, _ := s.inflight.Do(fingerprint+"|"+ack.Reference, func() (any, error) {
		leader = true
		return s.commitWithRetry(context.WithoutCancel(ctx), payload, fingerprint, ack)
	})
	if err != nil {
		outcome := outcomeOf(err)
		s.metrics.ObserveCommit(outcome, time.Since(start))
		if outcome == OutcomeTransient || outcome == OutcomeError {
			log.Error("checkout commit failed", "outcome", outcome, "error", err)
		} else {
			log.Info("checkout commit rejected", "outcome", outcome, "error", err)
		}
		return nil, err
	}

	res := *v.(*Result)
	if !leader {
		res.Duplicate = true
	}

	if res.Duplicate {
		s.metrics.ObserveCommit(OutcomeDuplicate, time.Since(start))
		log.Info("duplicate checkout detected", "order_id", res.OrderID)
	} else {
		s.metrics.ObserveCommit(OutcomeCreated, time.Since(start))
		log.Info("order committed", "order_id", res.OrderID, "total", res.Order.Total)
	}
	if leader {
		s.remember(ctx, fingerprint, res.OrderID)
	}
	return &res, nil
}

func (s *CheckoutServiceImpl) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, r.ErrOrderNotFound
	}
	return s.store.GetOrder(ctx, oid)
}

func (s *CheckoutServiceImpl) commitWithRetry(ctx context.Context, payload *domain.CheckoutPayload, fingerprint string, ack domain.PaymentAck) (*Result, error) {
	res, err := s.commit(ctx, payload, fingerprint, ack)
	if errors.Is(err, r.ErrDuplicateOrder) {
		// Another commit of the same checkout won the fingerprint index; a fresh
		// transaction finds its order through the duplicate check.
		logger.FromContext(ctx).Debug("fingerprint index conflict, retrying", "fingerprint", fingerprint)
		res, err = s.commit(ctx, payload, fingerprint, ack)
	}
	if errors.Is(err, r.ErrDuplicateOrder) {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransientStorage, err)
	}
	return res, err
}

// replayed returns a duplicate result when the replay cache knows the order.
func (s *CheckoutServiceImpl) replayed(ctx context.Context, fingerprint string) *Result {
	orderID, err := s.cache.Get(ctx, fingerprint)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.FromContext(ctx).Warn("replay cache lookup failed", "error", err)
		}
		return nil
	}
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		logger.FromContext(ctx).Warn("replay cache entry has no order", "order_id", orderID, "error", err)
		return nil
	}
	return &Result{OrderID: orderID, Duplicate: true, Order: order}
}

func (s *CheckoutServiceImpl) remember(ctx context.Context, fingerprint, orderID string) {
	if err := s.cache.Set(ctx, fingerprint, orderID); err != nil {
		logger.FromContext(ctx).Warn("failed to cache checkout fingerprint", "order_id", orderID, "error", err)
	}
}
