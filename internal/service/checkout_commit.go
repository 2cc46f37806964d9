package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/storefront-checkout/internal/domain"
	"github.com/fjod/storefront-checkout/internal/idempotency"
	r "github.com/fjod/storefront-checkout/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// stockKey identifies one stock counter: a product's flat count or one bucket.
type stockKey struct {
	productID primitive.ObjectID
	flat      bool
	color     string
	size      string
}

type plannedLine struct {
	item      domain.OrderItem
	decrement r.Decrement
	selection domain.Selection
}

// commit runs one checkout transaction. Nothing is written unless every step
// succeeds.
func (s *CheckoutServiceImpl) commit(ctx context.Context, payload *domain.CheckoutPayload, fingerprint string, ack domain.PaymentAck) (*Result, error) {
	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	var res *Result
	err := s.store.RunInTransaction(txCtx, func(ctx context.Context, tx r.Tx) error {
		// the store may run this more than once
		res = nil

		products, err := tx.FindProducts(ctx, productIDs(payload.Items))
		if err != nil {
			return fmt.Errorf("failed to load products: %w", err)
		}

		lines, err := planLines(payload.Items, products)
		if err != nil {
			return err
		}

		existing, err := tx.FindDuplicateOrder(ctx, idempotency.NewDuplicateQuery(payload, fingerprint, ack))
		if err == nil {
			res = &Result{OrderID: existing.ID.Hex(), Duplicate: true, Order: existing}
			return nil
		}
		if !errors.Is(err, r.ErrOrderNotFound) {
			return fmt.Errorf("failed to check for duplicate order: %w", err)
		}

		for _, l := range lines {
			if err := tx.DecrementStock(ctx, l.decrement); err != nil {
				if errors.Is(err, r.ErrStockConflict) {
					return &domain.LineError{
						ProductID: l.item.ProductID.Hex(),
						Title:     l.item.Title,
						Selection: l.selection,
						Requested: l.item.Quantity,
						Err:       fmt.Errorf("%w: %w", domain.ErrInsufficientStock, err),
					}
				}
				return fmt.Errorf("failed to decrement stock: %w", err)
			}
		}

		order := s.buildOrder(payload, lines, fingerprint, ack)
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}

		event, err := orderCreatedEvent(order, s.now())
		if err != nil {
			return err
		}
		if err := tx.InsertOutboxEvent(ctx, event); err != nil {
			return err
		}

		res = &Result{OrderID: order.ID.Hex(), Order: order}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// planLines validates every line against the catalog and fixes its price and
// stock target. Lines of the same order drawing on the same counter are
// checked against what earlier lines already took.
func planLines(items []domain.CartItem, products map[primitive.ObjectID]*domain.Product) ([]plannedLine, error) {
	consumed := make(map[stockKey]int, len(items))
	lines := make([]plannedLine, 0, len(items))

	for _, item := range items {
		if err := item.CheckBounds(); err != nil {
			return nil, err
		}
		p, ok := products[item.ProductID]
		if !ok {
			return nil, &domain.LineError{
				ProductID: item.ProductID.Hex(),
				Title:     item.Title,
				Selection: item.Selection(),
				Requested: item.Quantity,
				Err:       domain.ErrProductNotFound,
			}
		}

		title := firstNonEmpty(p.Title, item.Title)
		resolved, err := domain.ResolveVariant(p, item.Selection())
		if err != nil {
			return nil, &domain.LineError{
				ProductID: p.ID.Hex(),
				Title:     title,
				Selection: item.Selection(),
				Requested: item.Quantity,
				Err:       err,
			}
		}

		key := stockKey{productID: p.ID, flat: resolved.IsFlat()}
		if !resolved.IsFlat() {
			key.color, key.size = resolved.Bucket.Color, resolved.Bucket.Size
		}
		available := max(resolved.Available-consumed[key], 0)
		if item.Quantity > available {
			return nil, &domain.LineError{
				ProductID: p.ID.Hex(),
				Title:     title,
				Selection: item.Selection(),
				Requested: item.Quantity,
				Available: available,
				Err:       domain.ErrInsufficientStock,
			}
		}
		consumed[key] += item.Quantity

		line := plannedLine{
			item: domain.OrderItem{
				ProductID: p.ID,
				Title:     title,
				Image:     firstNonEmpty(p.Image, item.Image),
				Color:     item.Color,
				Size:      item.Size,
				Quantity:  item.Quantity,
				UnitPrice: unitPrice(item, p, resolved),
			},
			decrement: r.Decrement{ProductID: p.ID, Quantity: item.Quantity},
			selection: item.Selection(),
		}
		if !resolved.IsFlat() {
			bucket := *resolved.Bucket
			line.decrement.Bucket = &bucket
			line.item.Color, line.item.Size = bucket.Color, bucket.Size
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// unitPrice prefers the submitted price, then the bucket price, then the base price.
func unitPrice(item domain.CartItem, p *domain.Product, resolved domain.ResolvedVariant) float64 {
	switch {
	case item.UnitPrice > 0:
		return domain.Round2(item.UnitPrice)
	case resolved.Bucket != nil && resolved.Bucket.Price > 0:
		return domain.Round2(resolved.Bucket.Price)
	case p.Price > 0:
		return domain.Round2(p.Price)
	default:
		return 0
	}
}

func (s *CheckoutServiceImpl) shippingAmount(payload *domain.CheckoutPayload) float64 {
	if payload.ShippingAmount != nil && *payload.ShippingAmount >= 0 {
		return domain.Round2(*payload.ShippingAmount)
	}
	if payload.ShippingOption == domain.ShippingExpress {
		return domain.Round2(s.expressFee)
	}
	return 0
}

func productIDs(items []domain.CartItem) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{}, len(items))
	ids := make([]primitive.ObjectID, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
