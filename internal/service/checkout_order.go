package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fjod/storefront-checkout/internal/domain"
	r "github.com/fjod/storefront-checkout/internal/repository"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const EventOrderCreated = "order.created"

func (s *CheckoutServiceImpl) buildOrder(payload *domain.CheckoutPayload, lines []plannedLine, fingerprint string, ack domain.PaymentAck) *domain.Order {
	items := make([]domain.OrderItem, len(lines))
	var subtotal domain.Money
	for i, l := range lines {
		items[i] = l.item
		subtotal = subtotal.AddLine(l.item.UnitPrice, l.item.Quantity)
	}
	shipping := s.shippingAmount(payload)
	now := s.now()

	return &domain.Order{
		ID:                primitive.NewObjectID(),
		Status:            domain.OrderStatusPending,
		FulfillmentStatus: domain.OrderStatusPending,
		PaymentStatus:     ack.Status,
		Contact:           payload.Contact,
		ShippingAddress:   payload.ShippingAddress,
		ShippingMethod:    payload.ShippingOption,
		CustomerID:        payload.CustomerID,
		Notes:             payload.Notes,
		Items:             items,
		Subtotal:          subtotal.Float(),
		ShippingAmount:    shipping,
		Total:             subtotal.Add(shipping).Float(),
		Metadata: domain.OrderMetadata{
			Fingerprint:      fingerprint,
			PaymentReference: ack.Reference,
			SubmittedAt:      payload.Metadata.SubmittedAt,
			Origin:           payload.Metadata.Origin,
			Source:           payload.Metadata.Source,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func orderCreatedEvent(order *domain.Order, now time.Time) (*r.OutboxEvent, error) {
	payload := map[string]interface{}{
		"order_id":          order.ID.Hex(),
		"fingerprint":       order.Metadata.Fingerprint,
		"payment_reference": order.Metadata.PaymentReference,
		"email":             order.Contact.Email,
		"customer_id":       order.CustomerID,
		"items":             order.Items,
		"subtotal":          order.Subtotal,
		"shipping_amount":   order.ShippingAmount,
		"total":             order.Total,
		"shipping_method":   order.ShippingMethod,
		"created_at":        order.CreatedAt,
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order event payload: %w", err)
	}

	return &r.OutboxEvent{
		ID:          uuid.NewString(),
		AggregateID: order.ID.Hex(),
		EventType:   EventOrderCreated,
		Payload:     payloadJSON,
		CreatedAt:   now,
	}, nil
}
