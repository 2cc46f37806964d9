package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/storefront-checkout/internal/domain"
	"github.com/fjod/storefront-checkout/internal/service"
	"github.com/go-chi/chi/v5"
)

type OrdersHandler struct {
	orders  service.CheckoutService
	timeout time.Duration
}

func NewOrdersHandler(orders service.CheckoutService, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		timeout: timeout,
	}
}

type OrderItemDTO struct {
	ProductID string  `json:"product_id"`
	Title     string  `json:"title"`
	Image     string  `json:"image,omitempty"`
	Color     string  `json:"color,omitempty"`
	Size      string  `json:"size,omitempty"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type OrderResponseDTO struct {
	ID               string         `json:"id"`
	Status           string         `json:"status"`
	PaymentStatus    string         `json:"payment_status,omitempty"`
	PaymentReference string         `json:"payment_reference,omitempty"`
	Email            string         `json:"email"`
	ShippingMethod   string         `json:"shipping_method"`
	Subtotal         float64        `json:"subtotal"`
	ShippingAmount   float64        `json:"shipping_amount"`
	Total            float64        `json:"total"`
	Items            []OrderItemDTO `json:"items"`
	CreatedAt        string         `json:"created_at"`
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		respondError(w, http.StatusBadRequest, "missing_order_id", "order_id is required")
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		handleCheckoutError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, convertOrder(order))
}

func convertOrder(o *domain.Order) OrderResponseDTO {
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemDTO{
			ProductID: item.ProductID.Hex(),
			Title:     item.Title,
			Image:     item.Image,
			Color:     item.Color,
			Size:      item.Size,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	return OrderResponseDTO{
		ID:               o.ID.Hex(),
		Status:           string(o.Status),
		PaymentStatus:    o.PaymentStatus,
		PaymentReference: o.Metadata.PaymentReference,
		Email:            o.Contact.Email,
		ShippingMethod:   o.ShippingMethod.String(),
		Subtotal:         o.Subtotal,
		ShippingAmount:   o.ShippingAmount,
		Total:            o.Total,
		Items:            items,
		CreatedAt:        o.CreatedAt.Format(time.RFC3339),
	}
}
