package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/storefront-checkout/internal/service"
)

// Keys under which the storefront may send the payment provider acknowledgement.
var paymentAckKeys = []string{"payment", "capture", "paymentAck"}

type CheckoutHandler struct {
	checkout    service.CheckoutService
	timeout     time.Duration
	maxBodySize int64
}

func NewCheckoutHandler(checkout service.CheckoutService, timeout time.Duration, maxBodySize int64) *CheckoutHandler {
	return &CheckoutHandler{
		checkout:    checkout,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

type CheckoutResponseDTO struct {
	OrderID   string            `json:"order_id"`
	Status    string            `json:"status"`
	Duplicate bool              `json:"duplicate"`
	Order     *OrderResponseDTO `json:"order,omitempty"`
}

// POST /api/v1/checkout
//
// The body is the checkout submission itself, or an object carrying it under
// "order". A payment acknowledgement may ride along under "payment".
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if h.maxBodySize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	}

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	submission, ack := splitBody(body)
	res, err := h.checkout.Checkout(ctx, submission, ack)
	if err != nil {
		handleCheckoutError(w, err)
		return
	}

	status, code := http.StatusCreated, "created"
	if res.Duplicate {
		status, code = http.StatusOK, "duplicate"
	}
	resp := CheckoutResponseDTO{
		OrderID:   res.OrderID,
		Status:    code,
		Duplicate: res.Duplicate,
	}
	if res.Order != nil {
		dto := convertOrder(res.Order)
		resp.Order = &dto
	}
	respondJSON(w, status, resp)
}

func splitBody(body map[string]any) (submission map[string]any, ack map[string]any) {
	submission = body
	if nested, ok := body["order"].(map[string]any); ok {
		submission = nested
	}
	for _, k := range paymentAckKeys {
		if a, ok := body[k].(map[string]any); ok {
			return submission, a
		}
	}
	return submission, nil
}
