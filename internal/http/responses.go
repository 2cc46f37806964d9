package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/fjod/storefront-checkout/internal/domain"
	r "github.com/fjod/storefront-checkout/internal/repository"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleCheckoutError maps checkout failure categories to HTTP status codes.
func handleCheckoutError(w http.ResponseWriter, err error) {
	var httpStatus int
	var code string
	message := err.Error()
	details := ""

	var lineErr *domain.LineError
	if errors.As(err, &lineErr) {
		details = fmt.Sprintf("product_id=%s requested=%d available=%d",
			lineErr.ProductID, lineErr.Requested, lineErr.Available)
	}

	switch {
	case errors.Is(err, domain.ErrValidation):
		httpStatus = http.StatusBadRequest
		code = "validation_failed"
	case errors.Is(err, domain.ErrProductNotFound):
		httpStatus = http.StatusNotFound
		code = "product_not_found"
	case errors.Is(err, r.ErrOrderNotFound):
		httpStatus = http.StatusNotFound
		code = "not_found"
	case errors.Is(err, domain.ErrVariantUnresolved):
		httpStatus = http.StatusConflict
		code = "variant_unresolved"
	case errors.Is(err, domain.ErrInsufficientStock):
		httpStatus = http.StatusConflict
		code = "insufficient_stock"
	case errors.Is(err, domain.ErrTransientStorage):
		httpStatus = http.StatusServiceUnavailable
		code = "try_again"
		message = "the order could not be placed right now, please try again"
		details = ""
	default:
		httpStatus = http.StatusInternalServerError
		code = "internal_error"
		message = "internal server error"
		details = ""
	}

	respondJSON(w, httpStatus, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	})
}
