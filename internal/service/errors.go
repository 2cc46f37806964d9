package service

import (
	"errors"

	"github.com/fjod/storefront-checkout/internal/domain"
)

// Commit outcomes as reported to metrics and logs.
const (
	OutcomeCreated           = "created"
	OutcomeDuplicate         = "duplicate"
	OutcomeValidation        = "validation"
	OutcomeNotFound          = "not_found"
	OutcomeVariantUnresolved = "variant_unresolved"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomeTransient         = "transient"
	OutcomeError             = "error"
)

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeCreated
	case errors.Is(err, domain.ErrValidation):
		return OutcomeValidation
	case errors.Is(err, domain.ErrProductNotFound):
		return OutcomeNotFound
	case errors.Is(err, domain.ErrVariantUnresolved):
		return OutcomeVariantUnresolved
	case errors.Is(err, domain.ErrInsufficientStock):
		return OutcomeInsufficientStock
	case errors.Is(err, domain.ErrTransientStorage):
		return OutcomeTransient
	default:
		return OutcomeError
	}
}
