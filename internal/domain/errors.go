package domain

import (
	"errors"
	"fmt"
)

// Failure categories returned by the checkout engine.
var (
	ErrValidation        = errors.New("invalid checkout submission")
	ErrProductNotFound   = errors.New("product not found")
	ErrVariantUnresolved = errors.New("selection not resolvable against inventory")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrTransientStorage  = errors.New("transient storage failure")
)

// ValidationError describes why a submission was rejected before any storage access.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%v: %s %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// LineError ties a catalog failure to the cart line that caused it.
type LineError struct {
	ProductID string
	Title     string
	Selection Selection
	Requested int
	Available int
	Err       error
}

func (e *LineError) Error() string {
	name := e.Title
	if name == "" {
		name = e.ProductID
	}
	switch {
	case errors.Is(e.Err, ErrInsufficientStock):
		return fmt.Sprintf("%v for %s: requested %d, available %d", e.Err, name, e.Requested, e.Available)
	case errors.Is(e.Err, ErrVariantUnresolved):
		return fmt.Sprintf("%v for %s (color=%q size=%q)", e.Err, name, e.Selection.Color, e.Selection.Size)
	default:
		return fmt.Sprintf("%v: %s", e.Err, name)
	}
}

func (e *LineError) Unwrap() error {
	return e.Err
}
