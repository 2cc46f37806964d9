package domain

import (
	"fmt"
	"math"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ShippingOption string

const (
	ShippingFree    ShippingOption = "FREE"
	ShippingExpress ShippingOption = "EXPRESS"
)

// ParseShippingOption matches s case-insensitively; anything unknown is FREE.
func ParseShippingOption(s string) ShippingOption {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(ShippingExpress):
		return ShippingExpress
	default:
		return ShippingFree
	}
}

func (s ShippingOption) String() string {
	return string(s)
}

// Bounds on a single cart line. Submissions outside them are rejected.
const (
	MaxLineQuantity = 10_000
	MaxUnitPrice    = 1_000_000.0
)

// CartItem is a normalized cart line. No two items of a payload share the same
// (ProductID, Color, Size).
type CartItem struct {
	ProductID primitive.ObjectID
	Quantity  int
	UnitPrice float64
	Color     string
	Size      string
	Title     string
	Image     string
}

// CheckBounds reports a ValidationError when the line's quantity or price hint
// is outside the accepted range.
func (c CartItem) CheckBounds() error {
	if c.Quantity <= 0 || c.Quantity > MaxLineQuantity {
		return &ValidationError{Field: "items", Reason: fmt.Sprintf("quantity %d out of range 1..%d", c.Quantity, MaxLineQuantity)}
	}
	if math.IsNaN(c.UnitPrice) || c.UnitPrice < 0 || c.UnitPrice > MaxUnitPrice {
		return &ValidationError{Field: "items", Reason: fmt.Sprintf("unit price %v out of range", c.UnitPrice)}
	}
	return nil
}

func (c CartItem) Selection() Selection {
	return Selection{Color: c.Color, Size: c.Size}
}

type Contact struct {
	Email string `bson:"email" json:"email" validate:"required,email"`
	Phone string `bson:"phone,omitempty" json:"phone,omitempty"`
}

type Address struct {
	FirstName  string `bson:"firstName" json:"firstName" validate:"required"`
	LastName   string `bson:"lastName" json:"lastName" validate:"required"`
	Street     string `bson:"street" json:"street" validate:"required"`
	City       string `bson:"city" json:"city" validate:"required"`
	PostalCode string `bson:"postalCode" json:"postalCode" validate:"required"`
	Country    string `bson:"country" json:"country" validate:"required"`
	Phone      string `bson:"phone,omitempty" json:"phone,omitempty"`
}

// SubmissionMetadata is the metadata bag carried by a checkout submission.
// SubmittedAt keeps the raw client value; empty means absent.
type SubmissionMetadata struct {
	SubmittedAt string
	Origin      string
	Source      string
}

// CheckoutPayload is a fully validated checkout submission.
type CheckoutPayload struct {
	Items           []CartItem
	ShippingOption  ShippingOption
	ShippingAmount  *float64
	Contact         Contact
	ShippingAddress Address
	CustomerID      string
	Notes           string
	Metadata        SubmissionMetadata
}

// PaymentAck is what the engine keeps from a payment provider acknowledgement.
type PaymentAck struct {
	Reference string
	Status    string
}
