package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// OrderItem snapshots a purchased line; it is never re-read from the catalog.
type OrderItem struct {
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	Title     string             `bson:"title" json:"title"`
	Image     string             `bson:"image,omitempty" json:"image,omitempty"`
	Color     string             `bson:"color,omitempty" json:"color,omitempty"`
	Size      string             `bson:"size,omitempty" json:"size,omitempty"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	UnitPrice float64            `bson:"unitPrice" json:"unitPrice"`
}

// OrderMetadata is persisted under "metadata". PaypalOrderID is only read, for
// orders written before PaymentReference existed.
type OrderMetadata struct {
	Fingerprint      string `bson:"fingerprint" json:"fingerprint"`
	PaymentReference string `bson:"paymentReference,omitempty" json:"paymentReference,omitempty"`
	PaypalOrderID    string `bson:"paypalOrderId,omitempty" json:"paypalOrderId,omitempty"`
	SubmittedAt      string `bson:"submittedAt,omitempty" json:"submittedAt,omitempty"`
	Origin           string `bson:"origin,omitempty" json:"origin,omitempty"`
	Source           string `bson:"source,omitempty" json:"source,omitempty"`
}

type Order struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Status            OrderStatus        `bson:"status" json:"status"`
	FulfillmentStatus OrderStatus        `bson:"fulfillmentStatus" json:"fulfillmentStatus"`
	PaymentStatus     string             `bson:"paymentStatus,omitempty" json:"paymentStatus,omitempty"`
	Contact           Contact            `bson:"contact" json:"contact"`
	ShippingAddress   Address            `bson:"shippingAddress" json:"shippingAddress"`
	ShippingMethod    ShippingOption     `bson:"shippingMethod" json:"shippingMethod"`
	CustomerID        string             `bson:"customerId,omitempty" json:"customerId,omitempty"`
	Notes             string             `bson:"notes,omitempty" json:"notes,omitempty"`
	Items             []OrderItem        `bson:"items" json:"items"`
	Subtotal          float64            `bson:"subtotal" json:"subtotal"`
	ShippingAmount    float64            `bson:"shippingAmount" json:"shippingAmount"`
	Total             float64            `bson:"total" json:"total"`
	Metadata          OrderMetadata      `bson:"metadata" json:"metadata"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
}
