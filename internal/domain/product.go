package domain

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Product is the inventory record owned by the catalog store.
// When Variants is non-empty, Stock is not authoritative for attributed items.
type Product struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title    string             `bson:"title" json:"title"`
	Price    float64            `bson:"price" json:"price"`
	Image    string             `bson:"image,omitempty" json:"image,omitempty"`
	Stock    *int               `bson:"stock,omitempty" json:"stock,omitempty"`
	Variants []Variant          `bson:"variants,omitempty" json:"variants,omitempty"`
}

// Variant is one color/size inventory bucket.
type Variant struct {
	Color string  `bson:"color" json:"color"`
	Size  string  `bson:"size" json:"size"`
	Stock int     `bson:"stock" json:"stock"`
	Price float64 `bson:"price,omitempty" json:"price,omitempty"`
}

// HasVariants reports whether the product tracks stock per bucket.
func (p *Product) HasVariants() bool {
	return len(p.Variants) > 0
}

// FlatStock returns the flat stock count, zero when unset.
func (p *Product) FlatStock() int {
	if p.Stock == nil {
		return 0
	}
	return *p.Stock
}
