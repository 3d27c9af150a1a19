package catalog

import (
	"github.com/gofrs/uuid"
)

type ProductStatus string

const (
	StatusPublished ProductStatus = "published"
	StatusDraft     ProductStatus = "draft"
	StatusArchived  ProductStatus = "archived"
)

// Product is the catalog view the checkout engine works with. Stock is the
// only field the engine mutates, and only through the order repository.
type Product struct {
	ID            uuid.UUID     `json:"id"`
	Name          string        `json:"name"`
	Price         float64       `json:"price"`
	DiscountPrice *float64      `json:"discount_price,omitempty"`
	Stock         int           `json:"stock"`
	Status        ProductStatus `json:"status"`
}

// Purchasable reports whether the product can appear in a cart at all.
func (p *Product) Purchasable() bool {
	return p.Status == StatusPublished
}

// UnitPrice returns the discount price when one is set and lower than the
// list price, otherwise the list price.
func (p *Product) UnitPrice() float64 {
	if p.DiscountPrice != nil && *p.DiscountPrice < p.Price {
		return *p.DiscountPrice
	}
	return p.Price
}
