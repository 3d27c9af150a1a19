package checkout

import (
	"github.com/gofrs/uuid"
	"github.com/wanderhub/checkout-service/internal/catalog"
)

// Variant narrows a product to a concrete option. All fields are optional.
type Variant struct {
	Color    string `json:"color,omitempty"`
	Size     string `json:"size,omitempty"`
	Material string `json:"material,omitempty"`
}

// LineItem is a single product+quantity request inside a cart. Carts are
// never persisted; line items exist only during validation and creation.
type LineItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Variant   *Variant  `json:"variant,omitempty"`
}

// ValidatedItem is a line item enriched with its resolved unit price and a
// snapshot of the product record at validation time. It is consumed
// immediately by order creation and never stored on its own.
type ValidatedItem struct {
	ProductID uuid.UUID        `json:"product_id"`
	Quantity  int              `json:"quantity"`
	Variant   *Variant         `json:"variant,omitempty"`
	UnitPrice float64          `json:"unit_price"`
	LineTotal float64          `json:"line_total"`
	Product   *catalog.Product `json:"product"`
}
