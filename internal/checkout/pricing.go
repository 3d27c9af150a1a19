package checkout

import (
	"fmt"
	"math"

	"github.com/gofrs/uuid"
	"github.com/wanderhub/checkout-service/internal/catalog"
	"github.com/wanderhub/checkout-service/internal/promo"
)

const (
	// TaxRate is the flat tax applied to every cart subtotal.
	TaxRate = 0.10
	// FreeShippingThreshold is the subtotal above which shipping is free.
	FreeShippingThreshold = 100.0
	// FlatShippingFee applies to subtotals at or below the threshold.
	FlatShippingFee = 10.0
)

// Totals is the monetary breakdown of a cart. Every component is
// non-negative and Total = max(0, Subtotal+Tax+Shipping-Discount).
type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Shipping float64 `json:"shipping"`
	Discount float64 `json:"discount"`
	Total    float64 `json:"total"`
}

// ComputeTotals prices a set of validated items under an optional promo
// resolution. It is a pure function: all numeric edge cases resolve to
// zero or clamped values, never an error.
func ComputeTotals(items []ValidatedItem, res *promo.Resolution) Totals {
	subtotal := 0.0
	for _, it := range items {
		subtotal += it.UnitPrice * float64(it.Quantity)
	}
	subtotal = roundCents(subtotal)

	tax := roundCents(subtotal * TaxRate)

	shipping := FlatShippingFee
	if subtotal > FreeShippingThreshold {
		shipping = 0
	}

	discount := 0.0
	if res != nil {
		switch res.Type {
		case promo.TypePercentage:
			discount = subtotal * res.Value / 100
			if res.MaxDiscount != nil && discount > *res.MaxDiscount {
				discount = *res.MaxDiscount
			}
		case promo.TypeFixed:
			discount = res.Value
			if discount > subtotal+tax+shipping {
				discount = subtotal + tax + shipping
			}
		}
		if discount < 0 {
			discount = 0
		}
		discount = roundCents(discount)
	}

	total := roundCents(subtotal + tax + shipping - discount)
	if total < 0 {
		total = 0
	}

	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Discount: discount,
		Total:    total,
	}
}

// PriceItems checks each line item against a product snapshot and prices the
// ones that pass. Failures are collected as user-facing messages, not
// returned as an error: a cart with failures is still priced on its valid
// items so the UI can show both.
func PriceItems(items []LineItem, products map[uuid.UUID]*catalog.Product) ([]ValidatedItem, []string) {
	validated := make([]ValidatedItem, 0, len(items))
	errs := make([]string, 0)

	// A product's stock must cover the cart's combined quantity: duplicate
	// lines (same product, different variants) draw from one pool.
	requested := make(map[uuid.UUID]int, len(items))
	for _, it := range items {
		if it.Quantity >= 1 {
			requested[it.ProductID] += it.Quantity
		}
	}

	stockReported := make(map[uuid.UUID]bool)

	for _, it := range items {
		if it.Quantity < 1 {
			errs = append(errs, fmt.Sprintf("quantity for product %s must be at least 1", it.ProductID))
			continue
		}

		p, ok := products[it.ProductID]
		if !ok {
			errs = append(errs, fmt.Sprintf("product %s not found", it.ProductID))
			continue
		}
		if !p.Purchasable() {
			errs = append(errs, fmt.Sprintf("product %q is not available for purchase", p.Name))
			continue
		}
		if requested[it.ProductID] > p.Stock {
			if !stockReported[it.ProductID] {
				stockReported[it.ProductID] = true
				errs = append(errs, fmt.Sprintf("insufficient stock for %q: requested %d, only %d available", p.Name, requested[it.ProductID], p.Stock))
			}
			continue
		}

		unitPrice := p.UnitPrice()
		validated = append(validated, ValidatedItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Variant:   it.Variant,
			UnitPrice: unitPrice,
			LineTotal: roundCents(unitPrice * float64(it.Quantity)),
			Product:   p,
		})
	}

	return validated, errs
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
