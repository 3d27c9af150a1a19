package promo

import (
	"time"

	"github.com/gofrs/uuid"
)

type DiscountType string

const (
	TypePercentage DiscountType = "percentage"
	TypeFixed      DiscountType = "fixed"
)

// PromoCode is a discount rule. The checkout engine only reads these;
// management of codes belongs to the admin surface.
type PromoCode struct {
	ID             uuid.UUID    `json:"id"`
	Code           string       `json:"code"`
	DiscountType   DiscountType `json:"discount_type"`
	Value          float64      `json:"value"`
	MinOrderAmount *float64     `json:"min_order_amount,omitempty"`
	MaxDiscount    *float64     `json:"max_discount,omitempty"`
	StartsAt       time.Time    `json:"starts_at"`
	EndsAt         time.Time    `json:"ends_at"`
	Active         bool         `json:"active"`
}

// Resolution is the applicable slice of a promo code handed to the pricing
// calculator. A nil Resolution means "no discount".
type Resolution struct {
	Code        string       `json:"code"`
	Type        DiscountType `json:"type"`
	Value       float64      `json:"value"`
	MaxDiscount *float64     `json:"max_discount,omitempty"`
}

// ResolveFor returns the resolution of the code against a cart subtotal at a
// given instant, or nil when the code does not apply (inactive, outside its
// validity window, or subtotal below the minimum).
func (p *PromoCode) ResolveFor(subtotal float64, now time.Time) *Resolution {
	if !p.Active {
		return nil
	}
	if now.Before(p.StartsAt) || now.After(p.EndsAt) {
		return nil
	}
	if p.MinOrderAmount != nil && subtotal < *p.MinOrderAmount {
		return nil
	}

	return &Resolution{
		Code:        p.Code,
		Type:        p.DiscountType,
		Value:       p.Value,
		MaxDiscount: p.MaxDiscount,
	}
}
