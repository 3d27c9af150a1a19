package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wanderhub/checkout-service/internal/catalog"
	"github.com/wanderhub/checkout-service/internal/promo"
)

// CartValidation is the verdict on a cart. Valid is true iff Errors is
// empty; partial success is not a thing, but the priced valid items and
// their totals are always returned for display.
type CartValidation struct {
	Valid  bool            `json:"valid"`
	Items  []ValidatedItem `json:"items"`
	Totals Totals          `json:"totals"`
	Errors []string        `json:"errors"`
}

// Validator is the read-only cart check. It performs no writes; order
// creation re-runs the same pricing inside its transaction.
type Validator struct {
	catalog catalog.Reader
	promos  promo.Resolver
}

func NewValidator(catalogReader catalog.Reader, promoResolver promo.Resolver) *Validator {
	return &Validator{catalog: catalogReader, promos: promoResolver}
}

func (v *Validator) ValidateCart(ctx context.Context, items []LineItem, promoCode string) (*CartValidation, error) {
	if len(items) == 0 {
		return &CartValidation{
			Valid:  false,
			Items:  []ValidatedItem{},
			Errors: []string{"cart must contain at least one item"},
		}, nil
	}

	products := make(map[uuid.UUID]*catalog.Product, len(items))
	for _, it := range items {
		if _, ok := products[it.ProductID]; ok {
			continue
		}
		p, err := v.catalog.GetProduct(ctx, it.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrProductNotFound) {
				continue // PriceItems reports the missing product
			}
			log.Error().Err(err).Stringer("product_id", it.ProductID).Msg("validator: failed to fetch product")
			return nil, fmt.Errorf("checkout: failed to fetch product %s: %w", it.ProductID, err)
		}
		products[it.ProductID] = p
	}

	validated, verrs := PriceItems(items, products)

	subtotal := 0.0
	for _, it := range validated {
		subtotal += it.UnitPrice * float64(it.Quantity)
	}

	var res *promo.Resolution
	if promoCode != "" {
		var err error
		res, err = v.promos.Resolve(ctx, promoCode, subtotal)
		if err != nil {
			log.Error().Err(err).Str("promo_code", promoCode).Msg("validator: failed to resolve promo code")
			return nil, fmt.Errorf("checkout: failed to resolve promo code %q: %w", promoCode, err)
		}
	}

	return &CartValidation{
		Valid:  len(verrs) == 0,
		Items:  validated,
		Totals: ComputeTotals(validated, res),
		Errors: verrs,
	}, nil
}
