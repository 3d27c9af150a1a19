package checkout_test

import (
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/wanderhub/checkout-service/internal/catalog"
	"github.com/wanderhub/checkout-service/internal/checkout"
	"github.com/wanderhub/checkout-service/internal/promo"
)

func floatPtr(v float64) *float64 { return &v }

func item(unitPrice float64, quantity int) checkout.ValidatedItem {
	id, _ := uuid.NewV4()
	return checkout.ValidatedItem{
		ProductID: id,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		LineTotal: unitPrice * float64(quantity),
	}
}

func TestComputeTotals(t *testing.T) {
	tests := []struct {
		name     string
		items    []checkout.ValidatedItem
		res      *promo.Resolution
		expected checkout.Totals
	}{
		{
			name:  "no_promo_free_shipping",
			items: []checkout.ValidatedItem{item(50, 3)},
			expected: checkout.Totals{
				Subtotal: 150, Tax: 15, Shipping: 0, Discount: 0, Total: 165,
			},
		},
		{
			name:  "flat_shipping_below_threshold",
			items: []checkout.ValidatedItem{item(25, 2)},
			expected: checkout.Totals{
				Subtotal: 50, Tax: 5, Shipping: 10, Discount: 0, Total: 65,
			},
		},
		{
			name:  "shipping_boundary_at_exactly_100",
			items: []checkout.ValidatedItem{item(50, 2)},
			expected: checkout.Totals{
				Subtotal: 100, Tax: 10, Shipping: 10, Discount: 0, Total: 120,
			},
		},
		{
			name:  "shipping_free_just_above_threshold",
			items: []checkout.ValidatedItem{item(100.01, 1)},
			expected: checkout.Totals{
				Subtotal: 100.01, Tax: 10, Shipping: 0, Discount: 0, Total: 110.01,
			},
		},
		{
			name:  "percentage_promo_capped_at_max_discount",
			items: []checkout.ValidatedItem{item(20, 2)},
			res: &promo.Resolution{
				Code:        "SAVE10",
				Type:        promo.TypePercentage,
				Value:       10,
				MaxDiscount: floatPtr(3),
			},
			expected: checkout.Totals{
				Subtotal: 40, Tax: 4, Shipping: 10, Discount: 3, Total: 51,
			},
		},
		{
			name:  "percentage_promo_uncapped",
			items: []checkout.ValidatedItem{item(100, 2)},
			res: &promo.Resolution{
				Code:  "SAVE10",
				Type:  promo.TypePercentage,
				Value: 10,
			},
			expected: checkout.Totals{
				Subtotal: 200, Tax: 20, Shipping: 0, Discount: 20, Total: 200,
			},
		},
		{
			name:  "fixed_promo_clamped_total_floors_at_zero",
			items: []checkout.ValidatedItem{item(10, 1)},
			res: &promo.Resolution{
				Code:  "BIGONE",
				Type:  promo.TypeFixed,
				Value: 100,
			},
			expected: checkout.Totals{
				Subtotal: 10, Tax: 1, Shipping: 10, Discount: 21, Total: 0,
			},
		},
		{
			name:  "negative_promo_value_clamps_to_zero_discount",
			items: []checkout.ValidatedItem{item(30, 1)},
			res: &promo.Resolution{
				Code:  "WEIRD",
				Type:  promo.TypeFixed,
				Value: -5,
			},
			expected: checkout.Totals{
				Subtotal: 30, Tax: 3, Shipping: 10, Discount: 0, Total: 43,
			},
		},
		{
			name:  "empty_items",
			items: nil,
			expected: checkout.Totals{
				Subtotal: 0, Tax: 0, Shipping: 10, Discount: 0, Total: 10,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := checkout.ComputeTotals(tt.items, tt.res)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestComputeTotals_SubtotalIsSumOfLines(t *testing.T) {
	items := []checkout.ValidatedItem{item(12.5, 2), item(7.25, 4), item(0.99, 3)}

	got := checkout.ComputeTotals(items, nil)

	expected := 12.5*2 + 7.25*4 + 0.99*3
	assert.InDelta(t, expected, got.Subtotal, 0.001)
	assert.InDelta(t, got.Subtotal+got.Tax+got.Shipping-got.Discount, got.Total, 0.001)
}

func TestPriceItems(t *testing.T) {
	publishedID, _ := uuid.NewV4()
	draftID, _ := uuid.NewV4()
	missingID, _ := uuid.NewV4()

	products := map[uuid.UUID]*catalog.Product{
		publishedID: {
			ID:     publishedID,
			Name:   "City Walking Tour",
			Price:  50,
			Stock:  3,
			Status: catalog.StatusPublished,
		},
		draftID: {
			ID:     draftID,
			Name:   "Unreleased Tour",
			Price:  80,
			Stock:  10,
			Status: catalog.StatusDraft,
		},
	}

	t.Run("valid_item_priced", func(t *testing.T) {
		validated, errs := checkout.PriceItems([]checkout.LineItem{
			{ProductID: publishedID, Quantity: 2},
		}, products)

		assert.Empty(t, errs)
		if assert.Len(t, validated, 1) {
			assert.Equal(t, 50.0, validated[0].UnitPrice)
			assert.Equal(t, 100.0, validated[0].LineTotal)
		}
	})

	t.Run("missing_product", func(t *testing.T) {
		_, errs := checkout.PriceItems([]checkout.LineItem{
			{ProductID: missingID, Quantity: 1},
		}, products)

		if assert.Len(t, errs, 1) {
			assert.Contains(t, errs[0], "not found")
		}
	})

	t.Run("unpublished_product", func(t *testing.T) {
		_, errs := checkout.PriceItems([]checkout.LineItem{
			{ProductID: draftID, Quantity: 1},
		}, products)

		if assert.Len(t, errs, 1) {
			assert.Contains(t, errs[0], "Unreleased Tour")
			assert.Contains(t, errs[0], "not available")
		}
	})

	t.Run("insufficient_stock_message_names_product_and_quantities", func(t *testing.T) {
		_, errs := checkout.PriceItems([]checkout.LineItem{
			{ProductID: publishedID, Quantity: 5},
		}, products)

		if assert.Len(t, errs, 1) {
			assert.Contains(t, errs[0], "City Walking Tour")
			assert.Contains(t, errs[0], "requested 5")
			assert.Contains(t, errs[0], "only 3 available")
		}
	})

	t.Run("duplicate_lines_share_one_stock_pool", func(t *testing.T) {
		validated, errs := checkout.PriceItems([]checkout.LineItem{
			{ProductID: publishedID, Quantity: 2, Variant: &checkout.Variant{Size: "M"}},
			{ProductID: publishedID, Quantity: 2, Variant: &checkout.Variant{Size: "L"}},
		}, products)

		assert.Empty(t, validated)
		if assert.Len(t, errs, 1) {
			assert.Contains(t, errs[0], "City Walking Tour")
			assert.Contains(t, errs[0], "requested 4")
			assert.Contains(t, errs[0], "only 3 available")
		}
	})

	t.Run("duplicate_lines_within_combined_stock", func(t *testing.T) {
		validated, errs := checkout.PriceItems([]checkout.LineItem{
			{ProductID: publishedID, Quantity: 2, Variant: &checkout.Variant{Size: "M"}},
			{ProductID: publishedID, Quantity: 1, Variant: &checkout.Variant{Size: "L"}},
		}, products)

		assert.Empty(t, errs)
		assert.Len(t, validated, 2)
	})

	t.Run("zero_quantity", func(t *testing.T) {
		_, errs := checkout.PriceItems([]checkout.LineItem{
			{ProductID: publishedID, Quantity: 0},
		}, products)

		if assert.Len(t, errs, 1) {
			assert.Contains(t, errs[0], "at least 1")
		}
	})

	t.Run("failed_item_does_not_block_pricing_of_valid_ones", func(t *testing.T) {
		validated, errs := checkout.PriceItems([]checkout.LineItem{
			{ProductID: publishedID, Quantity: 1},
			{ProductID: missingID, Quantity: 1},
		}, products)

		assert.Len(t, errs, 1)
		assert.Len(t, validated, 1)
	})
}

func TestPriceItems_DiscountPrice(t *testing.T) {
	lowerID, _ := uuid.NewV4()
	higherID, _ := uuid.NewV4()

	products := map[uuid.UUID]*catalog.Product{
		lowerID: {
			ID: lowerID, Name: "Discounted", Price: 50, DiscountPrice: floatPtr(40),
			Stock: 5, Status: catalog.StatusPublished,
		},
		higherID: {
			ID: higherID, Name: "Mispriced", Price: 50, DiscountPrice: floatPtr(60),
			Stock: 5, Status: catalog.StatusPublished,
		},
	}

	validated, errs := checkout.PriceItems([]checkout.LineItem{
		{ProductID: lowerID, Quantity: 1},
		{ProductID: higherID, Quantity: 1},
	}, products)

	assert.Empty(t, errs)
	if assert.Len(t, validated, 2) {
		assert.Equal(t, 40.0, validated[0].UnitPrice, "discount price wins when lower")
		assert.Equal(t, 50.0, validated[1].UnitPrice, "list price wins when discount is higher")
	}
}
