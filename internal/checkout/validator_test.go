package checkout_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/wanderhub/checkout-service/internal/catalog"
	"github.com/wanderhub/checkout-service/internal/checkout"
	"github.com/wanderhub/checkout-service/internal/promo"
)

type mockReader struct {
	getProductFunc func(ctx context.Context, id uuid.UUID) (*catalog.Product, error)
}

func (m *mockReader) GetProduct(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	return m.getProductFunc(ctx, id)
}

type mockResolver struct {
	resolveFunc func(ctx context.Context, code string, subtotal float64) (*promo.Resolution, error)
}

func (m *mockResolver) Resolve(ctx context.Context, code string, subtotal float64) (*promo.Resolution, error) {
	return m.resolveFunc(ctx, code, subtotal)
}

func TestValidator_ValidateCart(t *testing.T) {
	productID, _ := uuid.NewV4()
	missingID, _ := uuid.NewV4()

	inStock := &catalog.Product{
		ID:     productID,
		Name:   "Kayak Rental",
		Price:  50,
		Stock:  3,
		Status: catalog.StatusPublished,
	}

	readerFor := func(products map[uuid.UUID]*catalog.Product) *mockReader {
		return &mockReader{
			getProductFunc: func(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
				if p, ok := products[id]; ok {
					return p, nil
				}
				return nil, catalog.ErrProductNotFound
			},
		}
	}
	noPromo := &mockResolver{
		resolveFunc: func(ctx context.Context, code string, subtotal float64) (*promo.Resolution, error) {
			return nil, nil
		},
	}

	t.Run("valid_cart", func(t *testing.T) {
		v := checkout.NewValidator(readerFor(map[uuid.UUID]*catalog.Product{productID: inStock}), noPromo)

		verdict, err := v.ValidateCart(context.Background(), []checkout.LineItem{
			{ProductID: productID, Quantity: 3},
		}, "")

		assert.NoError(t, err)
		assert.True(t, verdict.Valid)
		assert.Empty(t, verdict.Errors)
		assert.Equal(t, 165.0, verdict.Totals.Total)
	})

	t.Run("missing_product_invalidates_cart_but_prices_valid_items", func(t *testing.T) {
		v := checkout.NewValidator(readerFor(map[uuid.UUID]*catalog.Product{productID: inStock}), noPromo)

		verdict, err := v.ValidateCart(context.Background(), []checkout.LineItem{
			{ProductID: productID, Quantity: 1},
			{ProductID: missingID, Quantity: 2},
		}, "")

		assert.NoError(t, err)
		assert.False(t, verdict.Valid)
		assert.Len(t, verdict.Errors, 1)
		assert.Len(t, verdict.Items, 1)
		assert.Equal(t, 50.0, verdict.Totals.Subtotal)
	})

	t.Run("promo_applied_to_subtotal", func(t *testing.T) {
		resolver := &mockResolver{
			resolveFunc: func(ctx context.Context, code string, subtotal float64) (*promo.Resolution, error) {
				assert.Equal(t, "SAVE10", code)
				assert.Equal(t, 150.0, subtotal)
				return &promo.Resolution{Code: code, Type: promo.TypePercentage, Value: 10}, nil
			},
		}
		v := checkout.NewValidator(readerFor(map[uuid.UUID]*catalog.Product{productID: inStock}), resolver)

		verdict, err := v.ValidateCart(context.Background(), []checkout.LineItem{
			{ProductID: productID, Quantity: 3},
		}, "SAVE10")

		assert.NoError(t, err)
		assert.True(t, verdict.Valid)
		assert.Equal(t, 15.0, verdict.Totals.Discount)
	})

	t.Run("empty_cart_is_invalid", func(t *testing.T) {
		v := checkout.NewValidator(readerFor(nil), noPromo)

		verdict, err := v.ValidateCart(context.Background(), nil, "")

		assert.NoError(t, err)
		assert.False(t, verdict.Valid)
		assert.NotEmpty(t, verdict.Errors)
	})

	t.Run("catalog_failure_is_an_error_not_a_verdict", func(t *testing.T) {
		reader := &mockReader{
			getProductFunc: func(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
				return nil, errors.New("connection refused")
			},
		}
		v := checkout.NewValidator(reader, noPromo)

		verdict, err := v.ValidateCart(context.Background(), []checkout.LineItem{
			{ProductID: productID, Quantity: 1},
		}, "")

		assert.Error(t, err)
		assert.Nil(t, verdict)
	})
}
