package promo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Resolver resolves a promo code against a subtotal. A (nil, nil) result
// means the code is unknown or not applicable; the cart stays valid and the
// discount is simply zero.
type Resolver interface {
	Resolve(ctx context.Context, code string, subtotal float64) (*Resolution, error)
}

type postgresResolver struct {
	db *pgxpool.Pool
}

func NewResolver(db *pgxpool.Pool) Resolver {
	return &postgresResolver{db: db}
}

func (r *postgresResolver) Resolve(ctx context.Context, code string, subtotal float64) (*Resolution, error) {
	query := `
		SELECT id, code, discount_type, value, min_order_amount, max_discount, starts_at, ends_at, active
		FROM promo_codes
		WHERE code = $1
	`

	var p PromoCode
	err := r.db.QueryRow(ctx, query, code).Scan(
		&p.ID,
		&p.Code,
		&p.DiscountType,
		&p.Value,
		&p.MinOrderAmount,
		&p.MaxDiscount,
		&p.StartsAt,
		&p.EndsAt,
		&p.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("promo: failed to select promo code %q: %w", code, err)
	}

	return p.ResolveFor(subtotal, time.Now().UTC()), nil
}
