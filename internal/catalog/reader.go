package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrProductNotFound = errors.New("product not found")

// Reader supplies product data to the cart validator. The order repository
// reads products through its own locked queries instead, so that validation
// and reservation happen in one transaction.
type Reader interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
}

type postgresReader struct {
	db *pgxpool.Pool
}

func NewReader(db *pgxpool.Pool) Reader {
	return &postgresReader{db: db}
}

func (r *postgresReader) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	query := `
		SELECT id, name, price, discount_price, stock, status
		FROM products
		WHERE id = $1
	`

	var p Product
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.Price,
		&p.DiscountPrice,
		&p.Stock,
		&p.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("catalog: failed to select product %s: %w", id, err)
	}

	return &p, nil
}
