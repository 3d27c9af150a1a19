package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wanderhub/checkout-service/internal/catalog"
	"github.com/wanderhub/checkout-service/internal/checkout"
	"github.com/wanderhub/checkout-service/internal/promo"
)

// CreateOrderRequest carries everything order creation needs. Items are raw
// line items: validation and pricing happen inside the transaction, so a
// validation done moments earlier by a separate call is never trusted.
type CreateOrderRequest struct {
	UserID          uuid.UUID
	Items           []checkout.LineItem
	PromoCode       string
	ShippingAddress Address
	BillingAddress  Address
	Notes           string
}

// OrderPatch holds the owner-editable fields. Monetary totals and line
// items are immutable after creation; re-pricing means a new order.
type OrderPatch struct {
	ShippingAddress *Address
	BillingAddress  *Address
	Notes           *string
	TrackingNumber  *string
}

type Repository interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, patch OrderPatch) (*Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, newStatus OrderStatus, reason, trackingNumber string) (*Order, error)
	CancelOrder(ctx context.Context, id uuid.UUID, reason string, requestRefund bool) (*Order, error)
	ListOrders(ctx context.Context, f ListFilter) ([]Order, *Pagination, error)
	GetStats(ctx context.Context, f StatsFilter) (*Stats, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

// finish rolls back on error or panic and commits otherwise. Meant to be
// deferred with the caller's named error.
func finish(ctx context.Context, tx pgx.Tx, err *error) {
	if p := recover(); p != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			log.Error().Err(rbErr).Msg("repository: failed to rollback transaction after panic")
		}
		panic(p)
	}
	if *err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			log.Error().Err(rbErr).Msg("repository: failed to rollback transaction")
		}
		return
	}
	if commitErr := tx.Commit(ctx); commitErr != nil {
		*err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
	}
}

func (r *postgresRepository) CreateOrder(ctx context.Context, req CreateOrderRequest) (ord *Order, err error) {
	if len(req.Items) == 0 {
		return nil, &ValidationError{Reasons: []string{"cart must contain at least one item"}}
	}

	productIDs := make([]uuid.UUID, 0, len(req.Items))
	seen := make(map[uuid.UUID]bool, len(req.Items))
	for _, it := range req.Items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			productIDs = append(productIDs, it.ProductID)
		}
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer finish(ctx, tx, &err)

	// Lock the product rows for the whole transaction so a concurrent
	// checkout against the same products serializes behind us. Ordered by
	// id to keep lock acquisition deterministic.
	products, err := lockProducts(ctx, tx, productIDs)
	if err != nil {
		return nil, err
	}

	validated, verrs := checkout.PriceItems(req.Items, products)
	if len(verrs) > 0 {
		err = &ValidationError{Reasons: verrs}
		return nil, err
	}

	subtotal := 0.0
	for _, it := range validated {
		subtotal += it.UnitPrice * float64(it.Quantity)
	}

	var res *promo.Resolution
	if req.PromoCode != "" {
		res, err = resolvePromo(ctx, tx, req.PromoCode, subtotal)
		if err != nil {
			return nil, err
		}
	}

	totals := checkout.ComputeTotals(validated, res)

	orderID, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("repository: failed to generate order ID: %w", err)
	}
	now := time.Now().UTC()

	orderNumber, err := insertOrder(ctx, tx, orderID, req, totals, now)
	if err != nil {
		return nil, err
	}

	items := make([]OrderItem, 0, len(validated))
	for _, vi := range validated {
		itemID, genErr := uuid.NewV4()
		if genErr != nil {
			err = fmt.Errorf("repository: failed to generate order item ID: %w", genErr)
			return nil, err
		}

		item := OrderItem{
			ID:          itemID,
			OrderID:     orderID,
			ProductID:   vi.ProductID,
			ProductName: vi.Product.Name,
			Quantity:    vi.Quantity,
			UnitPrice:   vi.UnitPrice,
			LineTotal:   vi.LineTotal,
			Variant:     vi.Variant,
			CreatedAt:   now,
		}

		queryItem := `
			INSERT INTO order_items (id, order_id, product_id, product_name, quantity, unit_price, line_total, variant, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`
		_, err = tx.Exec(ctx, queryItem,
			item.ID, item.OrderID, item.ProductID, item.ProductName,
			item.Quantity, item.UnitPrice, item.LineTotal, item.Variant, item.CreatedAt,
		)
		if err != nil {
			err = fmt.Errorf("repository: failed to insert order item for order %s: %w", orderID, err)
			return nil, err
		}

		items = append(items, item)
	}

	// The stock guard is redundant with the row locks above, but it is the
	// invariant that must hold, so it stays in the statement.
	for _, vi := range validated {
		cmdTag, execErr := tx.Exec(ctx, `
			UPDATE products
			SET stock = stock - $1, updated_at = $2
			WHERE id = $3 AND stock >= $1
		`, vi.Quantity, now, vi.ProductID)
		if execErr != nil {
			err = fmt.Errorf("repository: failed to decrement stock for product %s: %w", vi.ProductID, execErr)
			return nil, err
		}
		if cmdTag.RowsAffected() == 0 {
			err = fmt.Errorf("%w: product %q", ErrStockConflict, vi.Product.Name)
			return nil, err
		}
	}

	user, err := fetchUserSummary(ctx, tx, req.UserID)
	if err != nil {
		return nil, err
	}

	ord = &Order{
		ID:              orderID,
		OrderNumber:     orderNumber,
		UserID:          req.UserID,
		User:            user,
		Status:          StatusPending,
		OrderItems:      items,
		Subtotal:        totals.Subtotal,
		Tax:             totals.Tax,
		Shipping:        totals.Shipping,
		Discount:        totals.Discount,
		Total:           totals.Total,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return ord, nil
}

func lockProducts(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) (map[uuid.UUID]*catalog.Product, error) {
	query := `
		SELECT id, name, price, discount_price, stock, status
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`

	rows, err := tx.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to lock product rows: %w", err)
	}
	defer rows.Close()

	products := make(map[uuid.UUID]*catalog.Product, len(ids))
	for rows.Next() {
		var p catalog.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.DiscountPrice, &p.Stock, &p.Status); err != nil {
			return nil, fmt.Errorf("repository: failed to scan product row: %w", err)
		}
		products[p.ID] = &p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating product rows: %w", err)
	}

	return products, nil
}

func resolvePromo(ctx context.Context, tx pgx.Tx, code string, subtotal float64) (*promo.Resolution, error) {
	query := `
		SELECT id, code, discount_type, value, min_order_amount, max_discount, starts_at, ends_at, active
		FROM promo_codes
		WHERE code = $1
	`

	var p promo.PromoCode
	err := tx.QueryRow(ctx, query, code).Scan(
		&p.ID, &p.Code, &p.DiscountType, &p.Value,
		&p.MinOrderAmount, &p.MaxDiscount, &p.StartsAt, &p.EndsAt, &p.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("repository: failed to select promo code %q: %w", code, err)
	}

	return p.ResolveFor(subtotal, time.Now().UTC()), nil
}

// insertOrder inserts the order row, regenerating the order number inside a
// savepoint for up to maxOrderNumberAttempts when it collides with an
// existing one. A collision is expected noise, not a fatal error.
func insertOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, req CreateOrderRequest, totals checkout.Totals, now time.Time) (string, error) {
	query := `
		INSERT INTO orders (id, order_number, user_id, status, subtotal, tax, shipping, discount, total,
			shipping_address, billing_address, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	for attempt := 0; attempt < maxOrderNumberAttempts; attempt++ {
		orderNumber := newOrderNumber(now)

		sp, err := tx.Begin(ctx)
		if err != nil {
			return "", fmt.Errorf("repository: failed to create savepoint: %w", err)
		}

		_, err = sp.Exec(ctx, query,
			orderID, orderNumber, req.UserID, StatusPending,
			totals.Subtotal, totals.Tax, totals.Shipping, totals.Discount, totals.Total,
			req.ShippingAddress, req.BillingAddress, req.Notes, now, now,
		)
		if err == nil {
			if err := sp.Commit(ctx); err != nil {
				return "", fmt.Errorf("repository: failed to release savepoint: %w", err)
			}
			return orderNumber, nil
		}

		if rbErr := sp.Rollback(ctx); rbErr != nil {
			return "", fmt.Errorf("repository: failed to rollback savepoint: %w", rbErr)
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == "orders_order_number_key" {
			log.Warn().Str("order_number", orderNumber).Int("attempt", attempt+1).Msg("repository: order number collision, regenerating")
			continue
		}
		return "", fmt.Errorf("repository: failed to insert order: %w", err)
	}

	return "", ErrOrderNumberExhausted
}

func fetchUserSummary(ctx context.Context, q querier, userID uuid.UUID) (*UserSummary, error) {
	var u UserSummary
	err := q.QueryRow(ctx, `SELECT id, name, email FROM users WHERE id = $1`, userID).
		Scan(&u.ID, &u.Name, &u.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("repository: failed to select user %s: %w", userID, err)
	}
	return &u, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *postgresRepository) GetOrderByID(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	queryOrder := `
		SELECT id, order_number, user_id, status, subtotal, tax, shipping, discount, total,
			shipping_address, billing_address, tracking_number, notes, cancellation_reason,
			created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	var ord Order
	err := r.db.QueryRow(ctx, queryOrder, orderID).Scan(
		&ord.ID, &ord.OrderNumber, &ord.UserID, &ord.Status,
		&ord.Subtotal, &ord.Tax, &ord.Shipping, &ord.Discount, &ord.Total,
		&ord.ShippingAddress, &ord.BillingAddress, &ord.TrackingNumber,
		&ord.Notes, &ord.CancellationReason, &ord.CreatedAt, &ord.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", orderID, err)
	}

	items, err := r.fetchOrderItems(ctx, []uuid.UUID{orderID})
	if err != nil {
		return nil, err
	}
	ord.OrderItems = items[orderID]
	if ord.OrderItems == nil {
		ord.OrderItems = []OrderItem{}
	}

	ord.User, err = fetchUserSummary(ctx, r.db, ord.UserID)
	if err != nil {
		return nil, err
	}

	return &ord, nil
}

func (r *postgresRepository) fetchOrderItems(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, product_name, quantity, unit_price, line_total, variant, created_at
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items: %w", err)
	}
	defer rows.Close()

	byOrder := make(map[uuid.UUID][]OrderItem, len(orderIDs))
	for rows.Next() {
		var item OrderItem
		err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.ProductName,
			&item.Quantity, &item.UnitPrice, &item.LineTotal, &item.Variant, &item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item: %w", err)
		}
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items: %w", err)
	}

	return byOrder, nil
}

func (r *postgresRepository) UpdateOrder(ctx context.Context, id uuid.UUID, patch OrderPatch) (*Order, error) {
	if err := r.updateOrderTx(ctx, id, patch); err != nil {
		return nil, err
	}
	return r.GetOrderByID(ctx, id)
}

func (r *postgresRepository) updateOrderTx(ctx context.Context, id uuid.UUID, patch OrderPatch) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer finish(ctx, tx, &err)

	status, _, err := lockOrder(ctx, tx, id)
	if err != nil {
		return err
	}
	if !status.Mutable() {
		err = &StateError{Op: "update order", Current: status}
		return err
	}

	now := time.Now().UTC()
	set := []string{"updated_at = $1"}
	args := []any{now}

	appendSet := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.ShippingAddress != nil {
		appendSet("shipping_address", *patch.ShippingAddress)
	}
	if patch.BillingAddress != nil {
		appendSet("billing_address", *patch.BillingAddress)
	}
	if patch.Notes != nil {
		appendSet("notes", *patch.Notes)
	}
	if patch.TrackingNumber != nil {
		appendSet("tracking_number", *patch.TrackingNumber)
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE orders SET %s WHERE id = $%d", strings.Join(set, ", "), len(args))

	if _, err = tx.Exec(ctx, query, args...); err != nil {
		err = fmt.Errorf("repository: failed to update order %s: %w", id, err)
		return err
	}

	return nil
}

func (r *postgresRepository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, newStatus OrderStatus, reason, trackingNumber string) (*Order, error) {
	if err := r.updateStatusTx(ctx, id, newStatus, reason, trackingNumber); err != nil {
		return nil, err
	}
	return r.GetOrderByID(ctx, id)
}

func (r *postgresRepository) updateStatusTx(ctx context.Context, id uuid.UUID, newStatus OrderStatus, reason, trackingNumber string) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer finish(ctx, tx, &err)

	current, notes, err := lockOrder(ctx, tx, id)
	if err != nil {
		return err
	}
	if !CanTransition(current, newStatus) {
		err = &StateError{Op: fmt.Sprintf("transition order to %s", newStatus), Current: current}
		return err
	}

	if reason != "" {
		notes = appendNote(notes, reason)
	}

	now := time.Now().UTC()
	query := `
		UPDATE orders
		SET status = $1, notes = $2,
			tracking_number = COALESCE(NULLIF($3, ''), tracking_number),
			updated_at = $4
		WHERE id = $5
	`
	if _, err = tx.Exec(ctx, query, newStatus, notes, trackingNumber, now, id); err != nil {
		err = fmt.Errorf("repository: failed to update status of order %s: %w", id, err)
		return err
	}

	return nil
}

func (r *postgresRepository) CancelOrder(ctx context.Context, id uuid.UUID, reason string, requestRefund bool) (*Order, error) {
	if err := r.cancelTx(ctx, id, reason, requestRefund); err != nil {
		return nil, err
	}
	return r.GetOrderByID(ctx, id)
}

func (r *postgresRepository) cancelTx(ctx context.Context, id uuid.UUID, reason string, requestRefund bool) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer finish(ctx, tx, &err)

	status, notes, err := lockOrder(ctx, tx, id)
	if err != nil {
		return err
	}
	if !status.Mutable() {
		err = &StateError{Op: "cancel order", Current: status}
		return err
	}

	now := time.Now().UTC()

	// Exact inverse of the creation-time decrement, in the same
	// transaction as the status write.
	itemRows, err := tx.Query(ctx, `SELECT product_id, quantity FROM order_items WHERE order_id = $1`, id)
	if err != nil {
		err = fmt.Errorf("repository: failed to query order items for cancel of %s: %w", id, err)
		return err
	}

	type restore struct {
		productID uuid.UUID
		quantity  int
	}
	var restores []restore
	for itemRows.Next() {
		var rs restore
		if scanErr := itemRows.Scan(&rs.productID, &rs.quantity); scanErr != nil {
			itemRows.Close()
			err = fmt.Errorf("repository: failed to scan order item for cancel of %s: %w", id, scanErr)
			return err
		}
		restores = append(restores, rs)
	}
	itemRows.Close()
	if err = itemRows.Err(); err != nil {
		err = fmt.Errorf("repository: error iterating order items for cancel of %s: %w", id, err)
		return err
	}

	for _, rs := range restores {
		if _, err = tx.Exec(ctx, `
			UPDATE products SET stock = stock + $1, updated_at = $2 WHERE id = $3
		`, rs.quantity, now, rs.productID); err != nil {
			err = fmt.Errorf("repository: failed to restore stock for product %s: %w", rs.productID, err)
			return err
		}
	}

	if requestRefund {
		notes = appendNote(notes, "refund requested")
	}

	query := `
		UPDATE orders
		SET status = $1, cancellation_reason = $2, notes = $3, updated_at = $4
		WHERE id = $5
	`
	if _, err = tx.Exec(ctx, query, StatusCancelled, reason, notes, now, id); err != nil {
		err = fmt.Errorf("repository: failed to cancel order %s: %w", id, err)
		return err
	}

	return nil
}

// lockOrder locks the order row for the transaction and returns its current
// status and notes.
func lockOrder(ctx context.Context, tx pgx.Tx, id uuid.UUID) (OrderStatus, string, error) {
	var status OrderStatus
	var notes string
	err := tx.QueryRow(ctx, `SELECT status, notes FROM orders WHERE id = $1 FOR UPDATE`, id).
		Scan(&status, &notes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", ErrOrderNotFound
		}
		return "", "", fmt.Errorf("repository: failed to lock order %s: %w", id, err)
	}
	return status, notes, nil
}

func appendNote(notes, note string) string {
	if notes == "" {
		return note
	}
	return notes + "\n" + note
}
