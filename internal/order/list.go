package order

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

var sortColumns = map[string]string{
	"created_at": "o.created_at",
	"total":      "o.total",
	"status":     "o.status",
}

func (r *postgresRepository) ListOrders(ctx context.Context, f ListFilter) ([]Order, *Pagination, error) {
	where, args := buildListWhere(f)

	countQuery := `
		SELECT COUNT(*)
		FROM orders o
		LEFT JOIN users u ON u.id = o.user_id
	` + where

	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, nil, fmt.Errorf("repository: failed to count orders: %w", err)
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	sortCol, ok := sortColumns[f.SortBy]
	if !ok {
		sortCol = "o.created_at"
	}
	dir := "ASC"
	if f.SortDesc {
		dir = "DESC"
	}

	args = append(args, limit, (page-1)*limit)
	listQuery := fmt.Sprintf(`
		SELECT o.id, o.order_number, o.user_id, o.status,
			o.subtotal, o.tax, o.shipping, o.discount, o.total,
			o.shipping_address, o.billing_address, o.tracking_number,
			o.notes, o.cancellation_reason, o.created_at, o.updated_at,
			u.id, u.name, u.email
		FROM orders o
		LEFT JOIN users u ON u.id = o.user_id
		%s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, where, sortCol, dir, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("repository: failed to query orders: %w", err)
	}
	defer rows.Close()

	ordersMap := make(map[uuid.UUID]*Order)
	var orderIDs []uuid.UUID

	for rows.Next() {
		var ord Order
		var userID *uuid.UUID
		var userName, userEmail *string

		err := rows.Scan(
			&ord.ID, &ord.OrderNumber, &ord.UserID, &ord.Status,
			&ord.Subtotal, &ord.Tax, &ord.Shipping, &ord.Discount, &ord.Total,
			&ord.ShippingAddress, &ord.BillingAddress, &ord.TrackingNumber,
			&ord.Notes, &ord.CancellationReason, &ord.CreatedAt, &ord.UpdatedAt,
			&userID, &userName, &userEmail,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("repository: failed to scan order row: %w", err)
		}

		if userID != nil {
			ord.User = &UserSummary{ID: *userID}
			if userName != nil {
				ord.User.Name = *userName
			}
			if userEmail != nil {
				ord.User.Email = *userEmail
			}
		}

		ord.OrderItems = []OrderItem{}
		ordersMap[ord.ID] = &ord
		orderIDs = append(orderIDs, ord.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("repository: error iterating orders: %w", err)
	}

	if len(orderIDs) > 0 {
		itemsByOrder, err := r.fetchOrderItems(ctx, orderIDs)
		if err != nil {
			return nil, nil, err
		}
		for id, items := range itemsByOrder {
			if ord, ok := ordersMap[id]; ok {
				ord.OrderItems = items
			}
		}
	}

	result := make([]Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		result = append(result, *ordersMap[id])
	}

	totalPages := total / int64(limit)
	if total%int64(limit) != 0 {
		totalPages++
	}

	return result, &Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

func buildListWhere(f ListFilter) (string, []any) {
	var conds []string
	var args []any

	add := func(expr string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(expr, len(args)))
	}

	if f.Status != nil {
		add("o.status = $%d", *f.Status)
	}
	if f.UserID != nil {
		add("o.user_id = $%d", *f.UserID)
	}
	if f.CreatedFrom != nil {
		add("o.created_at >= $%d", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		add("o.created_at <= $%d", *f.CreatedTo)
	}
	if f.MinTotal != nil {
		add("o.total >= $%d", *f.MinTotal)
	}
	if f.MaxTotal != nil {
		add("o.total <= $%d", *f.MaxTotal)
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(o.order_number ILIKE $%d OR u.name ILIKE $%d OR u.email ILIKE $%d)", n, n, n))
	}

	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// revenueStatuses are the "counted" set for revenue and average order value.
var revenueStatuses = map[OrderStatus]bool{
	StatusProcessing: true,
	StatusShipped:    true,
	StatusDelivered:  true,
}

func (r *postgresRepository) GetStats(ctx context.Context, f StatsFilter) (*Stats, error) {
	var conds []string
	var args []any

	add := func(expr string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(expr, len(args)))
	}

	if f.UserID != nil {
		add("user_id = $%d", *f.UserID)
	}
	if f.CreatedFrom != nil {
		add("created_at >= $%d", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		add("created_at <= $%d", *f.CreatedTo)
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT status, COUNT(*), COALESCE(SUM(total), 0)
		FROM orders
		%s
		GROUP BY status
	`, where)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order stats: %w", err)
	}
	defer rows.Close()

	stats := &Stats{StatusCounts: make(map[OrderStatus]int64)}
	var countedOrders int64

	for rows.Next() {
		var status OrderStatus
		var count int64
		var sum float64
		if err := rows.Scan(&status, &count, &sum); err != nil {
			return nil, fmt.Errorf("repository: failed to scan stats row: %w", err)
		}

		stats.StatusCounts[status] = count
		stats.TotalOrders += count
		if revenueStatuses[status] {
			stats.Revenue += sum
			countedOrders += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating stats rows: %w", err)
	}

	if countedOrders > 0 {
		stats.AverageOrderValue = stats.Revenue / float64(countedOrders)
	}
	if stats.TotalOrders > 0 {
		fulfilled := stats.StatusCounts[StatusDelivered] + stats.StatusCounts[StatusShipped]
		stats.FulfillmentRate = float64(fulfilled) / float64(stats.TotalOrders)
	}

	return stats, nil
}
