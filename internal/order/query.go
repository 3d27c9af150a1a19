package order

import (
	"time"

	"github.com/gofrs/uuid"
)

// ListFilter narrows and orders the read side. Search matches the order
// number and the owner's name or email.
type ListFilter struct {
	Status      *OrderStatus
	UserID      *uuid.UUID
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	MinTotal    *float64
	MaxTotal    *float64
	Search      string
	SortBy      string // created_at | total | status
	SortDesc    bool
	Page        int
	Limit       int
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

type StatsFilter struct {
	UserID      *uuid.UUID
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// Stats aggregates the order book. Revenue counts only orders in
// PROCESSING, SHIPPED or DELIVERED; pending money is not revenue and
// cancelled or refunded orders never were.
type Stats struct {
	TotalOrders       int64                 `json:"total_orders"`
	StatusCounts      map[OrderStatus]int64 `json:"status_counts"`
	Revenue           float64               `json:"revenue"`
	AverageOrderValue float64               `json:"average_order_value"`
	FulfillmentRate   float64               `json:"fulfillment_rate"`
}
