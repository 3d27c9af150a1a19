package order

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/wanderhub/checkout-service/internal/checkout"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "PENDING"
	StatusProcessing OrderStatus = "PROCESSING"
	StatusShipped    OrderStatus = "SHIPPED"
	StatusDelivered  OrderStatus = "DELIVERED"
	StatusCancelled  OrderStatus = "CANCELLED"
	StatusRefunded   OrderStatus = "REFUNDED"
)

func (os OrderStatus) String() string {
	return string(os)
}

func (os OrderStatus) Valid() bool {
	switch os {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// Terminal statuses admit no further business transition, with the single
// exception of the refund entries handled by CanTransition.
func (os OrderStatus) Terminal() bool {
	switch os {
	case StatusCancelled, StatusDelivered, StatusRefunded:
		return true
	}
	return false
}

// Mutable reports whether the owner may still cancel the order or edit its
// non-monetary fields.
func (os OrderStatus) Mutable() bool {
	return os == StatusPending || os == StatusProcessing
}

// Address is copied into the order at creation time. It never references a
// mutable address entity.
type Address struct {
	FullName   string `json:"full_name" validate:"required"`
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city" validate:"required"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country" validate:"required"`
	Phone      string `json:"phone,omitempty"`
}

// UserSummary is the slice of the owning user hydrated onto an order.
type UserSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// OrderItem is created together with its order and never mutated.
type OrderItem struct {
	ID          uuid.UUID         `json:"id"`
	OrderID     uuid.UUID         `json:"order_id"`
	ProductID   uuid.UUID         `json:"product_id"`
	ProductName string            `json:"product_name"`
	Quantity    int               `json:"quantity"`
	UnitPrice   float64           `json:"unit_price"`
	LineTotal   float64           `json:"line_total"`
	Variant     *checkout.Variant `json:"variant,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Order's monetary breakdown is a snapshot taken at creation time and is
// never recomputed, even if product prices change later.
type Order struct {
	ID                 uuid.UUID    `json:"id"`
	OrderNumber        string       `json:"order_number"`
	UserID             uuid.UUID    `json:"user_id"`
	User               *UserSummary `json:"user,omitempty"`
	Status             OrderStatus  `json:"status"`
	OrderItems         []OrderItem  `json:"order_items"`
	Subtotal           float64      `json:"subtotal"`
	Tax                float64      `json:"tax"`
	Shipping           float64      `json:"shipping"`
	Discount           float64      `json:"discount"`
	Total              float64      `json:"total"`
	ShippingAddress    Address      `json:"shipping_address"`
	BillingAddress     Address      `json:"billing_address"`
	TrackingNumber     string       `json:"tracking_number,omitempty"`
	Notes              string       `json:"notes,omitempty"`
	CancellationReason string       `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}
