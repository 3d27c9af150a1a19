package order

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrForbidden means the requester is not the order's owner. The HTTP
	// layer deliberately reports it as a not-found so callers cannot probe
	// for order existence; logs keep the distinction.
	ErrForbidden = errors.New("requester does not own this order")
	// ErrStockConflict means a concurrent checkout drained stock between the
	// row lock and the decrement. The transaction is rolled back; the caller
	// should re-validate the cart and retry.
	ErrStockConflict = errors.New("stock insufficient")
	// ErrOrderNumberExhausted means the bounded regeneration loop hit its
	// attempt cap without finding a free order number.
	ErrOrderNumberExhausted = errors.New("failed to generate a unique order number")
)

// ValidationError carries the user-facing reasons an order could not be
// created. It is a business rejection, not an infrastructure failure.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return "order validation failed: " + strings.Join(e.Reasons, "; ")
}

// StateError rejects an operation that is illegal in the order's current
// status, naming that status for the caller.
type StateError struct {
	Op      string
	Current OrderStatus
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s order in status %s", e.Op, e.Current)
}
