package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors for order mutations.
var (
	// ErrOrderImmutable is returned when mutating an order in a terminal state.
	ErrOrderImmutable = errors.New("order is immutable")
	// ErrLineNotFound is returned when a line ID does not exist on the order.
	ErrLineNotFound = errors.New("order line not found")
	// ErrCouponNotApplied is returned when removing a coupon the order does
	// not carry.
	ErrCouponNotApplied = errors.New("coupon code not applied")
)

// IllegalTransitionError indicates the requested edge is not declared in the
// state graph.
type IllegalTransitionError struct {
	From State
	To   State
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition from %s to %s", e.From, e.To)
}

// TransitionVetoedError indicates a process hook aborted the transition.
type TransitionVetoedError struct {
	Hook   string
	Reason string
}

func (e *TransitionVetoedError) Error() string {
	return fmt.Sprintf("transition vetoed by %s: %s", e.Hook, e.Reason)
}

// MutationVetoedError indicates an order middleware aborted a line-level
// mutation. Op names the attempted operation.
type MutationVetoedError struct {
	Op     string
	Reason string
}

func (e *MutationVetoedError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Op, e.Reason)
}

// InvalidQuantityError indicates a negative requested quantity.
type InvalidQuantityError struct {
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must not be negative, got %d", e.Quantity)
}

// InsufficientStockError indicates the requested quantity exceeds available
// stock. It is a recoverable, user-facing outcome.
type InsufficientStockError struct {
	VariantID string
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for variant %s: %d available", e.VariantID, e.Available)
}
