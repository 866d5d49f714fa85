package order

import "context"

// Event is a domain event raised by a committed order mutation. Events are
// published to an external bus after the aggregate has been persisted; the
// core does not know about subscribers.
type Event interface {
	// Kind is the wire-level event name.
	Kind() string
	// Order returns the ID of the order the event belongs to.
	Order() string
}

// StateTransitioned is raised after a successful state transition.
type StateTransitioned struct {
	OrderID string `json:"order_id"`
	From    State  `json:"from"`
	To      State  `json:"to"`
	Actor   string `json:"actor"`
}

func (e StateTransitioned) Kind() string { return "order.state_transitioned" }
func (e StateTransitioned) Order() string { return e.OrderID }

// LineAdded is raised after an item is added to the order.
type LineAdded struct {
	OrderID   string `json:"order_id"`
	LineID    string `json:"line_id"`
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

func (e LineAdded) Kind() string { return "order.line_added" }
func (e LineAdded) Order() string { return e.OrderID }

// LineAdjusted is raised after a line quantity or price change.
type LineAdjusted struct {
	OrderID  string `json:"order_id"`
	LineID   string `json:"line_id"`
	Quantity int    `json:"quantity"`
}

func (e LineAdjusted) Kind() string { return "order.line_adjusted" }
func (e LineAdjusted) Order() string { return e.OrderID }

// LineRemoved is raised after a line is removed from the order.
type LineRemoved struct {
	OrderID string `json:"order_id"`
	LineID  string `json:"line_id"`
}

func (e LineRemoved) Kind() string { return "order.line_removed" }
func (e LineRemoved) Order() string { return e.OrderID }

// CouponApplied is raised after a coupon code is applied.
type CouponApplied struct {
	OrderID string `json:"order_id"`
	Code    string `json:"code"`
}

func (e CouponApplied) Kind() string { return "order.coupon_applied" }
func (e CouponApplied) Order() string { return e.OrderID }

// CouponRemoved is raised after a coupon code is removed.
type CouponRemoved struct {
	OrderID string `json:"order_id"`
	Code    string `json:"code"`
}

func (e CouponRemoved) Kind() string { return "order.coupon_removed" }
func (e CouponRemoved) Order() string { return e.OrderID }

// EventPublisher delivers committed domain events to an external bus.
type EventPublisher interface {
	Publish(ctx context.Context, evt Event) error
}
