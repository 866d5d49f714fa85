// Package promotion evaluates which promotions apply to an order and what
// they deduct. Conditions and actions are pluggable strategy values; rows in
// the promotion store are declarative configuration mapped onto them.
package promotion

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/orderflow/internal/domain/order"
)

var (
	// ErrCouponInvalid is returned when a coupon code resolves to no
	// applicable promotion.
	ErrCouponInvalid = errors.New("invalid coupon code")
	// ErrCouponExpired is returned when a coupon is outside its validity
	// window.
	ErrCouponExpired = errors.New("coupon expired")
)

// CouponLimitReachedError is returned when a coupon has exhausted its usage
// allowance, globally or for this customer.
type CouponLimitReachedError struct {
	Limit int
}

func (e *CouponLimitReachedError) Error() string {
	return fmt.Sprintf("coupon usage limit of %d reached", e.Limit)
}

// Condition is a pluggable predicate over order data deciding whether a
// promotion applies.
type Condition interface {
	Name() string
	Test(ctx context.Context, o *order.Order) (bool, error)
}

// Action computes a promotion's deduction. lineTotals carries the running
// net total per line ID, already reduced by earlier promotions; the returned
// map holds this action's per-line deduction in minor units.
type Action interface {
	Name() string
	Apply(ctx context.Context, o *order.Order, lineTotals map[string]int64) (map[string]int64, error)
}

// Promotion couples eligibility conditions with discount actions.
type Promotion struct {
	ID   string
	Name string
	// CouponCode gates the promotion behind an applied code. Empty means
	// the promotion auto-applies when its conditions hold.
	CouponCode string
	// Priority orders evaluation; higher runs first, ties break on ID.
	Priority int
	StartsAt *time.Time
	EndsAt   *time.Time
	// UsageLimit caps total redemptions; zero means unlimited.
	UsageLimit int
	// PerCustomerLimit caps redemptions per customer; zero means unlimited.
	PerCustomerLimit int
	Uses             int
	Enabled          bool
	Conditions       []Condition
	Actions          []Action
}

// ActiveWithin reports whether the promotion's validity window contains now.
func (p *Promotion) ActiveWithin(now time.Time) bool {
	if p.StartsAt != nil && now.Before(*p.StartsAt) {
		return false
	}
	if p.EndsAt != nil && now.After(*p.EndsAt) {
		return false
	}
	return true
}

// Repository provides lookup and usage accounting for promotions.
type Repository interface {
	// Active returns all enabled promotions.
	Active(ctx context.Context) ([]*Promotion, error)
	// FindByCoupon resolves a coupon code to its promotion. Implementations
	// return ErrCouponInvalid when the code is unknown.
	FindByCoupon(ctx context.Context, code string) (*Promotion, error)
	// IncrementUses accounts one redemption globally and for the customer.
	IncrementUses(ctx context.Context, promotionID, customerID string) error
	// CustomerUses returns how many times the customer redeemed the
	// promotion.
	CustomerUses(ctx context.Context, promotionID, customerID string) (int, error)
}
