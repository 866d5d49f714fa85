package promotion

import (
	"context"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/orderflow/internal/domain/order"
)

// Evaluator determines which promotions apply to an order and computes their
// deductions. It implements order.PromotionService.
type Evaluator struct {
	promotions Repository
	lg         *zap.Logger

	now func() time.Time
}

// NewEvaluator creates an Evaluator over the given promotion repository.
func NewEvaluator(promotions Repository, lg *zap.Logger) *Evaluator {
	return &Evaluator{
		promotions: promotions,
		lg:         lg.Named("promotions"),
		now:        time.Now,
	}
}

// Eligible returns the promotions applicable to the order, in evaluation
// order: priority descending, then ID ascending, for determinism. Excluded
// promotions are skipped, coupon-gated promotions require their code to be
// applied, and a promotion whose condition fails or panics is logged and
// treated as not eligible.
func (e *Evaluator) Eligible(ctx context.Context, o *order.Order) ([]*Promotion, error) {
	all, err := e.promotions.Active(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load promotions")
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Priority != all[j].Priority {
			return all[i].Priority > all[j].Priority
		}
		return all[i].ID < all[j].ID
	})

	now := e.now()
	eligible := make([]*Promotion, 0, len(all))
	for _, p := range all {
		if o.PromotionExcluded(p.ID) {
			continue
		}
		if !p.ActiveWithin(now) {
			continue
		}
		if p.CouponCode != "" && !o.HasCoupon(p.CouponCode) {
			continue
		}
		if e.conditionsHold(ctx, p, o) {
			eligible = append(eligible, p)
		}
	}
	return eligible, nil
}

// conditionsHold evaluates all conditions of one promotion, treating errors
// and panics as not-eligible so a misbehaving promotion cannot block
// checkout.
func (e *Evaluator) conditionsHold(ctx context.Context, p *Promotion, o *order.Order) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.lg.Error("promotion condition panicked",
				zap.String("promotion_id", p.ID),
				zap.Any("panic", r))
			ok = false
		}
	}()

	for _, c := range p.Conditions {
		hold, err := c.Test(ctx, o)
		if err != nil {
			e.lg.Warn("promotion condition failed, skipping promotion",
				zap.String("promotion_id", p.ID),
				zap.String("condition", c.Name()),
				zap.Error(err))
			return false
		}
		if !hold {
			return false
		}
	}
	return true
}

// Discounts computes the deductions of all eligible promotions. Application
// is sequential: each promotion's actions see per-line totals already
// reduced by earlier promotions, and the ordering from Eligible is
// preserved for reproducibility. An action that fails or panics is logged
// and its promotion skipped.
func (e *Evaluator) Discounts(ctx context.Context, o *order.Order) ([]order.Discount, error) {
	eligible, err := e.Eligible(ctx, o)
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	running := make(map[string]int64, len(o.Lines))
	for i := range o.Lines {
		l := &o.Lines[i]
		running[l.ID] = l.UnitPrice * int64(l.Quantity)
	}

	discounts := make([]order.Discount, 0, len(eligible))
	for _, p := range eligible {
		perLine, err := e.applyActions(ctx, p, o, running)
		if err != nil {
			e.lg.Warn("promotion action failed, skipping promotion",
				zap.String("promotion_id", p.ID),
				zap.Error(err))
			continue
		}
		if len(perLine) == 0 {
			continue
		}

		var total int64
		for lineID, amount := range perLine {
			total += amount
			running[lineID] -= amount
			if running[lineID] < 0 {
				running[lineID] = 0
			}
		}
		discounts = append(discounts, order.Discount{
			PromotionID: p.ID,
			CouponCode:  p.CouponCode,
			Description: p.Name,
			Amount:      total,
			PerLine:     perLine,
		})
	}
	return discounts, nil
}

// applyActions runs a promotion's actions in order, merging their per-line
// deductions. Panics are converted to errors.
func (e *Evaluator) applyActions(ctx context.Context, p *Promotion, o *order.Order, running map[string]int64) (merged map[string]int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			merged = nil
			err = errors.Errorf("action panicked: %v", r)
		}
	}()

	merged = make(map[string]int64)
	for _, a := range p.Actions {
		perLine, err := a.Apply(ctx, o, running)
		if err != nil {
			return nil, errors.Wrapf(err, "action %s", a.Name())
		}
		for lineID, amount := range perLine {
			if amount <= 0 {
				continue
			}
			// An action never deducts more than the line has left.
			if left := running[lineID] - merged[lineID]; amount > left {
				amount = left
			}
			merged[lineID] += amount
		}
	}
	for lineID, amount := range merged {
		if amount == 0 {
			delete(merged, lineID)
		}
	}
	return merged, nil
}

// ValidateCoupon checks that the code resolves to an applicable promotion
// for the order and accounts its redemption. It implements the coupon
// eligibility half of order.PromotionService.
func (e *Evaluator) ValidateCoupon(ctx context.Context, o *order.Order, code string) error {
	p, err := e.promotions.FindByCoupon(ctx, code)
	if err != nil {
		if errors.Is(err, ErrCouponInvalid) {
			return ErrCouponInvalid
		}
		return errors.Wrap(err, "lookup coupon")
	}

	if !p.Enabled {
		return ErrCouponInvalid
	}
	if !p.ActiveWithin(e.now()) {
		return ErrCouponExpired
	}
	if p.UsageLimit > 0 && p.Uses >= p.UsageLimit {
		return &CouponLimitReachedError{Limit: p.UsageLimit}
	}
	if p.PerCustomerLimit > 0 && o.CustomerID != "" {
		uses, err := e.promotions.CustomerUses(ctx, p.ID, o.CustomerID)
		if err != nil {
			return errors.Wrap(err, "customer usage")
		}
		if uses >= p.PerCustomerLimit {
			return &CouponLimitReachedError{Limit: p.PerCustomerLimit}
		}
	}

	if err := e.promotions.IncrementUses(ctx, p.ID, o.CustomerID); err != nil {
		return errors.Wrap(err, "increment coupon uses")
	}
	return nil
}
