package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountCalculator computes the active promotion deductions for an order.
// It reads line and total data only; it never mutates the order.
type DiscountCalculator interface {
	Discounts(ctx context.Context, o *Order) ([]Discount, error)
}

// ErrNegativeTotal signals a programming error: a recompute produced a
// negative grand total. Callers must treat it as fatal, not user-facing.
var ErrNegativeTotal = errors.New("order total is negative after recompute")

var bpsDivisor = decimal.NewFromInt(10_000)

// lineTaxContribution computes the tax for one line in minor units. The
// fractional tax factor is applied with banker's rounding exactly once, at
// the point of computing the line's contribution; sums are never re-rounded.
func lineTaxContribution(l *Line) int64 {
	net := decimal.NewFromInt(l.UnitPrice * int64(l.Quantity))
	rate := decimal.NewFromInt(int64(l.TaxRate))
	return net.Mul(rate).Div(bpsDivisor).RoundBank(0).IntPart()
}

// RoundMinorUnits applies banker's rounding to a fractional minor-unit
// amount. Promotion actions use it for their per-line contributions.
func RoundMinorUnits(d decimal.Decimal) int64 {
	return d.RoundBank(0).IntPart()
}

// Recompute recalculates all order totals from the lines, shipping lines and
// active promotion deductions. All arithmetic is on integer minor currency
// units. The Ledger calls it after every structural mutation; callers must
// never read totals without a recompute having run since the last mutation.
func Recompute(ctx context.Context, o *Order, discounts DiscountCalculator) error {
	var subtotal, tax int64
	for i := range o.Lines {
		l := &o.Lines[i]
		subtotal += l.UnitPrice * int64(l.Quantity)
		tax += lineTaxContribution(l)
	}

	var shipping int64
	for i := range o.ShippingLines {
		shipping += o.ShippingLines[i].Price
	}

	var discount int64
	if discounts != nil {
		ds, err := discounts.Discounts(ctx, o)
		if err != nil {
			return errors.Wrap(err, "compute discounts")
		}
		for _, d := range ds {
			discount += d.Amount
		}
	}

	o.Totals = Totals{
		Subtotal:   subtotal,
		Tax:        tax,
		Shipping:   shipping,
		Discount:   discount,
		GrandTotal: subtotal + tax + shipping - discount,
	}
	if o.Totals.GrandTotal < 0 {
		return errors.Wrapf(ErrNegativeTotal, "order %s", o.ID)
	}
	return nil
}
