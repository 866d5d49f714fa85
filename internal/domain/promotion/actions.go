package promotion

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xenking/orderflow/internal/domain/order"
)

var hundred = decimal.NewFromInt(100)

// PercentageDiscount deducts a percentage of each line's running total. The
// fractional amount is banker's-rounded per line at the point of
// computation; line contributions are summed without re-rounding.
type PercentageDiscount struct {
	Percent decimal.Decimal
}

func (PercentageDiscount) Name() string { return "percentage-discount" }

func (a PercentageDiscount) Apply(_ context.Context, o *order.Order, lineTotals map[string]int64) (map[string]int64, error) {
	out := make(map[string]int64, len(o.Lines))
	for i := range o.Lines {
		lineID := o.Lines[i].ID
		total := lineTotals[lineID]
		if total <= 0 {
			continue
		}
		amount := order.RoundMinorUnits(
			decimal.NewFromInt(total).Mul(a.Percent).Div(hundred),
		)
		if amount > 0 {
			out[lineID] = amount
		}
	}
	return out, nil
}

// FixedDiscount deducts a fixed amount, capped at the order's remaining net
// total and allocated across lines in proportion to their running totals.
type FixedDiscount struct {
	// Amount in minor currency units.
	Amount int64
}

func (FixedDiscount) Name() string { return "fixed-discount" }

func (a FixedDiscount) Apply(_ context.Context, o *order.Order, lineTotals map[string]int64) (map[string]int64, error) {
	var remaining int64
	for i := range o.Lines {
		remaining += lineTotals[o.Lines[i].ID]
	}
	if remaining <= 0 || a.Amount <= 0 {
		return nil, nil
	}

	amount := a.Amount
	if amount > remaining {
		amount = remaining
	}

	amountDec := decimal.NewFromInt(amount)
	remainingDec := decimal.NewFromInt(remaining)

	out := make(map[string]int64, len(o.Lines))
	for i := range o.Lines {
		lineID := o.Lines[i].ID
		total := lineTotals[lineID]
		if total <= 0 {
			continue
		}
		share := amountDec.Mul(decimal.NewFromInt(total)).Div(remainingDec)
		if v := order.RoundMinorUnits(share); v > 0 {
			out[lineID] = v
		}
	}
	return out, nil
}

// FreeLowestLine deducts the cheapest unit price on the order, on the line
// that carries it.
type FreeLowestLine struct{}

func (FreeLowestLine) Name() string { return "free-lowest-line" }

func (FreeLowestLine) Apply(_ context.Context, o *order.Order, lineTotals map[string]int64) (map[string]int64, error) {
	lowestID := ""
	var lowest int64
	for i := range o.Lines {
		l := &o.Lines[i]
		if l.Quantity == 0 || lineTotals[l.ID] <= 0 {
			continue
		}
		if lowestID == "" || l.UnitPrice < lowest {
			lowestID = l.ID
			lowest = l.UnitPrice
		}
	}
	if lowestID == "" {
		return nil, nil
	}
	if limit := lineTotals[lowestID]; lowest > limit {
		lowest = limit
	}
	return map[string]int64{lowestID: lowest}, nil
}
