package promotion

import (
	"context"

	"github.com/xenking/orderflow/internal/domain/order"
)

// MinimumSubtotal requires the order's net line total to reach a threshold.
type MinimumSubtotal struct {
	// Amount in minor currency units.
	Amount int64
}

func (MinimumSubtotal) Name() string { return "minimum-subtotal" }

func (c MinimumSubtotal) Test(_ context.Context, o *order.Order) (bool, error) {
	var subtotal int64
	for i := range o.Lines {
		subtotal += o.Lines[i].UnitPrice * int64(o.Lines[i].Quantity)
	}
	return subtotal >= c.Amount, nil
}

// MinimumQuantity requires a total item count across all lines.
type MinimumQuantity struct {
	Count int
}

func (MinimumQuantity) Name() string { return "minimum-quantity" }

func (c MinimumQuantity) Test(_ context.Context, o *order.Order) (bool, error) {
	total := 0
	for i := range o.Lines {
		total += o.Lines[i].Quantity
	}
	return total >= c.Count, nil
}

// ContainsVariant requires the order to carry a specific variant.
type ContainsVariant struct {
	VariantID string
}

func (ContainsVariant) Name() string { return "contains-variant" }

func (c ContainsVariant) Test(_ context.Context, o *order.Order) (bool, error) {
	for i := range o.Lines {
		if o.Lines[i].VariantID == c.VariantID && o.Lines[i].Quantity > 0 {
			return true, nil
		}
	}
	return false, nil
}
