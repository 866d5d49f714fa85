package promotion

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/orderflow/internal/domain/order"
)

func TestPercentageDiscount_PerLineRounding(t *testing.T) {
	o := twoLineOrder()
	totals := map[string]int64{"l1": 2000, "l2": 500}

	out, err := PercentageDiscount{Percent: decimal.NewFromInt(10)}.Apply(context.Background(), o, totals)
	require.NoError(t, err)

	assert.Equal(t, int64(200), out["l1"])
	assert.Equal(t, int64(50), out["l2"])
}

func TestPercentageDiscount_HalfRoundsToEven(t *testing.T) {
	o := order.New("order-1", "USD", "", testNow)
	o.Lines = []order.Line{{ID: "l1", Quantity: 1, UnitPrice: 125}}
	totals := map[string]int64{"l1": 125}

	// 10% of 125 is 12.5, which rounds to the even 12.
	out, err := PercentageDiscount{Percent: decimal.NewFromInt(10)}.Apply(context.Background(), o, totals)
	require.NoError(t, err)
	assert.Equal(t, int64(12), out["l1"])
}

func TestFixedDiscount_ProportionalAllocation(t *testing.T) {
	o := twoLineOrder()
	totals := map[string]int64{"l1": 2000, "l2": 500}

	out, err := FixedDiscount{Amount: 1000}.Apply(context.Background(), o, totals)
	require.NoError(t, err)

	assert.Equal(t, int64(800), out["l1"])
	assert.Equal(t, int64(200), out["l2"])
}

func TestFixedDiscount_CappedAtRemaining(t *testing.T) {
	o := twoLineOrder()
	totals := map[string]int64{"l1": 2000, "l2": 500}

	out, err := FixedDiscount{Amount: 99_999}.Apply(context.Background(), o, totals)
	require.NoError(t, err)

	var total int64
	for _, v := range out {
		total += v
	}
	assert.Equal(t, int64(2500), total)
}

func TestFixedDiscount_NothingLeft(t *testing.T) {
	o := twoLineOrder()
	totals := map[string]int64{"l1": 0, "l2": 0}

	out, err := FixedDiscount{Amount: 1000}.Apply(context.Background(), o, totals)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestFreeLowestLine(t *testing.T) {
	o := twoLineOrder()
	totals := map[string]int64{"l1": 2000, "l2": 500}

	out, err := FreeLowestLine{}.Apply(context.Background(), o, totals)
	require.NoError(t, err)

	// l2 carries the cheapest unit price.
	assert.Equal(t, map[string]int64{"l2": 500}, out)
}

func TestFreeLowestLine_SkipsExhaustedLines(t *testing.T) {
	o := twoLineOrder()
	totals := map[string]int64{"l1": 2000, "l2": 0}

	out, err := FreeLowestLine{}.Apply(context.Background(), o, totals)
	require.NoError(t, err)

	// With l2 already fully discounted, the deduction is one l1 unit.
	assert.Equal(t, map[string]int64{"l1": 1000}, out)
}

func TestMinimumSubtotal(t *testing.T) {
	o := twoLineOrder()

	ok, err := MinimumSubtotal{Amount: 2500}.Test(context.Background(), o)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = MinimumSubtotal{Amount: 2501}.Test(context.Background(), o)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMinimumQuantity(t *testing.T) {
	o := twoLineOrder()

	ok, err := MinimumQuantity{Count: 3}.Test(context.Background(), o)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = MinimumQuantity{Count: 4}.Test(context.Background(), o)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestContainsVariant(t *testing.T) {
	o := twoLineOrder()

	ok, err := ContainsVariant{VariantID: "v2"}.Test(context.Background(), o)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ContainsVariant{VariantID: "v9"}.Test(context.Background(), o)
	require.NoError(t, err)
	assert.False(t, ok)
}
