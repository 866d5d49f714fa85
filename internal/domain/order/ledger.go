package order

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/orderflow/internal/domain/catalog"
)

// PromotionService is the slice of the promotion evaluator the Ledger
// consumes: coupon eligibility checks plus discount computation.
type PromotionService interface {
	DiscountCalculator
	// ValidateCoupon checks that the code resolves to an applicable
	// promotion for this order and accounts its usage.
	ValidateCoupon(ctx context.Context, o *Order, code string) error
}

// Ledger owns the order lines and keeps totals consistent: every structural
// mutation runs the middleware chain, applies the change, reassigns shipping
// and recomputes totals synchronously before returning.
type Ledger struct {
	variants   catalog.Repository
	promotions PromotionService
	strategy   ShippingAssignmentStrategy
	middleware []Middleware
	lg         *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewLedger creates a Ledger. Middlewares run in the given order on every
// mutation. The strategy may be nil, in which case shipping assignments are
// left untouched.
func NewLedger(
	variants catalog.Repository,
	promotions PromotionService,
	strategy ShippingAssignmentStrategy,
	middleware []Middleware,
	lg *zap.Logger,
) *Ledger {
	return &Ledger{
		variants:   variants,
		promotions: promotions,
		strategy:   strategy,
		middleware: middleware,
		lg:         lg.Named("ledger"),
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
	}
}

// AddItemRequest holds the input for adding an item to an order.
type AddItemRequest struct {
	VariantID    string
	Quantity     int
	CustomFields map[string]string
	Actor        string
}

// AddItem adds quantity units of a variant to the order. When a line for the
// same variant and custom fields already exists its quantity is incremented,
// otherwise a new line is appended. Totals are recomputed before returning.
func (l *Ledger) AddItem(ctx context.Context, o *Order, req AddItemRequest) (*Line, error) {
	if o.State.Terminal() {
		return nil, ErrOrderImmutable
	}
	if req.Quantity <= 0 {
		return nil, &InvalidQuantityError{Quantity: req.Quantity}
	}

	for _, m := range l.middleware {
		if reason := m.ShouldAddItem(ctx, o, req.VariantID, req.Quantity); reason != "" {
			return nil, &MutationVetoedError{Op: "add item", Reason: reason}
		}
	}

	v, err := l.variants.GetByID(ctx, req.VariantID)
	if err != nil {
		return nil, errors.Wrapf(err, "get variant %s", req.VariantID)
	}

	existing := o.LineByVariant(req.VariantID, req.CustomFields)
	have := 0
	if existing != nil {
		have = existing.Quantity
	}
	if have+req.Quantity > v.Stock {
		return nil, &InsufficientStockError{VariantID: v.ID, Available: v.Stock}
	}

	var line *Line
	var before int
	if existing != nil {
		before = existing.Quantity
		existing.Quantity += req.Quantity
		line = existing
	} else {
		o.Lines = append(o.Lines, Line{
			ID:               l.newID(),
			VariantID:        v.ID,
			Quantity:         req.Quantity,
			UnitPrice:        v.UnitPrice,
			UnitPriceWithTax: v.UnitPrice + taxOnUnit(v.UnitPrice, v.TaxRate),
			TaxRate:          v.TaxRate,
			Digital:          v.Digital,
			CustomFields:     req.CustomFields,
		})
		line = &o.Lines[len(o.Lines)-1]
	}

	o.record(ModificationRecord{
		Kind:      ModQuantityChange,
		LineID:    line.ID,
		Before:    strconv.Itoa(before),
		After:     strconv.Itoa(line.Quantity),
		Actor:     req.Actor,
		Timestamp: l.now(),
	})
	o.raise(LineAdded{OrderID: o.ID, LineID: line.ID, VariantID: v.ID, Quantity: req.Quantity})

	if err := l.commit(ctx, o); err != nil {
		return nil, err
	}
	return o.Line(line.ID), nil
}

// AdjustLine sets a line's quantity. Quantity 0 removes the line entirely,
// including any shipping-line assignment referencing it. Increases are
// checked against available stock.
func (l *Ledger) AdjustLine(ctx context.Context, o *Order, lineID string, newQuantity int, actor string) (*Line, error) {
	if o.State.Terminal() {
		return nil, ErrOrderImmutable
	}
	if newQuantity < 0 {
		return nil, &InvalidQuantityError{Quantity: newQuantity}
	}

	line := o.Line(lineID)
	if line == nil {
		return nil, ErrLineNotFound
	}

	for _, m := range l.middleware {
		if reason := m.ShouldAdjustLine(ctx, o, line, newQuantity); reason != "" {
			return nil, &MutationVetoedError{Op: "adjust line", Reason: reason}
		}
	}

	if newQuantity > line.Quantity {
		v, err := l.variants.GetByID(ctx, line.VariantID)
		if err != nil {
			return nil, errors.Wrapf(err, "get variant %s", line.VariantID)
		}
		if newQuantity > v.Stock {
			return nil, &InsufficientStockError{VariantID: v.ID, Available: v.Stock}
		}
	}

	before := line.Quantity
	if newQuantity == 0 {
		l.dropLine(o, lineID)
	} else {
		line.Quantity = newQuantity
	}

	o.record(ModificationRecord{
		Kind:      ModQuantityChange,
		LineID:    lineID,
		Before:    strconv.Itoa(before),
		After:     strconv.Itoa(newQuantity),
		Actor:     actor,
		Timestamp: l.now(),
	})
	o.raise(LineAdjusted{OrderID: o.ID, LineID: lineID, Quantity: newQuantity})

	if err := l.commit(ctx, o); err != nil {
		return nil, err
	}
	return o.Line(lineID), nil
}

// AdjustLinePrice overrides a line's unit price. Price overrides are an
// administrator action and are only legal while the order is in Modifying.
func (l *Ledger) AdjustLinePrice(ctx context.Context, o *Order, lineID string, unitPrice int64, actor string) (*Line, error) {
	if o.State.Terminal() {
		return nil, ErrOrderImmutable
	}
	if o.State != StateModifying {
		return nil, &MutationVetoedError{Op: "adjust price", Reason: "order is not in Modifying state"}
	}

	line := o.Line(lineID)
	if line == nil {
		return nil, ErrLineNotFound
	}

	before := line.UnitPrice
	line.UnitPrice = unitPrice
	line.UnitPriceWithTax = unitPrice + taxOnUnit(unitPrice, line.TaxRate)

	o.record(ModificationRecord{
		Kind:      ModPriceChange,
		LineID:    lineID,
		Before:    strconv.FormatInt(before, 10),
		After:     strconv.FormatInt(unitPrice, 10),
		Actor:     actor,
		Timestamp: l.now(),
	})
	o.raise(LineAdjusted{OrderID: o.ID, LineID: lineID, Quantity: line.Quantity})

	if err := l.commit(ctx, o); err != nil {
		return nil, err
	}
	return o.Line(lineID), nil
}

// RemoveLine removes a line from the order.
func (l *Ledger) RemoveLine(ctx context.Context, o *Order, lineID, actor string) error {
	if o.State.Terminal() {
		return ErrOrderImmutable
	}

	line := o.Line(lineID)
	if line == nil {
		return ErrLineNotFound
	}

	for _, m := range l.middleware {
		if reason := m.ShouldRemoveLine(ctx, o, line); reason != "" {
			return &MutationVetoedError{Op: "remove line", Reason: reason}
		}
	}

	before := line.Quantity
	l.dropLine(o, lineID)

	o.record(ModificationRecord{
		Kind:      ModQuantityChange,
		LineID:    lineID,
		Before:    strconv.Itoa(before),
		After:     "0",
		Actor:     actor,
		Timestamp: l.now(),
	})
	o.raise(LineRemoved{OrderID: o.ID, LineID: lineID})

	return l.commit(ctx, o)
}

// ApplyCoupon applies a coupon code to the order. Eligibility and discount
// computation are delegated to the promotion service.
func (l *Ledger) ApplyCoupon(ctx context.Context, o *Order, code, actor string) error {
	if o.State.Terminal() {
		return ErrOrderImmutable
	}
	if o.HasCoupon(code) {
		return nil
	}

	for _, m := range l.middleware {
		if reason := m.ShouldApplyCoupon(ctx, o, code); reason != "" {
			return &MutationVetoedError{Op: "apply coupon", Reason: reason}
		}
	}

	if err := l.promotions.ValidateCoupon(ctx, o, code); err != nil {
		return err
	}

	o.CouponCodes = append(o.CouponCodes, code)
	o.record(ModificationRecord{
		Kind:      ModCouponApplied,
		After:     code,
		Actor:     actor,
		Timestamp: l.now(),
	})
	o.raise(CouponApplied{OrderID: o.ID, Code: code})

	return l.commit(ctx, o)
}

// RemoveCoupon removes a previously applied coupon code.
func (l *Ledger) RemoveCoupon(ctx context.Context, o *Order, code, actor string) error {
	if o.State.Terminal() {
		return ErrOrderImmutable
	}
	if !o.HasCoupon(code) {
		return ErrCouponNotApplied
	}

	for _, m := range l.middleware {
		if reason := m.ShouldRemoveCoupon(ctx, o, code); reason != "" {
			return &MutationVetoedError{Op: "remove coupon", Reason: reason}
		}
	}

	codes := o.CouponCodes[:0]
	for _, c := range o.CouponCodes {
		if c != code {
			codes = append(codes, c)
		}
	}
	o.CouponCodes = codes

	o.record(ModificationRecord{
		Kind:      ModCouponRemoved,
		Before:    code,
		Actor:     actor,
		Timestamp: l.now(),
	})
	o.raise(CouponRemoved{OrderID: o.ID, Code: code})

	return l.commit(ctx, o)
}

// SetShippingLines replaces the order's shipping lines, reassigns order
// lines across them and recomputes totals.
func (l *Ledger) SetShippingLines(ctx context.Context, o *Order, lines []ShippingLine) error {
	if o.State.Terminal() {
		return ErrOrderImmutable
	}
	for i := range lines {
		if lines[i].ID == "" {
			lines[i].ID = l.newID()
		}
		lines[i].LineIDs = nil
	}
	o.ShippingLines = lines
	return l.commit(ctx, o)
}

// Recompute recalculates totals without mutating lines. Exposed for the
// engine, which finalizes totals around state transitions.
func (l *Ledger) Recompute(ctx context.Context, o *Order) error {
	return Recompute(ctx, o, l.promotions)
}

// commit reassigns shipping and recomputes totals after a mutation.
func (l *Ledger) commit(ctx context.Context, o *Order) error {
	if err := l.reassignShipping(ctx, o); err != nil {
		return err
	}
	return Recompute(ctx, o, l.promotions)
}

// dropLine removes the line and detaches it from its shipping line.
func (l *Ledger) dropLine(o *Order, lineID string) {
	lines := o.Lines[:0]
	for i := range o.Lines {
		if o.Lines[i].ID != lineID {
			lines = append(lines, o.Lines[i])
		}
	}
	o.Lines = lines

	for i := range o.ShippingLines {
		sl := &o.ShippingLines[i]
		ids := sl.LineIDs[:0]
		for _, id := range sl.LineIDs {
			if id != lineID {
				ids = append(ids, id)
			}
		}
		sl.LineIDs = ids
	}
}

// taxOnUnit computes the banker's-rounded tax on a single unit price.
func taxOnUnit(unitPrice int64, taxRateBps int) int64 {
	return lineTaxContribution(&Line{UnitPrice: unitPrice, Quantity: 1, TaxRate: taxRateBps})
}
