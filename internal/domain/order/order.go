// Package order implements the order aggregate: the state machine guarding
// its lifecycle, the line ledger keeping totals consistent, and the hook and
// middleware chains that let business rules veto or observe mutations.
package order

import (
	"context"
	"time"
)

// Order is the aggregate root. It owns its lines, shipping lines and
// modification history; all mutations go through the Ledger or the
// ProcessEngine so that totals and history are never stale.
type Order struct {
	ID       string
	State    State
	Currency string
	// CustomerID references the buyer; the order core does not own customers.
	CustomerID string
	Lines      []Line
	// ShippingLines partition the order lines across shipping methods.
	ShippingLines []ShippingLine
	CouponCodes   []string
	// ExcludedPromotions suppresses promotions that would otherwise
	// auto-apply.
	ExcludedPromotions []string
	Totals             Totals
	// History is the append-only log of committed changes.
	History []ModificationRecord
	// ResumeState remembers where to return after a Modifying detour.
	ResumeState State
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// events collects domain events raised since the last TakeEvents call.
	// They are published by the caller after the aggregate is persisted.
	events []Event
}

// Line is a single product-variant line item, owned exclusively by its Order.
type Line struct {
	ID        string `json:"id"`
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
	// UnitPrice is the net price per unit in minor currency units.
	UnitPrice int64 `json:"unit_price"`
	// UnitPriceWithTax is the gross price per unit in minor currency units.
	UnitPriceWithTax int64 `json:"unit_price_with_tax"`
	// TaxRate in basis points.
	TaxRate int `json:"tax_rate"`
	// Digital lines need no physical shipping; the shipping assignment
	// strategy partitions lines on this flag.
	Digital bool `json:"digital,omitempty"`
	// ShippingLineID links the line to at most one shipping line.
	ShippingLineID string            `json:"shipping_line_id,omitempty"`
	CustomFields   map[string]string `json:"custom_fields,omitempty"`
}

// ShippingLine is a shipping method applied to a subset of the order lines.
type ShippingLine struct {
	ID       string   `json:"id"`
	MethodID string   `json:"method_id"`
	LineIDs  []string `json:"line_ids"`
	// Price in minor currency units.
	Price int64 `json:"price"`
}

// Totals are the computed money amounts of an order, all in minor currency
// units. They are recomputed after every mutation and never stored stale.
type Totals struct {
	Subtotal   int64 `json:"subtotal"`
	Tax        int64 `json:"tax"`
	Shipping   int64 `json:"shipping"`
	Discount   int64 `json:"discount"`
	GrandTotal int64 `json:"grand_total"`
}

// ModificationKind tags a ModificationRecord.
type ModificationKind string

const (
	ModQuantityChange  ModificationKind = "quantity-change"
	ModPriceChange     ModificationKind = "price-change"
	ModCouponApplied   ModificationKind = "coupon-applied"
	ModCouponRemoved   ModificationKind = "coupon-removed"
	ModStateTransition ModificationKind = "state-transition"
)

// ModificationRecord is an immutable history entry appended when a change is
// committed. Before/After hold the kind-specific values as strings so the
// log stays uniform across record kinds.
type ModificationRecord struct {
	Kind      ModificationKind `json:"kind"`
	LineID    string           `json:"line_id,omitempty"`
	Before    string           `json:"before,omitempty"`
	After     string           `json:"after,omitempty"`
	Actor     string           `json:"actor"`
	Timestamp time.Time        `json:"timestamp"`
}

// Discount is one promotion's computed deduction, allocated per line.
type Discount struct {
	PromotionID string
	CouponCode  string
	Description string
	// Amount is the total deduction in minor currency units.
	Amount int64
	// PerLine maps line IDs to their share of Amount.
	PerLine map[string]int64
}

// New creates a draft order in the AddingItems state.
func New(id, currency, customerID string, now time.Time) *Order {
	return &Order{
		ID:         id,
		State:      StateAddingItems,
		Currency:   currency,
		CustomerID: customerID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Line returns the line with the given ID, or nil when absent.
func (o *Order) Line(lineID string) *Line {
	for i := range o.Lines {
		if o.Lines[i].ID == lineID {
			return &o.Lines[i]
		}
	}
	return nil
}

// LineByVariant returns the first line for the given variant whose custom
// fields match, or nil when absent.
func (o *Order) LineByVariant(variantID string, customFields map[string]string) *Line {
	for i := range o.Lines {
		l := &o.Lines[i]
		if l.VariantID == variantID && equalFields(l.CustomFields, customFields) {
			return l
		}
	}
	return nil
}

func equalFields(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// HasCoupon reports whether the given code is applied to the order.
func (o *Order) HasCoupon(code string) bool {
	for _, c := range o.CouponCodes {
		if c == code {
			return true
		}
	}
	return false
}

// PromotionExcluded reports whether the promotion is suppressed on this order.
func (o *Order) PromotionExcluded(promotionID string) bool {
	for _, id := range o.ExcludedPromotions {
		if id == promotionID {
			return true
		}
	}
	return false
}

// FulfillmentReady reports whether every line is assigned to a shipping line.
// Unassigned lines block the transition into the shipped states.
func (o *Order) FulfillmentReady() bool {
	for i := range o.Lines {
		if o.Lines[i].ShippingLineID == "" {
			return false
		}
	}
	return true
}

// record appends a history entry and bumps the updated timestamp.
func (o *Order) record(rec ModificationRecord) {
	o.History = append(o.History, rec)
	o.UpdatedAt = rec.Timestamp
}

// raise queues a domain event for publication after the mutation commits.
func (o *Order) raise(evt Event) {
	o.events = append(o.events, evt)
}

// TakeEvents returns the queued domain events and clears the queue. The
// service layer publishes them after the aggregate has been persisted.
func (o *Order) TakeEvents() []Event {
	evts := o.events
	o.events = nil
	return evts
}

// Repository defines persistence operations for order aggregates. The
// aggregate is hydrated and persisted whole; the core never issues partial
// queries.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, o *Order) error
}
