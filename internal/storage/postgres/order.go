package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/orderflow/internal/domain/order"
)

// ErrOrderNotFound is returned when the requested order does not exist.
var ErrOrderNotFound = errors.New("order not found")

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. The
// aggregate's owned collections (lines, shipping lines, coupons, history)
// are serialized to JSONB columns; the aggregate is always read and written
// whole.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

const orderColumns = `id, state, resume_state, currency, customer_id,
	lines, shipping_lines, coupon_codes, excluded_promotions, history,
	subtotal, tax, shipping, discount, grand_total, created_at, updated_at`

// Create persists a new order aggregate.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	doc, err := marshalOrder(o)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		o.ID, string(o.State), string(o.ResumeState), o.Currency, o.CustomerID,
		doc.lines, doc.shippingLines, doc.couponCodes, doc.excluded, doc.history,
		o.Totals.Subtotal, o.Totals.Tax, o.Totals.Shipping, o.Totals.Discount, o.Totals.GrandTotal,
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// Get hydrates a whole order aggregate.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)

	var (
		o                                            order.Order
		state, resumeState                           string
		lines, shippingLines, coupons, excl, history []byte
	)
	err := row.Scan(
		&o.ID, &state, &resumeState, &o.Currency, &o.CustomerID,
		&lines, &shippingLines, &coupons, &excl, &history,
		&o.Totals.Subtotal, &o.Totals.Tax, &o.Totals.Shipping, &o.Totals.Discount, &o.Totals.GrandTotal,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o.State = order.State(state)
	o.ResumeState = order.State(resumeState)
	for dst, src := range map[any][]byte{
		&o.Lines:              lines,
		&o.ShippingLines:      shippingLines,
		&o.CouponCodes:        coupons,
		&o.ExcludedPromotions: excl,
		&o.History:            history,
	} {
		if err := json.Unmarshal(src, dst); err != nil {
			return nil, fmt.Errorf("decoding order %q: %w", id, err)
		}
	}
	return &o, nil
}

// Update persists a mutated order aggregate.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	doc, err := marshalOrder(o)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET
			state = $2, resume_state = $3,
			lines = $4, shipping_lines = $5, coupon_codes = $6,
			excluded_promotions = $7, history = $8,
			subtotal = $9, tax = $10, shipping = $11, discount = $12, grand_total = $13,
			updated_at = $14
		WHERE id = $1`,
		o.ID, string(o.State), string(o.ResumeState),
		doc.lines, doc.shippingLines, doc.couponCodes, doc.excluded, doc.history,
		o.Totals.Subtotal, o.Totals.Tax, o.Totals.Shipping, o.Totals.Discount, o.Totals.GrandTotal,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

type orderDoc struct {
	lines, shippingLines, couponCodes, excluded, history []byte
}

func marshalOrder(o *order.Order) (*orderDoc, error) {
	var doc orderDoc
	for name, f := range map[string]struct {
		dst *[]byte
		src any
	}{
		"lines":               {&doc.lines, emptySlice(o.Lines)},
		"shipping_lines":      {&doc.shippingLines, emptySlice(o.ShippingLines)},
		"coupon_codes":        {&doc.couponCodes, emptySlice(o.CouponCodes)},
		"excluded_promotions": {&doc.excluded, emptySlice(o.ExcludedPromotions)},
		"history":             {&doc.history, emptySlice(o.History)},
	} {
		b, err := json.Marshal(f.src)
		if err != nil {
			return nil, fmt.Errorf("marshaling order %s: %w", name, err)
		}
		*f.dst = b
	}
	return &doc, nil
}

// emptySlice keeps JSONB columns as [] instead of null.
func emptySlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
