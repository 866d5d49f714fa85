package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/orderflow/internal/domain/promotion"
)

var _ promotion.Repository = (*PromotionRepository)(nil)

// PromotionRepository implements promotion.Repository backed by PostgreSQL.
// Rows are declarative configuration: discount_type plus value columns are
// mapped onto the package's condition and action strategy values.
type PromotionRepository struct {
	pool *pgxpool.Pool
}

// NewPromotionRepository returns a PromotionRepository that uses the given
// pool.
func NewPromotionRepository(pool *pgxpool.Pool) *PromotionRepository {
	return &PromotionRepository{pool: pool}
}

const promotionColumns = `id, name, coupon_code, discount_type, value,
	min_subtotal, min_quantity, priority, starts_at, ends_at,
	usage_limit, per_customer_limit, uses, enabled`

// Active returns all enabled promotions.
func (r *PromotionRepository) Active(ctx context.Context) ([]*promotion.Promotion, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+promotionColumns+` FROM promotions WHERE enabled`)
	if err != nil {
		return nil, fmt.Errorf("listing promotions: %w", err)
	}
	defer rows.Close()

	var out []*promotion.Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// FindByCoupon resolves a coupon code to its promotion, matching either the
// promotion's own code or a bulk-imported campaign code. Lookup is
// case-insensitive.
func (r *PromotionRepository) FindByCoupon(ctx context.Context, code string) (*promotion.Promotion, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+promotionColumns+` FROM promotions
		WHERE UPPER(coupon_code) = UPPER($1)
		UNION
		SELECT p.id, p.name, p.coupon_code, p.discount_type, p.value,
			p.min_subtotal, p.min_quantity, p.priority, p.starts_at, p.ends_at,
			p.usage_limit, p.per_customer_limit, p.uses, p.enabled
		FROM promotions p
		JOIN coupon_codes c ON c.promotion_id = p.id
		WHERE UPPER(c.code) = UPPER($1)
		LIMIT 1`, code)

	p, err := scanPromotion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promotion.ErrCouponInvalid
		}
		return nil, fmt.Errorf("finding coupon %q: %w", code, err)
	}
	return p, nil
}

// IncrementUses accounts one redemption globally and, when a customer is
// known, per customer.
func (r *PromotionRepository) IncrementUses(ctx context.Context, promotionID, customerID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`UPDATE promotions SET uses = uses + 1 WHERE id = $1`, promotionID); err != nil {
		return fmt.Errorf("incrementing uses for %q: %w", promotionID, err)
	}
	if customerID != "" {
		if _, err := tx.Exec(ctx, `
			INSERT INTO promotion_usage (promotion_id, customer_id, uses)
			VALUES ($1, $2, 1)
			ON CONFLICT (promotion_id, customer_id) DO UPDATE SET uses = promotion_usage.uses + 1`,
			promotionID, customerID); err != nil {
			return fmt.Errorf("incrementing customer uses for %q: %w", promotionID, err)
		}
	}
	return tx.Commit(ctx)
}

// CustomerUses returns how often a customer redeemed the promotion.
func (r *PromotionRepository) CustomerUses(ctx context.Context, promotionID, customerID string) (int, error) {
	var uses int
	err := r.pool.QueryRow(ctx, `
		SELECT uses FROM promotion_usage WHERE promotion_id = $1 AND customer_id = $2`,
		promotionID, customerID).Scan(&uses)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("customer uses for %q: %w", promotionID, err)
	}
	return uses, nil
}

func scanPromotion(row pgx.Row) (*promotion.Promotion, error) {
	var (
		p                promotion.Promotion
		discountType     string
		value            decimal.Decimal
		minSubtotal      int64
		minQuantity      int
		startsAt, endsAt *time.Time
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.CouponCode, &discountType, &value,
		&minSubtotal, &minQuantity, &p.Priority, &startsAt, &endsAt,
		&p.UsageLimit, &p.PerCustomerLimit, &p.Uses, &p.Enabled,
	)
	if err != nil {
		return nil, err
	}
	p.StartsAt = startsAt
	p.EndsAt = endsAt

	if minSubtotal > 0 {
		p.Conditions = append(p.Conditions, promotion.MinimumSubtotal{Amount: minSubtotal})
	}
	if minQuantity > 0 {
		p.Conditions = append(p.Conditions, promotion.MinimumQuantity{Count: minQuantity})
	}

	switch discountType {
	case "percentage":
		p.Actions = []promotion.Action{promotion.PercentageDiscount{Percent: value}}
	case "fixed":
		p.Actions = []promotion.Action{promotion.FixedDiscount{Amount: value.RoundBank(0).IntPart()}}
	case "free_lowest":
		p.Actions = []promotion.Action{promotion.FreeLowestLine{}}
	default:
		return nil, fmt.Errorf("promotion %q: unsupported discount type %q", p.ID, discountType)
	}
	return &p, nil
}
