package order

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrConflictingAssignment signals a strategy bug: two shipping lines
// claimed the same order line. The partition must be deterministic and
// disjoint, so this aborts the mutation loudly.
var ErrConflictingAssignment = errors.New("order line claimed by two shipping lines")

// ShippingAssignmentStrategy decides, per shipping line, which order lines
// it covers. The returned map keys are shipping line IDs; the values are the
// claimed order line IDs. Lines not claimed by any shipping line remain
// unassigned and block fulfillment readiness.
type ShippingAssignmentStrategy interface {
	Assign(ctx context.Context, o *Order) (map[string][]string, error)
}

// ShippingLineClassifier reports whether a shipping line carries only
// digital goods.
type ShippingLineClassifier func(sl ShippingLine) bool

// DefaultShippingAssignment partitions lines between digital-only and
// physical shipping lines: each line is claimed by the first shipping line
// (in order) whose classification matches the line's Digital flag.
type DefaultShippingAssignment struct {
	// IsDigitalOnly classifies a shipping line. When nil, shipping lines
	// with method IDs prefixed "digital" are treated as digital-only.
	IsDigitalOnly ShippingLineClassifier
}

// Assign implements ShippingAssignmentStrategy.
func (s DefaultShippingAssignment) Assign(_ context.Context, o *Order) (map[string][]string, error) {
	classify := s.IsDigitalOnly
	if classify == nil {
		classify = func(sl ShippingLine) bool {
			return len(sl.MethodID) >= 7 && sl.MethodID[:7] == "digital"
		}
	}

	out := make(map[string][]string, len(o.ShippingLines))
	for i := range o.Lines {
		l := &o.Lines[i]
		for j := range o.ShippingLines {
			sl := &o.ShippingLines[j]
			if classify(*sl) == l.Digital {
				out[sl.ID] = append(out[sl.ID], l.ID)
				break
			}
		}
	}
	return out, nil
}

// reassignShipping runs the assignment strategy and applies its partition to
// the lines and shipping lines. Every line belongs to at most one shipping
// line afterwards.
func (l *Ledger) reassignShipping(ctx context.Context, o *Order) error {
	if l.strategy == nil || len(o.ShippingLines) == 0 {
		return nil
	}

	partition, err := l.strategy.Assign(ctx, o)
	if err != nil {
		return errors.Wrap(err, "shipping assignment")
	}

	claimed := make(map[string]string, len(o.Lines))
	for slID, lineIDs := range partition {
		for _, lineID := range lineIDs {
			if prev, ok := claimed[lineID]; ok && prev != slID {
				return errors.Wrapf(ErrConflictingAssignment, "line %s", lineID)
			}
			claimed[lineID] = slID
		}
	}

	for i := range o.Lines {
		o.Lines[i].ShippingLineID = claimed[o.Lines[i].ID]
	}
	for i := range o.ShippingLines {
		sl := &o.ShippingLines[i]
		sl.LineIDs = sl.LineIDs[:0]
		// Preserve the order's line ordering inside each shipping line.
		for j := range o.Lines {
			if claimed[o.Lines[j].ID] == sl.ID {
				sl.LineIDs = append(sl.LineIDs, o.Lines[j].ID)
			}
		}
	}
	return nil
}
