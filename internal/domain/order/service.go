package order

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("orderflow.order")

// Service orchestrates the engine and ledger over persisted aggregates. It
// serializes mutations per order: no two mutating operations on the same
// order interleave their read-modify-write of totals.
type Service struct {
	orders    Repository
	engine    *ProcessEngine
	ledger    *Ledger
	publisher EventPublisher
	lg        *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	now   func() time.Time
	newID func() string
}

// NewService creates the order service.
func NewService(
	orders Repository,
	engine *ProcessEngine,
	ledger *Ledger,
	publisher EventPublisher,
	lg *zap.Logger,
) *Service {
	return &Service{
		orders:    orders,
		engine:    engine,
		ledger:    ledger,
		publisher: publisher,
		lg:        lg.Named("orders"),
		locks:     make(map[string]*sync.Mutex),
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// lock returns the mutex serializing writes to one order.
func (s *Service) lock(orderID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.locks[orderID]
	if !ok {
		m = &sync.Mutex{}
		s.locks[orderID] = m
	}
	return m
}

// Create starts a new draft order for the customer.
func (s *Service) Create(ctx context.Context, currency, customerID string) (*Order, error) {
	if currency == "" {
		currency = "USD"
	}
	o := New(s.newID(), currency, customerID, s.now())
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	return o, nil
}

// Get fetches an order aggregate.
func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	return s.orders.Get(ctx, orderID)
}

// AddItem adds an item to the order and persists the result.
func (s *Service) AddItem(ctx context.Context, orderID string, req AddItemRequest) (*Order, *Line, error) {
	var line *Line
	o, err := s.mutate(ctx, orderID, func(o *Order) error {
		var err error
		line, err = s.ledger.AddItem(ctx, o, req)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return o, line, nil
}

// AdjustLine changes a line's quantity and persists the result.
func (s *Service) AdjustLine(ctx context.Context, orderID, lineID string, quantity int, actor string) (*Order, error) {
	return s.mutate(ctx, orderID, func(o *Order) error {
		_, err := s.ledger.AdjustLine(ctx, o, lineID, quantity, actor)
		return err
	})
}

// AdjustLinePrice overrides a line's unit price while the order is in
// Modifying, then persists the result.
func (s *Service) AdjustLinePrice(ctx context.Context, orderID, lineID string, unitPrice int64, actor string) (*Order, error) {
	return s.mutate(ctx, orderID, func(o *Order) error {
		_, err := s.ledger.AdjustLinePrice(ctx, o, lineID, unitPrice, actor)
		return err
	})
}

// RemoveLine removes a line and persists the result.
func (s *Service) RemoveLine(ctx context.Context, orderID, lineID, actor string) (*Order, error) {
	return s.mutate(ctx, orderID, func(o *Order) error {
		return s.ledger.RemoveLine(ctx, o, lineID, actor)
	})
}

// ApplyCoupon applies a coupon code and persists the result.
func (s *Service) ApplyCoupon(ctx context.Context, orderID, code, actor string) (*Order, error) {
	return s.mutate(ctx, orderID, func(o *Order) error {
		return s.ledger.ApplyCoupon(ctx, o, code, actor)
	})
}

// RemoveCoupon removes a coupon code and persists the result.
func (s *Service) RemoveCoupon(ctx context.Context, orderID, code, actor string) (*Order, error) {
	return s.mutate(ctx, orderID, func(o *Order) error {
		return s.ledger.RemoveCoupon(ctx, o, code, actor)
	})
}

// SetShippingLines replaces the order's shipping lines and persists the
// result.
func (s *Service) SetShippingLines(ctx context.Context, orderID string, lines []ShippingLine) (*Order, error) {
	return s.mutate(ctx, orderID, func(o *Order) error {
		return s.ledger.SetShippingLines(ctx, o, lines)
	})
}

// Transition moves the order to the target state and persists the result.
func (s *Service) Transition(ctx context.Context, orderID string, target State, actor string) (*Order, error) {
	return s.mutate(ctx, orderID, func(o *Order) error {
		return s.engine.Transition(ctx, o, target, actor)
	})
}

// mutate loads the order under its lock, applies fn, persists and publishes
// the raised events. Events are best-effort: a publish failure is logged,
// the committed mutation stands.
func (s *Service) mutate(ctx context.Context, orderID string, fn func(o *Order) error) (*Order, error) {
	ctx, span := tracer.Start(ctx, "order.mutate")
	span.SetAttributes(attribute.String("order.id", orderID))
	defer span.End()

	m := s.lock(orderID)
	m.Lock()
	defer m.Unlock()

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %s", orderID)
	}

	if err := fn(o); err != nil {
		return nil, err
	}

	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrapf(err, "update order %s", orderID)
	}

	if s.publisher != nil {
		for _, evt := range o.TakeEvents() {
			if err := s.publisher.Publish(ctx, evt); err != nil {
				s.lg.Warn("publish event",
					zap.String("kind", evt.Kind()),
					zap.String("order_id", evt.Order()),
					zap.Error(err))
			}
		}
	}
	return o, nil
}
