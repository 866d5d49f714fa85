package event

import (
	"context"

	"go.uber.org/zap"

	"github.com/xenking/orderflow/internal/domain/order"
)

var _ order.EventPublisher = (*LogPublisher)(nil)

// LogPublisher writes events to the log instead of a bus. Used in local
// development when no Kafka brokers are configured.
type LogPublisher struct {
	lg *zap.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(lg *zap.Logger) *LogPublisher {
	return &LogPublisher{lg: lg.Named("events")}
}

// Publish logs the event.
func (p *LogPublisher) Publish(_ context.Context, evt order.Event) error {
	p.lg.Info("domain event",
		zap.String("kind", evt.Kind()),
		zap.String("order_id", evt.Order()),
		zap.Any("event", evt))
	return nil
}
