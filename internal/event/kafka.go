// Package event delivers committed order domain events to external buses.
package event

import (
	"context"
	"encoding/json"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/orderflow/internal/domain/order"
)

var _ order.EventPublisher = (*KafkaPublisher)(nil)

// envelope is the wire format of a published event.
type envelope struct {
	Kind    string      `json:"kind"`
	OrderID string      `json:"order_id"`
	Payload order.Event `json:"payload"`
}

// KafkaPublisher publishes order events to a Kafka topic, keyed by order ID
// so all events of one order land on the same partition in order.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
	lg       *zap.Logger
}

// NewKafkaPublisher creates a producer connected to the given brokers. The
// returned publisher owns the producer; call Close when done.
func NewKafkaPublisher(brokers, topic string, lg *zap.Logger) (*KafkaPublisher, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create kafka producer")
	}

	p := &KafkaPublisher{
		producer: producer,
		topic:    topic,
		lg:       lg.Named("kafka"),
	}
	go p.deliveryReports()
	return p, nil
}

// deliveryReports drains the producer's event channel, logging failed
// deliveries. Publication is best-effort from the order core's point of
// view; a failed delivery never rolls back a committed mutation.
func (p *KafkaPublisher) deliveryReports() {
	for e := range p.producer.Events() {
		m, ok := e.(*kafka.Message)
		if !ok {
			continue
		}
		if m.TopicPartition.Error != nil {
			p.lg.Warn("event delivery failed",
				zap.String("key", string(m.Key)),
				zap.Error(m.TopicPartition.Error))
		}
	}
}

// Publish enqueues the event for asynchronous delivery.
func (p *KafkaPublisher) Publish(_ context.Context, evt order.Event) error {
	value, err := json.Marshal(envelope{
		Kind:    evt.Kind(),
		OrderID: evt.Order(),
		Payload: evt,
	})
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}

	return p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
		Key:            []byte(evt.Order()),
		Value:          value,
	}, nil)
}

// Close flushes outstanding messages and shuts the producer down.
func (p *KafkaPublisher) Close() {
	p.producer.Flush(5_000)
	p.producer.Close()
}
