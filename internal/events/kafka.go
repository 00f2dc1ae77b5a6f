// Package events publishes domain events to Kafka. Publishing is best
// effort: placements stay durable even when the broker is unavailable, so
// callers log publish errors instead of propagating them.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"

	"storecore/internal/domain/order"
)

var _ order.Publisher = (*KafkaPublisher)(nil)

// orderPlacedEvent is the wire form of an order.placed message.
type orderPlacedEvent struct {
	OrderID    string           `json:"order_id"`
	CustomerID string           `json:"customer_id"`
	Total      string           `json:"total"`
	Items      []orderItemEvent `json:"items"`
	PlacedAt   time.Time        `json:"placed_at"`
}

type orderItemEvent struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

// KafkaPublisher emits order lifecycle events to a single Kafka topic,
// keyed by order ID so all events for one order land on the same partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// OrderPlaced publishes an order.placed event for the given order.
func (p *KafkaPublisher) OrderPlaced(ctx context.Context, o *order.Order) error {
	ev := orderPlacedEvent{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		Total:      o.Total().StringFixed(2),
		Items:      make([]orderItemEvent, len(o.Items)),
		PlacedAt:   o.CreatedAt,
	}
	for i, it := range o.Items {
		ev.Items[i] = orderItemEvent{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price.StringFixed(2),
		}
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(o.ID),
		Value: payload,
	})
	if err != nil {
		return errors.Wrap(err, "write message")
	}
	return nil
}

// Close flushes pending messages and releases the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
