// Package events publishes order lifecycle notifications to RabbitMQ for
// downstream consumers (notifications, fulfillment). Publishing is
// fire-and-forget: the order is already persisted by the time an event
// goes out, and broker trouble must never fail a request.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/rosegold-gallery/storefront/internal/order"
)

const (
	routingKeyCreated       = "order.created"
	routingKeyStatusChanged = "order.status_changed"
)

type OrderEvent struct {
	Type         string    `json:"type"`
	OrderID      string    `json:"order_id"`
	OwnerID      string    `json:"owner_id"`
	TrackingCode string    `json:"tracking_code"`
	Status       string    `json:"status"`
	OldStatus    string    `json:"old_status,omitempty"`
	TotalAmount  float64   `json:"total_amount"`
	Occurred     time.Time `json:"occurred"`
}

type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// NewPublisher connects to the broker and declares the order exchange.
func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("events: failed to connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("events: failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("events: failed to declare exchange %s: %w", exchange, err)
	}

	return &Publisher{conn: conn, channel: ch, exchange: exchange}, nil
}

func (p *Publisher) OrderCreated(ctx context.Context, o *order.Order) {
	p.publish(ctx, routingKeyCreated, OrderEvent{
		Type:         routingKeyCreated,
		OrderID:      o.ID.String(),
		OwnerID:      o.OwnerID.String(),
		TrackingCode: o.TrackingCode,
		Status:       o.Status.String(),
		TotalAmount:  o.TotalAmount,
		Occurred:     time.Now().UTC(),
	})
}

func (p *Publisher) OrderStatusChanged(ctx context.Context, o *order.Order, from order.Status) {
	p.publish(ctx, routingKeyStatusChanged, OrderEvent{
		Type:         routingKeyStatusChanged,
		OrderID:      o.ID.String(),
		OwnerID:      o.OwnerID.String(),
		TrackingCode: o.TrackingCode,
		Status:       o.Status.String(),
		OldStatus:    from.String(),
		TotalAmount:  o.TotalAmount,
		Occurred:     time.Now().UTC(),
	})
}

func (p *Publisher) publish(ctx context.Context, key string, event OrderEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("routing_key", key).Msg("events: failed to encode event")
		return
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		key,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			ContentType:  "application/json",
			Body:         body,
		},
	)
	if err != nil {
		log.Error().Err(err).Str("routing_key", key).Str("order_id", event.OrderID).Msg("events: failed to publish event")
		return
	}

	log.Debug().Str("routing_key", key).Str("order_id", event.OrderID).Msg("events: event published")
}

func (p *Publisher) Close() {
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			log.Warn().Err(err).Msg("events: failed to close channel")
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			log.Warn().Err(err).Msg("events: failed to close connection")
		}
	}
}
