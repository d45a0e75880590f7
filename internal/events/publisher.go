package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Event names published to the exchange
const (
	EventStageTransitioned = "pipeline.stage_transitioned"
	EventCouponRedeemed    = "coupons.redeemed"
	EventCouponClaimed     = "coupons.claimed"
	EventOfferFeatured     = "offers.featured"
	EventLeadImported      = "leads.imported"
)

// Publisher pushes domain events onto an AMQP topic exchange.
// It is optional infrastructure: when disabled every publish is a no-op,
// and when the broker is down failures are logged and dropped. Consumers
// must tolerate missing events.
type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	enabled  bool
	logger   *zap.Logger
}

// NewDisabledPublisher returns a publisher that drops everything
func NewDisabledPublisher(logger *zap.Logger) *Publisher {
	return &Publisher{enabled: false, logger: logger}
}

// NewPublisher connects to the broker and declares the topic exchange
func NewPublisher(url, exchange string, logger *zap.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	logger.Info("event publisher connected",
		zap.String("exchange", exchange),
	)

	return &Publisher{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		enabled:  true,
		logger:   logger,
	}, nil
}

// Publish sends an event with the given routing key. Fire-and-forget:
// errors are logged, never returned to the caller's caller.
func (p *Publisher) Publish(ctx context.Context, routingKey string, payload interface{}) {
	if !p.enabled {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		p.logger.Warn("failed to marshal event payload",
			zap.String("routing_key", routingKey),
			zap.Error(err),
		)
		return
	}

	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(publishCtx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		p.logger.Warn("failed to publish event",
			zap.String("routing_key", routingKey),
			zap.Error(err),
		)
		return
	}

	p.logger.Debug("event published",
		zap.String("routing_key", routingKey),
	)
}

// Close releases the channel and connection
func (p *Publisher) Close() error {
	if !p.enabled {
		return nil
	}
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
