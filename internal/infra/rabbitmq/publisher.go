package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Channel is the part of *amqp.Channel the publisher uses.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// EventPublisher sends extraction summary events to a topic exchange.
type EventPublisher struct {
	mu         sync.Mutex
	channel    Channel
	exchange   string
	routingKey string
	logger     *zap.Logger
}

type PublisherConfig struct {
	Exchange   string
	RoutingKey string
}

// Dial connects to the broker and opens the publisher channel. The returned
// connection is owned by the caller.
func Dial(url string, cfg PublisherConfig, logger *zap.Logger) (*amqp.Connection, *EventPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open publisher channel: %w", err)
	}

	pub, err := NewEventPublisher(ch, cfg, logger)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, pub, nil
}

func NewEventPublisher(ch Channel, cfg PublisherConfig, logger *zap.Logger) (*EventPublisher, error) {
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &EventPublisher{
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger,
	}, nil
}

// PublishEvent is safe for concurrent use; amqp channels are not.
func (p *EventPublisher) PublishEvent(ctx context.Context, msg []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.channel.PublishWithContext(ctx,
		p.exchange,
		p.routingKey,
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         msg,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
		},
	)
	if err != nil {
		return fmt.Errorf("publish to %s/%s: %w", p.exchange, p.routingKey, err)
	}
	p.logger.Debug("extraction event published", zap.String("routing_key", p.routingKey), zap.Int("bytes", len(msg)))
	return nil
}

func (p *EventPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel.Close()
}
