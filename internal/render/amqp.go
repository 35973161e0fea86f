package render

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// DefaultExchange is the topic exchange series are published to.
	DefaultExchange = "opsdash.series"
	// RoutingPrefix prefixes the series name in every routing key.
	RoutingPrefix = "series."
)

// Channel is the part of *amqp.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes each rendered series to a topic exchange with
// routing key "series.<name>".
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  Channel
	exchange string
	logger   *slog.Logger
	now      func() time.Time
}

// DialAMQP connects to url and declares the exchange.
func DialAMQP(url, exchange string, logger *slog.Logger) (*AMQPPublisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}
	p := NewAMQPPublisher(ch, exchange, logger)
	p.conn = conn
	p.logger.Info("series publisher connected", "exchange", exchange)
	return p, nil
}

// NewAMQPPublisher wraps an open channel whose exchange already exists.
func NewAMQPPublisher(ch Channel, exchange string, logger *slog.Logger) *AMQPPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &AMQPPublisher{channel: ch, exchange: exchange, logger: logger, now: time.Now}
}

func (p *AMQPPublisher) Render(ctx context.Context, name string, data any) error {
	now := p.now()
	_, body, err := encode(name, data, now)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	key := RoutingPrefix + name
	err = p.channel.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    now,
		Body:         body,
	})
	if err != nil {
		p.logger.Error("failed to publish series", "routing_key", key, "error", err)
		return fmt.Errorf("publish %s: %w", key, err)
	}
	p.logger.Debug("series published", "routing_key", key, "size", len(body))
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Warn("error closing channel", "error", err)
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
