// Package events publishes committed ledger changes to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
	"github.com/boddenberg/finance-tracker-go/internal/infra/resilience"
	"github.com/boddenberg/finance-tracker-go/internal/port"
)

var tracer = otel.Tracer("events")

var (
	_ port.EventPublisher = (*AMQPPublisher)(nil)
	_ port.EventPublisher = Noop{}
)

// Noop drops every event. Used when AMQP_URL is empty.
type Noop struct{}

func (Noop) Publish(context.Context, domain.LedgerEvent) error { return nil }

// channel is the slice of *amqp.Channel the publisher needs.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher sends LedgerEvents to a durable topic exchange, routed by
// event type (e.g. "transaction.created").
type AMQPPublisher struct {
	conn     *amqp.Connection
	mu       sync.Mutex // amqp channels are not safe for concurrent publish
	ch       channel
	exchange string
	cb       *gobreaker.CircuitBreaker
	cfg      resilience.Config
	logger   *zap.Logger
}

// Dial connects to the broker and declares the exchange.
func Dial(url, exchange string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	p, err := newPublisher(ch, exchange, cb, cfg, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) (*AMQPPublisher, error) {
	err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPPublisher{ch: ch, exchange: exchange, cb: cb, cfg: cfg, logger: logger}, nil
}

// Publish sends one event through the circuit breaker with retries.
func (p *AMQPPublisher) Publish(ctx context.Context, event domain.LedgerEvent) error {
	ctx, span := tracer.Start(ctx, "Events.Publish")
	defer span.End()
	span.SetAttributes(
		attribute.String("event.type", string(event.Type)),
		attribute.String("user.id", event.UserID),
	)

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = resilience.RetryWithBackoff(ctx, p.cfg, func() error {
		_, cbErr := p.cb.Execute(func() (any, error) {
			return nil, p.send(ctx, string(event.Type), body, event.OccurredAt)
		})
		if resilience.IsOpen(cbErr) {
			return resilience.Permanent(cbErr)
		}
		return cbErr
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "amqp", Err: err}
	}

	p.logger.Debug("ledger event published",
		zap.String("type", string(event.Type)),
		zap.String("transaction_id", event.TransactionID),
		zap.String("exchange", p.exchange),
	)
	return nil
}

func (p *AMQPPublisher) send(ctx context.Context, key string, body []byte, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.ch.PublishWithContext(
		ctx,
		p.exchange, // exchange
		key,        // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    at,
			Body:         body,
		},
	)
}

// Close shuts the channel and connection.
func (p *AMQPPublisher) Close() error {
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
