package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
	"github.com/boddenberg/finance-tracker-go/internal/infra/events"
	"github.com/boddenberg/finance-tracker-go/internal/infra/resilience"
)

type fakeChannel struct {
	mu         sync.Mutex
	declared   string
	kind       string
	failFirst  int
	calls      int
	published  []amqp.Publishing
	routingKey []string
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, _, _, _, _ bool, _ amqp.Table) error {
	f.declared, f.kind = name, kind
	return nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failFirst {
		return errors.New("channel closed")
	}
	f.published = append(f.published, msg)
	f.routingKey = append(f.routingKey, key)
	return nil
}

func (f *fakeChannel) Close() error { return nil }

func testEvent() domain.LedgerEvent {
	return domain.LedgerEvent{
		Type:          domain.EventTransactionCreated,
		UserID:        "u1",
		TransactionID: "t1",
		Amount:        decimal.RequireFromString("12.50"),
		Delta:         decimal.RequireFromString("-12.50"),
		Balance:       decimal.RequireFromString("87.50"),
		OccurredAt:    time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestAMQPPublisher_PublishesPersistentJSON(t *testing.T) {
	ch := &fakeChannel{}
	cfg := resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond}
	p, err := events.NewPublisherForTest(ch, "ledger.events", resilience.NewCircuitBreaker("amqp", zap.NewNop()), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ch.declared != "ledger.events" || ch.kind != "topic" {
		t.Errorf("expected topic exchange ledger.events, got %s/%s", ch.declared, ch.kind)
	}

	if err := p.Publish(context.Background(), testEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(ch.published) != 1 {
		t.Fatalf("expected 1 message, got %d", len(ch.published))
	}
	msg := ch.published[0]
	if msg.DeliveryMode != amqp.Persistent || msg.ContentType != "application/json" {
		t.Errorf("unexpected publishing props: %+v", msg)
	}
	if ch.routingKey[0] != "transaction.created" {
		t.Errorf("expected routing key transaction.created, got %s", ch.routingKey[0])
	}

	var decoded domain.LedgerEvent
	if err := json.Unmarshal(msg.Body, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !decoded.Delta.Equal(decimal.RequireFromString("-12.50")) || decoded.TransactionID != "t1" {
		t.Errorf("unexpected body: %+v", decoded)
	}
}

func TestAMQPPublisher_RetriesTransientFailure(t *testing.T) {
	ch := &fakeChannel{failFirst: 2}
	cfg := resilience.Config{MaxRetries: 3, InitialBackoff: time.Millisecond}
	p, _ := events.NewPublisherForTest(ch, "ledger.events", resilience.NewCircuitBreaker("amqp", zap.NewNop()), cfg)

	if err := p.Publish(context.Background(), testEvent()); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if ch.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", ch.calls)
	}
}

func TestAMQPPublisher_GivesUpAsExternalServiceError(t *testing.T) {
	ch := &fakeChannel{failFirst: 100}
	cfg := resilience.Config{MaxRetries: 1, InitialBackoff: time.Millisecond}
	p, _ := events.NewPublisherForTest(ch, "ledger.events", resilience.NewCircuitBreaker("amqp", zap.NewNop()), cfg)

	err := p.Publish(context.Background(), testEvent())
	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) || ext.Service != "amqp" {
		t.Fatalf("expected ErrExternalService(amqp), got %v", err)
	}
}

func TestNoop_Publish(t *testing.T) {
	if err := (events.Noop{}).Publish(context.Background(), testEvent()); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestAMQPPublisher_OpenBreakerSkipsRetries(t *testing.T) {
	ch := &fakeChannel{failFirst: 100}
	cb := resilience.NewCircuitBreaker("amqp", zap.NewNop())
	tripper, _ := events.NewPublisherForTest(ch, "ledger.events", cb, resilience.Config{MaxRetries: 0})
	for i := 0; i < 5; i++ {
		_ = tripper.Publish(context.Background(), testEvent())
	}
	if ch.calls != 5 {
		t.Fatalf("expected 5 attempts before the breaker opens, got %d", ch.calls)
	}

	p, _ := events.NewPublisherForTest(ch, "ledger.events", cb, resilience.Config{MaxRetries: 3, InitialBackoff: time.Second})
	start := time.Now()
	err := p.Publish(context.Background(), testEvent())

	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) || !resilience.IsOpen(err) {
		t.Fatalf("expected ErrExternalService wrapping the open breaker, got %v", err)
	}
	if ch.calls != 5 {
		t.Errorf("expected no channel call while open, got %d total", ch.calls)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Errorf("expected no backoff wait while open")
	}
}
