package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
	"github.com/boddenberg/finance-tracker-go/internal/infra/memory"
	"github.com/boddenberg/finance-tracker-go/internal/service"
)

// --- Fixtures ---

var fixedNow = time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

func fixedClock() service.Clock {
	return func() time.Time { return fixedNow }
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func amount(s string) decimal.NullDecimal { return decimal.NewNullDecimal(dec(s)) }

func newUser(t *testing.T, s *memory.Store, id, balance string) {
	t.Helper()
	err := s.CreateUser(context.Background(), &domain.User{
		ID:        id,
		Username:  "user-" + id,
		Balance:   dec(balance),
		CreatedAt: time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
}

func balanceOf(t *testing.T, s *memory.Store, id string) decimal.Decimal {
	t.Helper()
	u, err := s.GetUserByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	return u.Balance
}

func assertBalance(t *testing.T, s *memory.Store, id, want string) {
	t.Helper()
	if got := balanceOf(t, s, id); !got.Equal(dec(want)) {
		t.Fatalf("balance of %s = %s, want %s", id, got, want)
	}
}

// --- Tracing ---

var (
	spansOnce sync.Once
	spans     *tracetest.SpanRecorder
)

// recordSpans installs a recording tracer provider once for the package.
// Package-level tracers delegate to it from then on.
func recordSpans() *tracetest.SpanRecorder {
	spansOnce.Do(func() {
		spans = tracetest.NewSpanRecorder()
		otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans)))
	})
	return spans
}

// spanAttrs returns the attributes of the last ended span with that name.
func spanAttrs(t *testing.T, rec *tracetest.SpanRecorder, name string) map[attribute.Key]string {
	t.Helper()
	ended := rec.Ended()
	for i := len(ended) - 1; i >= 0; i-- {
		if ended[i].Name() != name {
			continue
		}
		out := map[attribute.Key]string{}
		for _, kv := range ended[i].Attributes() {
			out[kv.Key] = kv.Value.Emit()
		}
		return out
	}
	t.Fatalf("no ended span named %s", name)
	return nil
}

// --- Mocks ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.LedgerEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev domain.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Types() []domain.LedgerEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.LedgerEventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}
