package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
	"github.com/boddenberg/finance-tracker-go/internal/infra/memory"
	"github.com/boddenberg/finance-tracker-go/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-go/internal/port"
	"github.com/boddenberg/finance-tracker-go/internal/service"
)

// --- Mocks ---

// failingLedger fails every unit of work touching failUser.
type failingLedger struct {
	*memory.Store
	failUser string
}

func (f *failingLedger) WithinTx(ctx context.Context, fn func(ctx context.Context, tx port.LedgerTx) error) error {
	return f.Store.WithinTx(ctx, func(ctx context.Context, tx port.LedgerTx) error {
		return fn(ctx, &failingTx{LedgerTx: tx, failUser: f.failUser})
	})
}

type failingTx struct {
	port.LedgerTx
	failUser string
}

func (f *failingTx) LockUser(ctx context.Context, userID string) (*domain.User, error) {
	if userID == f.failUser {
		return nil, errors.New("row lock timeout")
	}
	return f.LedgerTx.LockUser(ctx, userID)
}

// --- Helpers ---

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func categoryOf(t *testing.T, name domain.CategoryName) domain.Category {
	t.Helper()
	typ, ok := domain.TypeOf(name)
	if !ok {
		t.Fatalf("unknown category %s", name)
	}
	return domain.Category{Name: name, Type: typ}
}

func newRule(t *testing.T, s *memory.Store, id, userID string, cat domain.CategoryName, amt string, freq domain.Frequency, next time.Time) {
	t.Helper()
	err := s.CreateRecurring(context.Background(), &domain.RecurringTransaction{
		ID:          id,
		UserID:      userID,
		Category:    categoryOf(t, cat),
		Name:        "rule " + id,
		Amount:      dec(amt),
		Frequency:   freq,
		NextRunDate: next,
	})
	if err != nil {
		t.Fatalf("create rule: %v", err)
	}
}

func nextRunOf(t *testing.T, s *memory.Store, userID, id string) time.Time {
	t.Helper()
	rt, err := s.GetRecurring(context.Background(), userID, id)
	if err != nil {
		t.Fatalf("get rule: %v", err)
	}
	return rt.NextRunDate
}

// --- Tests ---

func TestProcessor_FiresDueRule(t *testing.T) {
	store := memory.New()
	newUser(t, store, "u1", "1000")
	newRule(t, store, "r1", "u1", domain.Rent, "400", domain.Weekly, date(2024, 6, 10))
	newRule(t, store, "r2", "u1", domain.Salary, "50", domain.Monthly, date(2024, 7, 1))
	pub := &recordingPublisher{}
	metrics := observability.NewMetrics()
	p := service.NewRecurringProcessor(store, pub, 4, fixedClock(), metrics, zap.NewNop())

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Due != 1 || res.Fired != 1 || res.Failed != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.ProcessingDate != "2024-06-15" {
		t.Errorf("expected processing date 2024-06-15, got %s", res.ProcessingDate)
	}

	assertBalance(t, store, "u1", "600")
	if got := nextRunOf(t, store, "u1", "r1"); !got.Equal(date(2024, 6, 17)) {
		t.Errorf("expected next run 2024-06-17, got %v", got)
	}
	if got := nextRunOf(t, store, "u1", "r2"); !got.Equal(date(2024, 7, 1)) {
		t.Errorf("rule not due must be untouched, got %v", got)
	}

	entries, err := store.ListTransactions(context.Background(), domain.TransactionFilter{
		UserID: "u1", Start: date(2024, 6, 15), End: date(2024, 6, 16),
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one automated entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Name != "Automated by: rule r1" || e.PaymentMode != e.Name || e.Note != domain.AutomatedNote {
		t.Errorf("unexpected automated entry: %+v", e)
	}
	if !strings.HasPrefix(e.Name, domain.AutomatedPrefix) {
		t.Errorf("expected automated prefix on %q", e.Name)
	}

	if types := pub.Types(); len(types) != 1 || types[0] != domain.EventRecurringFired {
		t.Errorf("expected one recurring.fired event, got %v", types)
	}
	if stats := metrics.RecurringSnapshot(); stats.Fired != 1 || stats.Runs != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestProcessor_SecondRunSameDayIsNoop(t *testing.T) {
	store := memory.New()
	newUser(t, store, "u1", "0")
	newRule(t, store, "r1", "u1", domain.Salary, "100", domain.Daily, date(2024, 6, 15))
	p := service.NewRecurringProcessor(store, &recordingPublisher{}, 2, fixedClock(), observability.NewMetrics(), zap.NewNop())

	for i := 0; i < 2; i++ {
		if _, err := p.Run(context.Background()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	assertBalance(t, store, "u1", "100")
	if got := nextRunOf(t, store, "u1", "r1"); !got.Equal(date(2024, 6, 16)) {
		t.Errorf("expected next run 2024-06-16, got %v", got)
	}
}

func TestProcessor_OverdueRuleCatchesUpOncePerRun(t *testing.T) {
	store := memory.New()
	newUser(t, store, "u1", "0")
	// three months behind
	newRule(t, store, "r1", "u1", domain.Salary, "10", domain.Monthly, date(2024, 3, 15))
	p := service.NewRecurringProcessor(store, &recordingPublisher{}, 1, fixedClock(), observability.NewMetrics(), zap.NewNop())

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	assertBalance(t, store, "u1", "10")
	if got := nextRunOf(t, store, "u1", "r1"); !got.Equal(date(2024, 6, 16)) {
		t.Errorf("expected next run floored to 2024-06-16, got %v", got)
	}
}

func TestProcessor_FailingRuleDoesNotBlockOthers(t *testing.T) {
	mem := memory.New()
	newUser(t, mem, "good", "100")
	newUser(t, mem, "bad", "100")
	newRule(t, mem, "r-good", "good", domain.Groceries, "30", domain.Weekly, date(2024, 6, 14))
	newRule(t, mem, "r-bad", "bad", domain.Groceries, "30", domain.Weekly, date(2024, 6, 14))
	metrics := observability.NewMetrics()
	p := service.NewRecurringProcessor(&failingLedger{Store: mem, failUser: "bad"}, &recordingPublisher{}, 2, fixedClock(), metrics, zap.NewNop())

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("a failing rule must not fail the batch, got %v", err)
	}
	if res.Fired != 1 || res.Failed != 1 {
		t.Fatalf("expected 1 fired and 1 failed, got %+v", res)
	}

	assertBalance(t, mem, "good", "70")
	assertBalance(t, mem, "bad", "100")
	if got := nextRunOf(t, mem, "bad", "r-bad"); !got.Equal(date(2024, 6, 14)) {
		t.Errorf("failed rule must keep its date, got %v", got)
	}
	if stats := metrics.RecurringSnapshot(); stats.Failed != 1 {
		t.Errorf("expected 1 failed in stats, got %+v", stats)
	}
}

func TestProcessor_NothingDue(t *testing.T) {
	store := memory.New()
	newUser(t, store, "u1", "0")
	p := service.NewRecurringProcessor(store, nil, 1, fixedClock(), observability.NewMetrics(), zap.NewNop())

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Due != 0 || res.Fired != 0 {
		t.Errorf("unexpected result: %+v", res)
	}
}
