package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
	"github.com/boddenberg/finance-tracker-go/internal/infra/memory"
	"github.com/boddenberg/finance-tracker-go/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-go/internal/service"
)

func TestDashboard_Aggregates(t *testing.T) {
	store := memory.New()
	newUser(t, store, "u1", "1000")
	txSvc := service.NewTransactionService(store, nil, domain.LookbackDays(30), fixedClock(), observability.NewMetrics(), zap.NewNop())
	ctx := context.Background()

	for _, req := range []*domain.TransactionRequest{
		{CategoryName: "SALARY", Name: "salary", Amount: amount("2000"), PaymentMode: "transfer"},
		{CategoryName: "OTHER_INCOME", Name: "gift", Amount: amount("150"), PaymentMode: "cash"},
		{CategoryName: "RENT", Name: "rent", Amount: amount("800"), PaymentMode: "transfer"},
		{CategoryName: "GROCERIES", Name: "market", Amount: amount("120"), PaymentMode: "card"},
		{CategoryName: "GROCERIES", Name: "bakery", Amount: amount("30"), PaymentMode: "card"},
	} {
		if _, err := txSvc.Create(ctx, "u1", req); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	svc := service.NewDashboardService(store, domain.LookbackDays(30), fixedClock())
	d, err := svc.Get(ctx, "u1", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if d.TransactionsCount != 5 || d.IncomeTransactionsCount != 2 || d.ExpenseTransactionsCount != 3 {
		t.Errorf("unexpected counts: %+v", d)
	}
	if !d.TotalSalaryIncome.Equal(dec("2000")) || !d.TotalOtherIncome.Equal(dec("150")) {
		t.Errorf("unexpected income split: salary %s other %s", d.TotalSalaryIncome, d.TotalOtherIncome)
	}
	if !d.TotalIncome.Equal(dec("2150")) || !d.TotalExpense.Equal(dec("950")) {
		t.Errorf("unexpected totals: income %s expense %s", d.TotalIncome, d.TotalExpense)
	}
	if !d.Balance.Equal(dec("2200")) {
		t.Errorf("expected balance 2200, got %s", d.Balance)
	}
	if len(d.ExpenseBreakdown) != 2 || d.ExpenseBreakdown[0].Category != domain.Rent {
		t.Fatalf("expected rent first in breakdown, got %+v", d.ExpenseBreakdown)
	}
	if g := d.ExpenseBreakdown[1]; g.TransactionCount != 2 || !g.TotalAmount.Equal(dec("150")) {
		t.Errorf("unexpected groceries stat: %+v", g)
	}
}

func TestDashboard_WindowExcludesOlderEntries(t *testing.T) {
	store := memory.New()
	newUser(t, store, "u1", "0")
	old := service.Clock(func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) })
	txSvc := service.NewTransactionService(store, nil, domain.LookbackDays(30), old, observability.NewMetrics(), zap.NewNop())
	if _, err := txSvc.Create(context.Background(), "u1", &domain.TransactionRequest{
		CategoryName: "SALARY", Name: "march", Amount: amount("10"), PaymentMode: "cash",
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	svc := service.NewDashboardService(store, domain.LookbackDays(30), fixedClock())
	d, err := svc.Get(context.Background(), "u1", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if d.TransactionsCount != 0 || !d.TotalIncome.IsZero() {
		t.Errorf("march entry must fall outside the default window, got %+v", d)
	}

	all, err := service.NewDashboardService(store, domain.AccountCreationDate(), fixedClock()).Get(context.Background(), "u1", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if all.TransactionsCount != 1 || all.FromDate != "2024-01-10" {
		t.Errorf("account-creation policy must include march, got %+v", all)
	}
}

func TestDashboard_UnknownUser(t *testing.T) {
	svc := service.NewDashboardService(memory.New(), domain.LookbackDays(30), fixedClock())

	_, err := svc.Get(context.Background(), "ghost", time.Time{}, time.Time{})
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
