package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
	"github.com/boddenberg/finance-tracker-go/internal/port"
)

var dashboardTracer = otel.Tracer("service/dashboard")

// DashboardStore is what DashboardService needs from persistence.
type DashboardStore interface {
	port.ReportStore
	port.UserStore
}

// DashboardService aggregates a user's activity over a normalized range.
type DashboardService struct {
	store  DashboardStore
	policy domain.FloorPolicy
	clock  Clock
}

// NewDashboardService creates a new dashboard service.
func NewDashboardService(store DashboardStore, policy domain.FloorPolicy, clock Clock) *DashboardService {
	return &DashboardService{store: store, policy: policy, clock: clock}
}

// Get runs the aggregation queries concurrently. Zero from/to mean absent.
func (s *DashboardService) Get(ctx context.Context, userID string, from, to time.Time) (*domain.DashboardResponse, error) {
	ctx, span := dashboardTracer.Start(ctx, "DashboardService.Get")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	rng := domain.NormalizeRange(from, to, s.policy, user.CreatedAt, s.clock())
	start, end := rng.Start(), rng.End()
	window := func(t domain.CategoryType, n domain.CategoryName) domain.AggregateQuery {
		return domain.AggregateQuery{UserID: userID, Start: start, End: end, CategoryType: t, CategoryName: n}
	}

	var (
		total, incomeCount, expenseCount int
		salary, otherIncome, expense     decimal.Decimal
		breakdown                        []domain.ExpenseCategoryStat
	)
	g, gctx := errgroup.WithContext(ctx)
	count := func(dst *int, q domain.AggregateQuery) {
		g.Go(func() error {
			n, err := s.store.CountTransactions(gctx, q)
			*dst = n
			return err
		})
	}
	sum := func(dst *decimal.Decimal, q domain.AggregateQuery) {
		g.Go(func() error {
			v, err := s.store.SumAmount(gctx, q)
			*dst = v
			return err
		})
	}

	count(&total, window("", ""))
	count(&incomeCount, window(domain.CategoryIncome, ""))
	count(&expenseCount, window(domain.CategoryExpense, ""))
	sum(&salary, window(domain.CategoryIncome, domain.Salary))
	sum(&otherIncome, window(domain.CategoryIncome, domain.OtherIncome))
	sum(&expense, window(domain.CategoryExpense, ""))
	g.Go(func() error {
		var err error
		breakdown, err = s.store.ExpenseBreakdown(gctx, userID, start, end)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &domain.DashboardResponse{
		Username:                 user.Username,
		Balance:                  user.Balance,
		FromDate:                 rng.From.Format(domain.DateLayout),
		ToDate:                   rng.To.Format(domain.DateLayout),
		TotalIncome:              salary.Add(otherIncome),
		TotalExpense:             expense,
		TransactionsCount:        total,
		IncomeTransactionsCount:  incomeCount,
		ExpenseTransactionsCount: expenseCount,
		TotalSalaryIncome:        salary,
		TotalOtherIncome:         otherIncome,
		ExpenseBreakdown:         breakdown,
	}, nil
}
