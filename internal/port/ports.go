// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
)

// Cache provides generic caching with TTL. Load fills a miss through fill and
// reports whether the value was already cached.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	Load(ctx context.Context, key string, fill func(context.Context) (T, error)) (T, bool, error)
}

// UserStore handles user accounts. Balance is written only through LedgerTx.
type UserStore interface {
	// CreateUser returns *domain.ErrConflict when the username is taken.
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, userID string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
}

// CategoryStore exposes the read-only category catalog.
type CategoryStore interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetCategory(ctx context.Context, name domain.CategoryName) (*domain.Category, error)
}

// RecurringStore handles recurring rule definitions. Firing a rule goes
// through LedgerTx instead.
type RecurringStore interface {
	ListRecurring(ctx context.Context, userID string) ([]domain.RecurringTransaction, error)
	GetRecurring(ctx context.Context, userID, id string) (*domain.RecurringTransaction, error)
	CreateRecurring(ctx context.Context, rt *domain.RecurringTransaction) error
	UpdateRecurring(ctx context.Context, rt *domain.RecurringTransaction) error
	DeleteRecurring(ctx context.Context, userID, id string) error
	// ListDueRecurring returns every rule with NextRunDate <= dueBy.
	ListDueRecurring(ctx context.Context, dueBy time.Time) ([]domain.RecurringTransaction, error)
}

// ReportStore answers the read-side aggregation queries.
type ReportStore interface {
	// ListTransactions returns matches newest first.
	ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error)
	SumAmount(ctx context.Context, q domain.AggregateQuery) (decimal.Decimal, error)
	CountTransactions(ctx context.Context, q domain.AggregateQuery) (int, error)
	// ExpenseBreakdown groups EXPENSE transactions by category, largest first.
	ExpenseBreakdown(ctx context.Context, userID string, start, end time.Time) ([]domain.ExpenseCategoryStat, error)
}

// Store is everything a backing database provides.
type Store interface {
	UserStore
	CategoryStore
	RecurringStore
	ReportStore
	LedgerStore
	Ping(ctx context.Context) error
}

// EventPublisher announces committed ledger changes.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.LedgerEvent) error
}
