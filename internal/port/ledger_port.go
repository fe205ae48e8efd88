package port

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
)

// LedgerStore runs balance-affecting work atomically.
type LedgerStore interface {
	// WithinTx runs fn in one unit of work. Everything fn wrote is committed
	// if it returns nil and discarded otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
}

// LedgerTx is the only way to change a user's balance. Implementations hold
// the user lock from LockUser until commit so concurrent mutations on the
// same user serialize.
type LedgerTx interface {
	// LockUser loads and locks the user row. *domain.ErrNotFound if missing.
	LockUser(ctx context.Context, userID string) (*domain.User, error)
	SetBalance(ctx context.Context, userID string, balance decimal.Decimal) error

	GetCategory(ctx context.Context, name domain.CategoryName) (*domain.Category, error)

	// GetTransaction is scoped to the owner. *domain.ErrNotFound otherwise.
	GetTransaction(ctx context.Context, userID, id string) (*domain.Transaction, error)
	InsertTransaction(ctx context.Context, t *domain.Transaction) error
	UpdateTransaction(ctx context.Context, t *domain.Transaction) error
	DeleteTransaction(ctx context.Context, userID, id string) error

	// LockDueRecurring locks the rule if it is still due by dueBy and returns
	// nil, nil if another run already advanced or removed it.
	LockDueRecurring(ctx context.Context, id string, dueBy time.Time) (*domain.RecurringTransaction, error)
	SaveRecurring(ctx context.Context, rt *domain.RecurringTransaction) error
}
