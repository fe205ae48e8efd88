package memory

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
	"github.com/boddenberg/finance-tracker-go/internal/port"
)

// WithinTx runs fn against a private copy of the state and publishes the
// copy only when fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx port.LedgerTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &ledgerTx{st: s.st.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.st = tx.st
	return nil
}

type ledgerTx struct {
	st *state
}

func (tx *ledgerTx) LockUser(_ context.Context, userID string) (*domain.User, error) {
	u, ok := tx.st.users[userID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "user", ID: userID}
	}
	return &u, nil
}

func (tx *ledgerTx) SetBalance(_ context.Context, userID string, balance decimal.Decimal) error {
	u, ok := tx.st.users[userID]
	if !ok {
		return &domain.ErrNotFound{Resource: "user", ID: userID}
	}
	u.Balance = balance
	tx.st.users[userID] = u
	return nil
}

func (tx *ledgerTx) GetCategory(_ context.Context, name domain.CategoryName) (*domain.Category, error) {
	return getCategory(tx.st, name)
}

func (tx *ledgerTx) GetTransaction(_ context.Context, userID, id string) (*domain.Transaction, error) {
	t, ok := tx.st.transactions[id]
	if !ok || t.UserID != userID {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	return &t, nil
}

func (tx *ledgerTx) InsertTransaction(_ context.Context, t *domain.Transaction) error {
	if _, ok := tx.st.users[t.UserID]; !ok {
		return &domain.ErrNotFound{Resource: "user", ID: t.UserID}
	}
	tx.st.transactions[t.ID] = *t
	return nil
}

func (tx *ledgerTx) UpdateTransaction(_ context.Context, t *domain.Transaction) error {
	cur, ok := tx.st.transactions[t.ID]
	if !ok || cur.UserID != t.UserID {
		return &domain.ErrNotFound{Resource: "transaction", ID: t.ID}
	}
	tx.st.transactions[t.ID] = *t
	return nil
}

func (tx *ledgerTx) DeleteTransaction(_ context.Context, userID, id string) error {
	cur, ok := tx.st.transactions[id]
	if !ok || cur.UserID != userID {
		return &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	delete(tx.st.transactions, id)
	return nil
}

func (tx *ledgerTx) LockDueRecurring(_ context.Context, id string, dueBy time.Time) (*domain.RecurringTransaction, error) {
	rt, ok := tx.st.recurring[id]
	if !ok || rt.NextRunDate.After(dueBy) {
		return nil, nil
	}
	return &rt, nil
}

func (tx *ledgerTx) SaveRecurring(_ context.Context, rt *domain.RecurringTransaction) error {
	if _, ok := tx.st.recurring[rt.ID]; !ok {
		return &domain.ErrNotFound{Resource: "recurring transaction", ID: rt.ID}
	}
	tx.st.recurring[rt.ID] = *rt
	return nil
}
