package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
	"github.com/boddenberg/finance-tracker-go/internal/port"
)

// ============================================================
// Ledger unit of work
// ============================================================

// WithinTx runs fn inside a database transaction. The user row stays locked
// (SELECT ... FOR UPDATE) from LockUser until commit or rollback.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx port.LedgerTx) error) error {
	ctx, span := tracer.Start(ctx, "Postgres.WithinTx")
	defer span.End()

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &ledgerTx{tx: tx})
	})
}

type ledgerTx struct {
	tx pgx.Tx
}

func (l *ledgerTx) LockUser(ctx context.Context, userID string) (*domain.User, error) {
	u, err := scanUser(l.tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, userID))
	if err != nil {
		return nil, notFoundOr(err, "user", userID)
	}
	return u, nil
}

func (l *ledgerTx) SetBalance(ctx context.Context, userID string, balance decimal.Decimal) error {
	tag, err := l.tx.Exec(ctx, `UPDATE users SET balance = $2::text::numeric WHERE id = $1`, userID, balance.String())
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.ErrNotFound{Resource: "user", ID: userID}
	}
	return nil
}

func (l *ledgerTx) GetCategory(ctx context.Context, name domain.CategoryName) (*domain.Category, error) {
	return getCategory(ctx, l.tx, name)
}

func (l *ledgerTx) GetTransaction(ctx context.Context, userID, id string) (*domain.Transaction, error) {
	t, err := scanTransaction(l.tx.QueryRow(ctx, transactionSelect+` WHERE t.id = $1 AND t.user_id = $2 FOR UPDATE OF t`, id, userID))
	if err != nil {
		return nil, notFoundOr(err, "transaction", id)
	}
	return t, nil
}

func (l *ledgerTx) InsertTransaction(ctx context.Context, t *domain.Transaction) error {
	_, err := l.tx.Exec(ctx,
		`INSERT INTO transactions (id, user_id, category_name, name, amount, datetime, payment_mode, note)
		 VALUES ($1, $2, $3, $4, $5::text::numeric, $6, $7, $8)`,
		t.ID, t.UserID, string(t.Category.Name), t.Name, t.Amount.String(), t.Datetime, t.PaymentMode, t.Note)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (l *ledgerTx) UpdateTransaction(ctx context.Context, t *domain.Transaction) error {
	tag, err := l.tx.Exec(ctx,
		`UPDATE transactions
		 SET category_name = $3, name = $4, amount = $5::text::numeric, payment_mode = $6, note = $7
		 WHERE id = $1 AND user_id = $2`,
		t.ID, t.UserID, string(t.Category.Name), t.Name, t.Amount.String(), t.PaymentMode, t.Note)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.ErrNotFound{Resource: "transaction", ID: t.ID}
	}
	return nil
}

func (l *ledgerTx) DeleteTransaction(ctx context.Context, userID, id string) error {
	tag, err := l.tx.Exec(ctx, `DELETE FROM transactions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	return nil
}

func (l *ledgerTx) LockDueRecurring(ctx context.Context, id string, dueBy time.Time) (*domain.RecurringTransaction, error) {
	rt, err := scanRecurring(l.tx.QueryRow(ctx,
		recurringSelect+` WHERE r.id = $1 AND r.next_run_date <= $2 FOR UPDATE OF r`, id, dueBy))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock recurring %s: %w", id, err)
	}
	return rt, nil
}

func (l *ledgerTx) SaveRecurring(ctx context.Context, rt *domain.RecurringTransaction) error {
	return saveRecurring(ctx, l.tx, rt)
}
