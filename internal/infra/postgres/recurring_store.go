package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
)

// ============================================================
// Recurring rules
// ============================================================

const recurringSelect = `SELECT r.id, r.user_id, r.category_name, c.type, r.name, r.amount::text, r.frequency, r.next_run_date
	FROM recurring_transactions r JOIN categories c ON c.name = r.category_name`

func scanRecurring(row interface{ Scan(dest ...any) error }) (*domain.RecurringTransaction, error) {
	var rt domain.RecurringTransaction
	var amount string
	if err := row.Scan(&rt.ID, &rt.UserID, &rt.Category.Name, &rt.Category.Type, &rt.Name, &amount, &rt.Frequency, &rt.NextRunDate); err != nil {
		return nil, err
	}
	a, err := parseAmount(amount)
	if err != nil {
		return nil, err
	}
	rt.Amount = a
	rt.NextRunDate = domain.DateOf(rt.NextRunDate)
	return &rt, nil
}

func (s *Store) queryRecurring(ctx context.Context, q querier, sql string, args ...any) ([]domain.RecurringTransaction, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query recurring: %w", err)
	}
	defer rows.Close()

	out := make([]domain.RecurringTransaction, 0)
	for rows.Next() {
		rt, err := scanRecurring(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring: %w", err)
		}
		out = append(out, *rt)
	}
	return out, rows.Err()
}

func (s *Store) ListRecurring(ctx context.Context, userID string) ([]domain.RecurringTransaction, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListRecurring")
	defer span.End()

	return s.queryRecurring(ctx, s.pool, recurringSelect+` WHERE r.user_id = $1 ORDER BY r.next_run_date, r.id`, userID)
}

func (s *Store) GetRecurring(ctx context.Context, userID, id string) (*domain.RecurringTransaction, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetRecurring")
	defer span.End()

	rt, err := scanRecurring(s.pool.QueryRow(ctx, recurringSelect+` WHERE r.id = $1 AND r.user_id = $2`, id, userID))
	if err != nil {
		return nil, notFoundOr(err, "recurring transaction", id)
	}
	return rt, nil
}

func (s *Store) CreateRecurring(ctx context.Context, rt *domain.RecurringTransaction) error {
	ctx, span := tracer.Start(ctx, "Postgres.CreateRecurring")
	defer span.End()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO recurring_transactions (id, user_id, category_name, name, amount, frequency, next_run_date)
		 VALUES ($1, $2, $3, $4, $5::text::numeric, $6, $7)`,
		rt.ID, rt.UserID, string(rt.Category.Name), rt.Name, rt.Amount.String(), string(rt.Frequency), rt.NextRunDate)
	if err != nil {
		return fmt.Errorf("insert recurring: %w", err)
	}
	return nil
}

func (s *Store) UpdateRecurring(ctx context.Context, rt *domain.RecurringTransaction) error {
	ctx, span := tracer.Start(ctx, "Postgres.UpdateRecurring")
	defer span.End()
	return saveRecurring(ctx, s.pool, rt)
}

func saveRecurring(ctx context.Context, q querier, rt *domain.RecurringTransaction) error {
	tag, err := q.Exec(ctx,
		`UPDATE recurring_transactions
		 SET category_name = $3, name = $4, amount = $5::text::numeric, frequency = $6, next_run_date = $7
		 WHERE id = $1 AND user_id = $2`,
		rt.ID, rt.UserID, string(rt.Category.Name), rt.Name, rt.Amount.String(), string(rt.Frequency), rt.NextRunDate)
	if err != nil {
		return fmt.Errorf("update recurring: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.ErrNotFound{Resource: "recurring transaction", ID: rt.ID}
	}
	return nil
}

func (s *Store) DeleteRecurring(ctx context.Context, userID, id string) error {
	ctx, span := tracer.Start(ctx, "Postgres.DeleteRecurring")
	defer span.End()

	tag, err := s.pool.Exec(ctx, `DELETE FROM recurring_transactions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete recurring: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.ErrNotFound{Resource: "recurring transaction", ID: id}
	}
	return nil
}

func (s *Store) ListDueRecurring(ctx context.Context, dueBy time.Time) ([]domain.RecurringTransaction, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListDueRecurring")
	defer span.End()

	return s.queryRecurring(ctx, s.pool, recurringSelect+` WHERE r.next_run_date <= $1 ORDER BY r.next_run_date, r.id`, dueBy)
}
