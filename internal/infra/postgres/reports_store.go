package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
)

// ============================================================
// Reports (read side)
// ============================================================

const transactionSelect = `SELECT t.id, t.user_id, t.category_name, c.type, t.name, t.amount::text, t.datetime, t.payment_mode, t.note
	FROM transactions t JOIN categories c ON c.name = t.category_name`

func scanTransaction(row interface{ Scan(dest ...any) error }) (*domain.Transaction, error) {
	var t domain.Transaction
	var amount string
	if err := row.Scan(&t.ID, &t.UserID, &t.Category.Name, &t.Category.Type, &t.Name, &amount, &t.Datetime, &t.PaymentMode, &t.Note); err != nil {
		return nil, err
	}
	a, err := parseAmount(amount)
	if err != nil {
		return nil, err
	}
	t.Amount = a
	t.Datetime = t.Datetime.UTC()
	return &t, nil
}

// ListTransactions mirrors domain.TransactionFilter.Matches in SQL.
func (s *Store) ListTransactions(ctx context.Context, f domain.TransactionFilter) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListTransactions")
	defer span.End()

	w := &whereBuilder{}
	w.add("t.user_id = $%d", f.UserID)
	w.add("t.datetime >= $%d", f.Start)
	w.add("t.datetime < $%d", f.End)
	if f.CategoryType != "" {
		w.add("c.type = $%d", string(f.CategoryType))
	}
	if f.CategoryName != "" {
		w.add("t.category_name = $%d", string(f.CategoryName))
	}
	if f.Name != "" {
		w.add("t.name ILIKE $%d", containsPattern(f.Name))
	}
	if f.PaymentMode != "" {
		w.add("t.payment_mode ILIKE $%d", containsPattern(f.PaymentMode))
	}
	if f.Note != "" {
		w.add("t.note ILIKE $%d", containsPattern(f.Note))
	}
	if f.MinAmount.Valid {
		w.add("t.amount >= $%d::text::numeric", f.MinAmount.Decimal.String())
	}
	if f.MaxAmount.Valid {
		w.add("t.amount <= $%d::text::numeric", f.MaxAmount.Decimal.String())
	}

	rows, err := s.pool.Query(ctx, transactionSelect+` WHERE `+w.sql()+` ORDER BY t.datetime DESC, t.id DESC`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func aggregateWhere(q domain.AggregateQuery) *whereBuilder {
	w := &whereBuilder{}
	w.add("t.user_id = $%d", q.UserID)
	w.add("t.datetime >= $%d", q.Start)
	w.add("t.datetime < $%d", q.End)
	if q.CategoryType != "" {
		w.add("c.type = $%d", string(q.CategoryType))
	}
	if q.CategoryName != "" {
		w.add("t.category_name = $%d", string(q.CategoryName))
	}
	return w
}

func (s *Store) SumAmount(ctx context.Context, q domain.AggregateQuery) (decimal.Decimal, error) {
	ctx, span := tracer.Start(ctx, "Postgres.SumAmount")
	defer span.End()

	w := aggregateWhere(q)
	var sum string
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(t.amount), 0)::text
		 FROM transactions t JOIN categories c ON c.name = t.category_name
		 WHERE `+w.sql(), w.args...).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum transactions: %w", err)
	}
	return parseAmount(sum)
}

func (s *Store) CountTransactions(ctx context.Context, q domain.AggregateQuery) (int, error) {
	ctx, span := tracer.Start(ctx, "Postgres.CountTransactions")
	defer span.End()

	w := aggregateWhere(q)
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM transactions t JOIN categories c ON c.name = t.category_name
		 WHERE `+w.sql(), w.args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

func (s *Store) ExpenseBreakdown(ctx context.Context, userID string, start, end time.Time) ([]domain.ExpenseCategoryStat, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ExpenseBreakdown")
	defer span.End()

	w := aggregateWhere(domain.AggregateQuery{UserID: userID, Start: start, End: end, CategoryType: domain.CategoryExpense})
	rows, err := s.pool.Query(ctx,
		`SELECT t.category_name, SUM(t.amount)::text, COUNT(*)
		 FROM transactions t JOIN categories c ON c.name = t.category_name
		 WHERE `+w.sql()+`
		 GROUP BY t.category_name
		 ORDER BY SUM(t.amount) DESC, t.category_name`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("expense breakdown: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ExpenseCategoryStat, 0)
	for rows.Next() {
		var stat domain.ExpenseCategoryStat
		var total string
		if err := rows.Scan(&stat.Category, &total, &stat.TransactionCount); err != nil {
			return nil, fmt.Errorf("scan breakdown: %w", err)
		}
		if stat.TotalAmount, err = parseAmount(total); err != nil {
			return nil, err
		}
		out = append(out, stat)
	}
	return out, rows.Err()
}
