// Package memory is a process-local implementation of port.Store used in dev
// mode (no DATABASE_URL) and in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
	"github.com/boddenberg/finance-tracker-go/internal/port"
)

var _ port.Store = (*Store)(nil)

type state struct {
	users        map[string]domain.User
	usernames    map[string]string
	categories   map[domain.CategoryName]domain.Category
	transactions map[string]domain.Transaction
	recurring    map[string]domain.RecurringTransaction
}

func (s *state) clone() *state {
	c := &state{
		users:        make(map[string]domain.User, len(s.users)),
		usernames:    make(map[string]string, len(s.usernames)),
		categories:   s.categories,
		transactions: make(map[string]domain.Transaction, len(s.transactions)),
		recurring:    make(map[string]domain.RecurringTransaction, len(s.recurring)),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.usernames {
		c.usernames[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	for k, v := range s.recurring {
		c.recurring[k] = v
	}
	return c
}

// Store keeps everything in maps behind one mutex. A ledger unit of work holds
// the mutex from start to commit, which gives per-user atomicity trivially.
// Code running inside WithinTx must use the LedgerTx, never the Store.
type Store struct {
	mu sync.Mutex
	st *state
}

// New returns an empty store seeded with the category catalog.
func New() *Store {
	cats := make(map[domain.CategoryName]domain.Category)
	for _, c := range domain.Catalog() {
		cats[c.Name] = c
	}
	return &Store{st: &state{
		users:        make(map[string]domain.User),
		usernames:    make(map[string]string),
		categories:   cats,
		transactions: make(map[string]domain.Transaction),
		recurring:    make(map[string]domain.RecurringTransaction),
	}}
}

func (s *Store) Ping(_ context.Context) error { return nil }

// ============================================================
// Users
// ============================================================

func (s *Store) CreateUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.st.usernames[user.Username]; taken {
		return &domain.ErrConflict{Message: "username already exists: " + user.Username}
	}
	s.st.users[user.ID] = *user
	s.st.usernames[user.Username] = user.ID
	return nil
}

func (s *Store) GetUserByID(_ context.Context, userID string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.st.users[userID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "user", ID: userID}
	}
	return &u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.st.usernames[username]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "user", ID: username}
	}
	u := s.st.users[id]
	return &u, nil
}

// ============================================================
// Categories
// ============================================================

func (s *Store) ListCategories(_ context.Context) ([]domain.Category, error) {
	// the catalog map is never written after New
	out := make([]domain.Category, 0, len(s.st.categories))
	for _, c := range domain.Catalog() {
		if cat, ok := s.st.categories[c.Name]; ok {
			out = append(out, cat)
		}
	}
	return out, nil
}

func (s *Store) GetCategory(_ context.Context, name domain.CategoryName) (*domain.Category, error) {
	return getCategory(s.st, name)
}

func getCategory(st *state, name domain.CategoryName) (*domain.Category, error) {
	c, ok := st.categories[name]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "category", ID: string(name)}
	}
	return &c, nil
}

// ============================================================
// Recurring rules
// ============================================================

func (s *Store) ListRecurring(_ context.Context, userID string) ([]domain.RecurringTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.RecurringTransaction, 0)
	for _, rt := range s.st.recurring {
		if rt.UserID == userID {
			out = append(out, rt)
		}
	}
	sortRecurring(out)
	return out, nil
}

func (s *Store) GetRecurring(_ context.Context, userID, id string) (*domain.RecurringTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rt, ok := s.st.recurring[id]
	if !ok || rt.UserID != userID {
		return nil, &domain.ErrNotFound{Resource: "recurring transaction", ID: id}
	}
	return &rt, nil
}

func (s *Store) CreateRecurring(_ context.Context, rt *domain.RecurringTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.st.users[rt.UserID]; !ok {
		return &domain.ErrNotFound{Resource: "user", ID: rt.UserID}
	}
	s.st.recurring[rt.ID] = *rt
	return nil
}

func (s *Store) UpdateRecurring(_ context.Context, rt *domain.RecurringTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.st.recurring[rt.ID]
	if !ok || cur.UserID != rt.UserID {
		return &domain.ErrNotFound{Resource: "recurring transaction", ID: rt.ID}
	}
	s.st.recurring[rt.ID] = *rt
	return nil
}

func (s *Store) DeleteRecurring(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.st.recurring[id]
	if !ok || cur.UserID != userID {
		return &domain.ErrNotFound{Resource: "recurring transaction", ID: id}
	}
	delete(s.st.recurring, id)
	return nil
}

func (s *Store) ListDueRecurring(_ context.Context, dueBy time.Time) ([]domain.RecurringTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.RecurringTransaction, 0)
	for _, rt := range s.st.recurring {
		if !rt.NextRunDate.After(dueBy) {
			out = append(out, rt)
		}
	}
	sortRecurring(out)
	return out, nil
}

func sortRecurring(rs []domain.RecurringTransaction) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].NextRunDate.Equal(rs[j].NextRunDate) {
			return rs[i].NextRunDate.Before(rs[j].NextRunDate)
		}
		return rs[i].ID < rs[j].ID
	})
}

// ============================================================
// Reports
// ============================================================

func (s *Store) ListTransactions(_ context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Transaction, 0)
	for _, t := range s.st.transactions {
		if filter.Matches(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Datetime.Equal(out[j].Datetime) {
			return out[i].Datetime.After(out[j].Datetime)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) SumAmount(_ context.Context, q domain.AggregateQuery) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := decimal.Zero
	for _, t := range s.st.transactions {
		if aggregateMatches(q, t) {
			sum = sum.Add(t.Amount)
		}
	}
	return sum, nil
}

func (s *Store) CountTransactions(_ context.Context, q domain.AggregateQuery) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, t := range s.st.transactions {
		if aggregateMatches(q, t) {
			n++
		}
	}
	return n, nil
}

func (s *Store) ExpenseBreakdown(_ context.Context, userID string, start, end time.Time) ([]domain.ExpenseCategoryStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := domain.AggregateQuery{UserID: userID, Start: start, End: end, CategoryType: domain.CategoryExpense}
	byName := make(map[domain.CategoryName]*domain.ExpenseCategoryStat)
	for _, t := range s.st.transactions {
		if !aggregateMatches(q, t) {
			continue
		}
		stat, ok := byName[t.Category.Name]
		if !ok {
			stat = &domain.ExpenseCategoryStat{Category: t.Category.Name, TotalAmount: decimal.Zero}
			byName[t.Category.Name] = stat
		}
		stat.TotalAmount = stat.TotalAmount.Add(t.Amount)
		stat.TransactionCount++
	}

	out := make([]domain.ExpenseCategoryStat, 0, len(byName))
	for _, stat := range byName {
		out = append(out, *stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].TotalAmount.Cmp(out[j].TotalAmount); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

func aggregateMatches(q domain.AggregateQuery, t domain.Transaction) bool {
	if t.UserID != q.UserID || t.Datetime.Before(q.Start) || !t.Datetime.Before(q.End) {
		return false
	}
	if q.CategoryType != "" && t.Category.Type != q.CategoryType {
		return false
	}
	return q.CategoryName == "" || t.Category.Name == q.CategoryName
}
