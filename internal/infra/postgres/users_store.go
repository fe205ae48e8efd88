package postgres

import (
	"context"
	"fmt"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
)

// ============================================================
// Users
// ============================================================

const userColumns = `id, username, password_hash, balance::text, created_at`

func scanUser(row interface{ Scan(dest ...any) error }) (*domain.User, error) {
	var u domain.User
	var balance string
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &balance, &u.CreatedAt); err != nil {
		return nil, err
	}
	b, err := parseAmount(balance)
	if err != nil {
		return nil, err
	}
	u.Balance = b
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	ctx, span := tracer.Start(ctx, "Postgres.CreateUser")
	defer span.End()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, username, password_hash, balance, created_at)
		 VALUES ($1, $2, $3, $4::text::numeric, $5)`,
		user.ID, user.Username, user.PasswordHash, user.Balance.String(), user.CreatedAt)
	if isUniqueViolation(err) {
		return &domain.ErrConflict{Message: "username already exists: " + user.Username}
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetUserByID")
	defer span.End()

	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err != nil {
		return nil, notFoundOr(err, "user", userID)
	}
	return u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetUserByUsername")
	defer span.End()

	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		return nil, notFoundOr(err, "user", username)
	}
	return u, nil
}

// ============================================================
// Categories
// ============================================================

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListCategories")
	defer span.End()

	rows, err := s.pool.Query(ctx, `SELECT name, type FROM categories`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	byName := make(map[domain.CategoryName]domain.Category)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		byName[c.Name] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	// catalog order, not table order
	out := make([]domain.Category, 0, len(byName))
	for _, c := range domain.Catalog() {
		if cat, ok := byName[c.Name]; ok {
			out = append(out, cat)
		}
	}
	return out, nil
}

func (s *Store) GetCategory(ctx context.Context, name domain.CategoryName) (*domain.Category, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetCategory")
	defer span.End()
	return getCategory(ctx, s.pool, name)
}

func getCategory(ctx context.Context, q querier, name domain.CategoryName) (*domain.Category, error) {
	var c domain.Category
	err := q.QueryRow(ctx, `SELECT name, type FROM categories WHERE name = $1`, string(name)).Scan(&c.Name, &c.Type)
	if err != nil {
		return nil, notFoundOr(err, "category", string(name))
	}
	return &c, nil
}
