package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
)

func TestContainsPattern_EscapesWildcards(t *testing.T) {
	assert.Equal(t, "%groceries%", containsPattern("groceries"))
	assert.Equal(t, `%50\% off%`, containsPattern("50% off"))
	assert.Equal(t, `%a\_b%`, containsPattern("a_b"))
	assert.Equal(t, `%c:\\tmp%`, containsPattern(`c:\tmp`))
}

func TestWhereBuilder_NumbersPlaceholders(t *testing.T) {
	var w whereBuilder
	w.add("t.user_id = $%d", "u1")
	w.add("c.type = $%d", "EXPENSE")
	w.add("t.name ILIKE $%d", "%x%")

	assert.Equal(t, "t.user_id = $1 AND c.type = $2 AND t.name ILIKE $3", w.sql())
	assert.Equal(t, []any{"u1", "EXPENSE", "%x%"}, w.args)
}

func TestNotFoundOr(t *testing.T) {
	var nf *domain.ErrNotFound
	require.ErrorAs(t, notFoundOr(pgx.ErrNoRows, "user", "u1"), &nf)
	assert.Equal(t, "u1", nf.ID)

	other := errors.New("connection reset")
	err := notFoundOr(other, "user", "u1")
	assert.ErrorIs(t, err, other)
	assert.False(t, errors.As(err, &nf))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}

func TestParseAmount(t *testing.T) {
	d, err := parseAmount("1234.5600")
	require.NoError(t, err)
	assert.Equal(t, "1234.56", d.String())

	_, err = parseAmount("NaN?")
	assert.Error(t, err)
}
