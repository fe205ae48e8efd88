package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := domain.ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestNormalizeRange_Defaults(t *testing.T) {
	today := date(t, "2024-06-15")
	earliest := date(t, "2024-01-01")

	tests := []struct {
		name     string
		policy   domain.FloorPolicy
		from, to string
		wantFrom string
		wantTo   string
	}{
		{"lookback both absent", domain.LookbackDays(30), "", "", "2024-05-16", "2024-06-15"},
		{"account both absent", domain.AccountCreationDate(), "", "", "2024-01-01", "2024-06-15"},
		{"lookback anchored on to", domain.LookbackDays(30), "", "2024-03-31", "2024-03-01", "2024-03-31"},
		{"lookback clamped to account", domain.LookbackDays(30), "", "2024-01-10", "2024-01-01", "2024-01-10"},
		{"swap", domain.LookbackDays(30), "2024-05-01", "2024-04-01", "2024-04-01", "2024-05-01"},
		{"from before account", domain.AccountCreationDate(), "2023-01-01", "2024-02-01", "2024-01-01", "2024-02-01"},
		{"to in the future", domain.AccountCreationDate(), "2024-06-01", "2025-01-01", "2024-06-01", "2024-06-15"},
		{"both in the future", domain.LookbackDays(30), "2024-07-01", "2024-08-01", "2024-06-15", "2024-06-15"},
		{"both before account", domain.AccountCreationDate(), "2023-01-01", "2023-02-01", "2024-01-01", "2024-01-01"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var from, to time.Time
			if tc.from != "" {
				from = date(t, tc.from)
			}
			if tc.to != "" {
				to = date(t, tc.to)
			}
			r := domain.NormalizeRange(from, to, tc.policy, earliest, today)
			assert.Equal(t, tc.wantFrom, r.From.Format(domain.DateLayout))
			assert.Equal(t, tc.wantTo, r.To.Format(domain.DateLayout))
		})
	}
}

func TestNormalizeRange_AlwaysOrderedAndBounded(t *testing.T) {
	today := date(t, "2024-06-15")
	earliest := date(t, "2024-01-01")
	candidates := []time.Time{
		{}, date(t, "2023-06-01"), earliest, date(t, "2024-03-15"), today, date(t, "2024-12-31"),
	}
	policies := []domain.FloorPolicy{domain.LookbackDays(0), domain.LookbackDays(30), domain.LookbackDays(400), domain.AccountCreationDate()}

	for _, p := range policies {
		for _, from := range candidates {
			for _, to := range candidates {
				r := domain.NormalizeRange(from, to, p, earliest, today)
				assert.False(t, r.From.After(r.To), "%s from=%v to=%v", p, from, to)
				assert.False(t, r.From.Before(earliest), "%s from=%v to=%v", p, from, to)
				assert.False(t, r.To.After(today), "%s from=%v to=%v", p, from, to)
				if to.IsZero() {
					assert.True(t, r.To.Equal(today))
				}
			}
		}
	}
}

func TestNormalizeRange_AccountCreatedAfterToday(t *testing.T) {
	today := date(t, "2024-06-15")
	r := domain.NormalizeRange(time.Time{}, time.Time{}, domain.AccountCreationDate(), date(t, "2024-06-20"), today)
	assert.True(t, r.From.Equal(today))
	assert.True(t, r.To.Equal(today))
}

func TestDateRange_EndIsMidnightAfterTo(t *testing.T) {
	r := domain.DateRange{From: date(t, "2024-06-01"), To: date(t, "2024-06-15")}
	assert.Equal(t, "2024-06-16T00:00:00Z", r.End().Format(time.RFC3339))
	assert.True(t, r.Start().Equal(r.From))

	lastInstant := time.Date(2024, 6, 15, 23, 59, 59, 500_000_000, time.UTC)
	assert.True(t, lastInstant.Before(r.End()), "an entry in the final second of To belongs to the range")
}

func TestParseFloorPolicy(t *testing.T) {
	p, err := domain.ParseFloorPolicy("account")
	require.NoError(t, err)
	assert.Equal(t, "account", p.String())

	p, err = domain.ParseFloorPolicy("LOOKBACK:7")
	require.NoError(t, err)
	assert.Equal(t, "lookback:7", p.String())

	for _, bad := range []string{"", "lookback:", "lookback:-1", "forever"} {
		_, err := domain.ParseFloorPolicy(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseDate(t *testing.T) {
	d, err := domain.ParseDate("")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = domain.ParseDate("15/06/2024")
	assert.Error(t, err)
}
