package domain

import (
	"strings"
	"time"
)

// Frequency is how often a recurring rule fires.
type Frequency string

const (
	Daily   Frequency = "DAILY"
	Weekly  Frequency = "WEEKLY"
	Monthly Frequency = "MONTHLY"
	Yearly  Frequency = "YEARLY"
)

// ParseFrequency accepts any casing.
func ParseFrequency(s string) (Frequency, bool) {
	switch f := Frequency(strings.ToUpper(strings.TrimSpace(s))); f {
	case Daily, Weekly, Monthly, Yearly:
		return f, true
	}
	return "", false
}

// NextRunDate advances base by one period of freq. A zero base means today.
// Months and years are calendar-aware and clamp to the last valid day of the
// target month (Jan 31 + 1 month = Feb 28/29, Feb 29 + 1 year = Feb 28).
// The result is never on or before today: anything earlier becomes today+1.
func NextRunDate(freq Frequency, base, today time.Time) (time.Time, error) {
	today = DateOf(today)
	if base.IsZero() {
		base = today
	}
	base = DateOf(base)

	var next time.Time
	switch freq {
	case Daily:
		next = base.AddDate(0, 0, 1)
	case Weekly:
		next = base.AddDate(0, 0, 7)
	case Monthly:
		next = addMonthsClamped(base, 1)
	case Yearly:
		next = addMonthsClamped(base, 12)
	default:
		return time.Time{}, &ErrInvalidArgument{Argument: "frequency", Reason: "unrecognized frequency " + string(freq)}
	}

	if !next.After(today) {
		next = today.AddDate(0, 0, 1)
	}
	return next, nil
}

// addMonthsClamped differs from time.AddDate, which normalizes Jan 31 + 1
// month into early March.
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := first.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, t.Location())
}
