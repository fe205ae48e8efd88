package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the ISO calendar date format used on the wire.
const DateLayout = "2006-01-02"

// DateOf truncates t to its calendar date, expressed as midnight UTC. All
// calendar dates in the domain use this representation.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WallClock re-expresses t's local wall-clock reading in UTC so that ledger
// timestamps compare directly with DateOf-based report windows.
func WallClock(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// ParseDate parses YYYY-MM-DD. An empty string yields the zero time (absent).
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// DateRange is an inclusive calendar date range.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Start is the first instant of the range.
func (r DateRange) Start() time.Time { return r.From }

// End is the exclusive upper bound: midnight after To. Timestamps carry
// sub-second precision, so every instant of To falls before it.
func (r DateRange) End() time.Time {
	return r.To.AddDate(0, 0, 1)
}

// ============================================================
// Floor policy
// ============================================================

type floorKind int

const (
	floorLookback floorKind = iota
	floorAccountCreation
)

// FloorPolicy decides the default start of a report range when the caller
// omits it.
type FloorPolicy struct {
	kind floorKind
	days int
}

// LookbackDays defaults a missing start to n days before the end.
func LookbackDays(n int) FloorPolicy { return FloorPolicy{kind: floorLookback, days: n} }

// AccountCreationDate defaults a missing start to the account creation date.
func AccountCreationDate() FloorPolicy { return FloorPolicy{kind: floorAccountCreation} }

func (p FloorPolicy) String() string {
	if p.kind == floorAccountCreation {
		return "account"
	}
	return fmt.Sprintf("lookback:%d", p.days)
}

// ParseFloorPolicy parses "account" or "lookback:<days>".
func ParseFloorPolicy(s string) (FloorPolicy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "account" {
		return AccountCreationDate(), nil
	}
	if rest, ok := strings.CutPrefix(s, "lookback:"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil || n < 0 {
			return FloorPolicy{}, fmt.Errorf("invalid lookback days %q", rest)
		}
		return LookbackDays(n), nil
	}
	return FloorPolicy{}, fmt.Errorf("unknown range policy %q (want \"account\" or \"lookback:<days>\")", s)
}

// NormalizeRange turns optional bounds (zero time = absent) into a concrete
// inclusive range. The result always satisfies
// earliest <= From <= To <= today, with earliest first capped at today.
func NormalizeRange(from, to time.Time, policy FloorPolicy, earliest, today time.Time) DateRange {
	today = DateOf(today)
	if !earliest.IsZero() {
		earliest = DateOf(earliest)
		if earliest.After(today) {
			earliest = today
		}
	}
	if !from.IsZero() {
		from = DateOf(from)
	}
	if !to.IsZero() {
		to = DateOf(to)
	}

	if from.IsZero() {
		switch policy.kind {
		case floorAccountCreation:
			from = earliest
			if from.IsZero() {
				from = today
			}
		default:
			anchor := to
			if anchor.IsZero() {
				anchor = today
			}
			from = anchor.AddDate(0, 0, -policy.days)
		}
	}
	if to.IsZero() {
		to = today
	}
	if from.After(to) {
		from, to = to, from
	}
	if !earliest.IsZero() && from.Before(earliest) {
		from = earliest
	}
	if to.After(today) {
		to = today
	}
	// both bounds in the future, or both before the account existed
	if from.After(to) {
		from = to
	}
	if !earliest.IsZero() && to.Before(earliest) {
		from, to = earliest, earliest
	}
	return DateRange{From: from, To: to}
}
