package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Users
// ============================================================

// User owns transactions and recurring rules. Balance changes only through a
// ledger unit of work (see port.LedgerTx).
type User struct {
	ID           string          `json:"id"`
	Username     string          `json:"username"`
	PasswordHash string          `json:"-"`
	Balance      decimal.Decimal `json:"balance"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// UserResponse is returned by GET /api/user.
type UserResponse struct {
	ID        string          `json:"id"`
	Username  string          `json:"username"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"createdAt"`
}

// ============================================================
// Transactions (ledger entries)
// ============================================================

// Transaction is a posted ledger entry. Amount is always positive; the sign of
// its balance effect comes from Category.Type.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	Category    Category        `json:"category"`
	Name        string          `json:"name"`
	Amount      decimal.Decimal `json:"amount"`
	Datetime    time.Time       `json:"datetime"`
	PaymentMode string          `json:"paymentMode"`
	Note        string          `json:"note,omitempty"`
}

// TransactionRequest is the body of create and update.
type TransactionRequest struct {
	CategoryName string              `json:"categoryName"`
	Name         string              `json:"name"`
	Amount       decimal.NullDecimal `json:"amount"`
	PaymentMode  string              `json:"paymentMode"`
	Note         string              `json:"note"`
}

// Validate trims the text fields, checks the required ones and returns the
// parsed category name.
func (r *TransactionRequest) Validate() (CategoryName, error) {
	r.Name = strings.TrimSpace(r.Name)
	r.PaymentMode = strings.TrimSpace(r.PaymentMode)
	r.Note = strings.TrimSpace(r.Note)

	name, ok := ParseCategoryName(r.CategoryName)
	if !ok {
		return "", &ErrValidation{Field: "categoryName", Message: "unknown category " + r.CategoryName}
	}
	if r.Name == "" {
		return "", &ErrValidation{Field: "name", Message: "required"}
	}
	if err := validateAmount(r.Amount); err != nil {
		return "", err
	}
	if r.PaymentMode == "" {
		return "", &ErrValidation{Field: "paymentMode", Message: "required"}
	}
	return name, nil
}

// TransactionQuery holds the optional filters of the listing endpoint. Zero
// values mean "no filter".
type TransactionQuery struct {
	From         time.Time
	To           time.Time
	CategoryType CategoryType
	CategoryName CategoryName
	Name         string
	PaymentMode  string
	Note         string
	MinAmount    decimal.NullDecimal
	MaxAmount    decimal.NullDecimal
}

// TransactionFilter is the store-level predicate for listing.
type TransactionFilter struct {
	UserID       string
	Start        time.Time // inclusive
	End          time.Time // exclusive
	CategoryType CategoryType
	CategoryName CategoryName
	Name         string
	PaymentMode  string
	Note         string
	MinAmount    decimal.NullDecimal
	MaxAmount    decimal.NullDecimal
}

// Matches reports whether t satisfies every set predicate. Stores without a
// query language use it directly; the SQL store mirrors it.
func (f TransactionFilter) Matches(t Transaction) bool {
	if t.UserID != f.UserID {
		return false
	}
	if t.Datetime.Before(f.Start) || !t.Datetime.Before(f.End) {
		return false
	}
	if f.CategoryType != "" && t.Category.Type != f.CategoryType {
		return false
	}
	if f.CategoryName != "" && t.Category.Name != f.CategoryName {
		return false
	}
	if !containsFold(t.Name, f.Name) || !containsFold(t.PaymentMode, f.PaymentMode) || !containsFold(t.Note, f.Note) {
		return false
	}
	if f.MinAmount.Valid && t.Amount.LessThan(f.MinAmount.Decimal) {
		return false
	}
	if f.MaxAmount.Valid && t.Amount.GreaterThan(f.MaxAmount.Decimal) {
		return false
	}
	return true
}

func containsFold(s, sub string) bool {
	if sub == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// TransactionListResponse is returned by GET /api/transaction.
type TransactionListResponse struct {
	Username          string          `json:"username"`
	FromDate          string          `json:"fromDate"`
	ToDate            string          `json:"toDate"`
	TransactionsCount int             `json:"transactionsCount"`
	TotalIncome       decimal.Decimal `json:"totalIncome"`
	TotalExpense      decimal.Decimal `json:"totalExpense"`
	TotalDelta        decimal.Decimal `json:"totalDelta"`
	Transactions      []Transaction   `json:"transactions"`
}

// ============================================================
// Recurring rules
// ============================================================

// RecurringTransaction is a rule that periodically spawns ledger entries.
type RecurringTransaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	Category    Category        `json:"category"`
	Name        string          `json:"name"`
	Amount      decimal.Decimal `json:"amount"`
	Frequency   Frequency       `json:"frequency"`
	NextRunDate time.Time       `json:"-"`
}

// RecurringRequest is the body of create and update. NextRunDate is the
// optional anchor the first run is computed from.
type RecurringRequest struct {
	CategoryName string              `json:"categoryName"`
	Name         string              `json:"name"`
	Amount       decimal.NullDecimal `json:"amount"`
	Frequency    string              `json:"frequency"`
	NextRunDate  string              `json:"nextRunDate"`
}

// ValidRecurringRequest is a RecurringRequest after parsing.
type ValidRecurringRequest struct {
	CategoryName CategoryName
	Name         string
	Amount       decimal.Decimal
	Frequency    Frequency
	Anchor       time.Time
}

// Validate parses and checks the request.
func (r *RecurringRequest) Validate() (*ValidRecurringRequest, error) {
	name, ok := ParseCategoryName(r.CategoryName)
	if !ok {
		return nil, &ErrValidation{Field: "categoryName", Message: "unknown category " + r.CategoryName}
	}
	if strings.TrimSpace(r.Name) == "" {
		return nil, &ErrValidation{Field: "name", Message: "required"}
	}
	if err := validateAmount(r.Amount); err != nil {
		return nil, err
	}
	freq, ok := ParseFrequency(r.Frequency)
	if !ok {
		return nil, &ErrValidation{Field: "frequency", Message: "must be one of DAILY, WEEKLY, MONTHLY, YEARLY"}
	}
	anchor, err := ParseDate(r.NextRunDate)
	if err != nil {
		return nil, &ErrValidation{Field: "nextRunDate", Message: "invalid format, use YYYY-MM-DD"}
	}
	return &ValidRecurringRequest{
		CategoryName: name,
		Name:         strings.TrimSpace(r.Name),
		Amount:       r.Amount.Decimal,
		Frequency:    freq,
		Anchor:       anchor,
	}, nil
}

// RecurringResponse renders a rule with a calendar date.
type RecurringResponse struct {
	ID          string          `json:"id"`
	Category    Category        `json:"category"`
	Name        string          `json:"name"`
	Amount      decimal.Decimal `json:"amount"`
	Frequency   Frequency       `json:"frequency"`
	NextRunDate string          `json:"nextRunDate"`
}

// NewRecurringResponse formats rt for the API.
func NewRecurringResponse(rt *RecurringTransaction) RecurringResponse {
	return RecurringResponse{
		ID:          rt.ID,
		Category:    rt.Category,
		Name:        rt.Name,
		Amount:      rt.Amount,
		Frequency:   rt.Frequency,
		NextRunDate: rt.NextRunDate.Format(DateLayout),
	}
}

// RecurringRunResult summarizes one batch run.
type RecurringRunResult struct {
	ProcessingDate string `json:"processingDate"`
	Due            int    `json:"due"`
	Fired          int    `json:"fired"`
	Skipped        int    `json:"skipped"`
	Failed         int    `json:"failed"`
}

// RecurringStats is a snapshot of batch counters since process start.
type RecurringStats struct {
	Fired   int64 `json:"fired"`
	Skipped int64 `json:"skipped"`
	Failed  int64 `json:"failed"`
	Runs    int64 `json:"runs"`
	// LastRunAt is nil until the first batch completes.
	LastRunAt *time.Time `json:"lastRunAt,omitempty"`
}

func validateAmount(a decimal.NullDecimal) error {
	if !a.Valid {
		return &ErrValidation{Field: "amount", Message: "required"}
	}
	if !a.Decimal.IsPositive() {
		return &ErrValidation{Field: "amount", Message: "must be positive"}
	}
	return nil
}
