package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Dashboard
// ============================================================

// DashboardResponse is returned by GET /api/dashboard.
type DashboardResponse struct {
	Username                 string                `json:"username"`
	Balance                  decimal.Decimal       `json:"balance"`
	FromDate                 string                `json:"fromDate"`
	ToDate                   string                `json:"toDate"`
	TotalIncome              decimal.Decimal       `json:"totalIncome"`
	TotalExpense             decimal.Decimal       `json:"totalExpense"`
	TransactionsCount        int                   `json:"transactionsCount"`
	IncomeTransactionsCount  int                   `json:"incomeTransactionsCount"`
	ExpenseTransactionsCount int                   `json:"expenseTransactionsCount"`
	TotalSalaryIncome        decimal.Decimal       `json:"totalSalaryIncome"`
	TotalOtherIncome         decimal.Decimal       `json:"totalOtherIncome"`
	ExpenseBreakdown         []ExpenseCategoryStat `json:"expenseBreakdown"`
}

// ExpenseCategoryStat is one row of the per-category expense breakdown.
type ExpenseCategoryStat struct {
	Category         CategoryName    `json:"category"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	TransactionCount int             `json:"transactionCount"`
}

// AggregateQuery selects transactions in a window, optionally narrowed to a
// category type and name. It mirrors the INCOME/EXPENSE split of BalanceDelta.
type AggregateQuery struct {
	UserID       string
	Start        time.Time // inclusive
	End          time.Time // exclusive
	CategoryType CategoryType
	CategoryName CategoryName
}
