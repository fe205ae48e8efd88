package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ============================================================
// Categories: fixed catalog, seeded once, read-only at runtime
// ============================================================

// CategoryType classifies a category as money in or money out.
type CategoryType string

const (
	CategoryIncome  CategoryType = "INCOME"
	CategoryExpense CategoryType = "EXPENSE"
)

// CategoryName is one of the closed set of catalog entries.
type CategoryName string

const (
	Salary           CategoryName = "SALARY"
	OtherIncome      CategoryName = "OTHER_INCOME"
	Groceries        CategoryName = "GROCERIES"
	Shopping         CategoryName = "SHOPPING"
	Rent             CategoryName = "RENT"
	ElectricityBill  CategoryName = "ELECTRICITY_BILL"
	DeliveryApps     CategoryName = "DELIVERY_APPS"
	Electronics      CategoryName = "ELECTRONICS"
	Health           CategoryName = "HEALTH"
	Travel           CategoryName = "TRAVEL"
	Entertainment    CategoryName = "ENTERTAINMENT"
	FoodAndBeverages CategoryName = "FOOD_AND_BEVERAGES"
	Loan             CategoryName = "LOAN"
	LoanInterest     CategoryName = "LOAN_INTEREST"
	OtherExpense     CategoryName = "OTHER_EXPENSE"
)

// categoryNames keeps catalog order stable for seeding and listing.
var categoryNames = []CategoryName{
	Salary, OtherIncome, Groceries, Shopping, Rent, ElectricityBill, DeliveryApps,
	Electronics, Health, Travel, Entertainment, FoodAndBeverages, Loan, LoanInterest,
	OtherExpense,
}

// categoryTypes is the single source of truth for INCOME/EXPENSE
// classification. The store seed and the aggregation predicates both read it.
var categoryTypes = map[CategoryName]CategoryType{
	Salary:           CategoryIncome,
	OtherIncome:      CategoryIncome,
	Groceries:        CategoryExpense,
	Shopping:         CategoryExpense,
	Rent:             CategoryExpense,
	ElectricityBill:  CategoryExpense,
	DeliveryApps:     CategoryExpense,
	Electronics:      CategoryExpense,
	Health:           CategoryExpense,
	Travel:           CategoryExpense,
	Entertainment:    CategoryExpense,
	FoodAndBeverages: CategoryExpense,
	Loan:             CategoryExpense,
	LoanInterest:     CategoryExpense,
	OtherExpense:     CategoryExpense,
}

// Category is a catalog entry.
type Category struct {
	Name CategoryName `json:"name"`
	Type CategoryType `json:"type"`
}

// Catalog returns the full seeded category list in catalog order.
func Catalog() []Category {
	out := make([]Category, 0, len(categoryNames))
	for _, n := range categoryNames {
		out = append(out, Category{Name: n, Type: categoryTypes[n]})
	}
	return out
}

// TypeOf returns the fixed type of a category name.
func TypeOf(name CategoryName) (CategoryType, bool) {
	t, ok := categoryTypes[name]
	return t, ok
}

// ParseCategoryName accepts any casing; "ALL" and "" are not names.
func ParseCategoryName(s string) (CategoryName, bool) {
	n := CategoryName(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := categoryTypes[n]
	return n, ok
}

// ParseCategoryType accepts any casing.
func ParseCategoryType(s string) (CategoryType, bool) {
	switch t := CategoryType(strings.ToUpper(strings.TrimSpace(s))); t {
	case CategoryIncome, CategoryExpense:
		return t, true
	}
	return "", false
}

// BalanceDelta returns the signed change a posted amount makes to the owner's
// balance: +amount for INCOME, -amount for EXPENSE.
func BalanceDelta(amount decimal.Decimal, categoryType CategoryType) (decimal.Decimal, error) {
	switch categoryType {
	case CategoryIncome:
		return amount, nil
	case CategoryExpense:
		return amount.Neg(), nil
	case "":
		return decimal.Zero, &ErrInvalidArgument{Argument: "categoryType", Reason: "must not be empty"}
	default:
		return decimal.Zero, &ErrInvalidArgument{Argument: "categoryType", Reason: "unknown type " + string(categoryType)}
	}
}
