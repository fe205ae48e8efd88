package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Text stamped on ledger entries created by the recurring processor.
const (
	AutomatedPrefix = "Automated by: "
	AutomatedNote   = "Payment tracked automatically by recurring transaction"
)

// LedgerEventType names a committed balance-affecting change.
type LedgerEventType string

const (
	EventTransactionCreated LedgerEventType = "transaction.created"
	EventTransactionUpdated LedgerEventType = "transaction.updated"
	EventTransactionDeleted LedgerEventType = "transaction.deleted"
	EventRecurringFired     LedgerEventType = "recurring.fired"
)

// LedgerEvent is published after the unit of work that produced it commits.
type LedgerEvent struct {
	Type          LedgerEventType `json:"type"`
	UserID        string          `json:"userId"`
	TransactionID string          `json:"transactionId"`
	RecurringID   string          `json:"recurringId,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Delta         decimal.Decimal `json:"delta"`
	Balance       decimal.Decimal `json:"balance"`
	OccurredAt    time.Time       `json:"occurredAt"`
}
