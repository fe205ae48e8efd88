// Package service provides the business logic layer (use cases): ledger
// mutations, recurring rules and their daily batch, reporting, and auth.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
	"github.com/boddenberg/finance-tracker-go/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-go/internal/port"
)

// Clock returns the current time in the tracker's timezone.
type Clock func() time.Time

// SystemClock is time.Now in the given location.
func SystemClock(loc *time.Location) Clock {
	return func() time.Time { return time.Now().In(loc) }
}

// publishEvent never fails the caller: the ledger change is already
// committed when it runs.
func publishEvent(ctx context.Context, pub port.EventPublisher, metrics *observability.Metrics, logger *zap.Logger, ev domain.LedgerEvent) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, ev); err != nil {
		metrics.IncrExternalError("amqp")
		logger.Warn("ledger event not published",
			zap.String("type", string(ev.Type)),
			zap.String("transaction_id", ev.TransactionID),
			zap.Error(err),
		)
	}
}
