package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
	"github.com/boddenberg/finance-tracker-go/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-go/internal/infra/resilience"
	"github.com/boddenberg/finance-tracker-go/internal/port"
)

// ProcessorStore is what RecurringProcessor needs from persistence.
type ProcessorStore interface {
	port.LedgerStore
	ListDueRecurring(ctx context.Context, dueBy time.Time) ([]domain.RecurringTransaction, error)
}

// RecurringProcessor materializes due recurring rules into ledger entries.
// Each rule fires in its own unit of work; one failing rule never stops the
// others. A rule several periods behind fires once per run and advances a
// single period (floored to tomorrow), so it catches up without back-dated
// entries.
type RecurringProcessor struct {
	store    ProcessorStore
	events   port.EventPublisher
	bulkhead *resilience.Bulkhead
	clock    Clock
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewRecurringProcessor creates a processor firing at most workers rules at once.
func NewRecurringProcessor(store ProcessorStore, events port.EventPublisher, workers int, clock Clock, metrics *observability.Metrics, logger *zap.Logger) *RecurringProcessor {
	return &RecurringProcessor{
		store:    store,
		events:   events,
		bulkhead: resilience.NewBulkhead(workers),
		clock:    clock,
		metrics:  metrics,
		logger:   logger,
	}
}

type fireOutcome int

const (
	outcomeFired fireOutcome = iota
	outcomeSkipped
)

// Run processes every rule due on or before today. Re-running on the same day
// is a no-op for rules that already fired, since firing moves them past today.
func (p *RecurringProcessor) Run(ctx context.Context) (*domain.RecurringRunResult, error) {
	ctx, span := recurringTracer.Start(ctx, "RecurringProcessor.Run")
	defer span.End()

	started := time.Now()
	today := domain.DateOf(p.clock())
	due, err := p.store.ListDueRecurring(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("list due recurring: %w", err)
	}
	span.SetAttributes(attribute.Int("recurring.due", len(due)))

	var fired, skipped, failed atomic.Int64
	var g errgroup.Group
	for _, rule := range due {
		rule := rule
		g.Go(func() error {
			if err := p.bulkhead.Acquire(ctx); err != nil {
				return err
			}
			defer p.bulkhead.Release()

			outcome, err := p.fire(ctx, rule.ID, today)
			switch {
			case err != nil:
				failed.Add(1)
				p.metrics.IncrRecurring(observability.RecurringFailed)
				p.logger.Error("recurring rule failed, continuing batch",
					zap.String("recurring_id", rule.ID),
					zap.String("user_id", rule.UserID),
					zap.Error(err),
				)
			case outcome == outcomeSkipped:
				skipped.Add(1)
				p.metrics.IncrRecurring(observability.RecurringSkipped)
			default:
				fired.Add(1)
				p.metrics.IncrRecurring(observability.RecurringFired)
			}
			return nil
		})
	}
	runErr := g.Wait()

	result := &domain.RecurringRunResult{
		ProcessingDate: today.Format(domain.DateLayout),
		Due:            len(due),
		Fired:          int(fired.Load()),
		Skipped:        int(skipped.Load()),
		Failed:         int(failed.Load()),
	}
	p.metrics.RecordRecurringRun(p.clock(), time.Since(started))
	p.logger.Info("recurring batch finished",
		zap.String("processing_date", result.ProcessingDate),
		zap.Int("due", result.Due),
		zap.Int("fired", result.Fired),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, runErr
}

// fire applies one rule: balance, ledger entry and next run date commit
// together or not at all.
func (p *RecurringProcessor) fire(ctx context.Context, ruleID string, today time.Time) (fireOutcome, error) {
	ctx, span := recurringTracer.Start(ctx, "RecurringProcessor.fire")
	defer span.End()
	span.SetAttributes(attribute.String("recurring.id", ruleID))

	var (
		outcome = outcomeFired
		entry   *domain.Transaction
		delta   decimal.Decimal
		balance decimal.Decimal
	)
	err := p.store.WithinTx(ctx, func(ctx context.Context, tx port.LedgerTx) error {
		rule, err := tx.LockDueRecurring(ctx, ruleID, today)
		if err != nil {
			return err
		}
		if rule == nil {
			outcome = outcomeSkipped
			return nil
		}
		user, err := tx.LockUser(ctx, rule.UserID)
		if err != nil {
			return err
		}
		delta, err = domain.BalanceDelta(rule.Amount, rule.Category.Type)
		if err != nil {
			return err
		}
		next, err := domain.NextRunDate(rule.Frequency, rule.NextRunDate, today)
		if err != nil {
			return err
		}

		entry = &domain.Transaction{
			ID:          uuid.NewString(),
			UserID:      rule.UserID,
			Category:    rule.Category,
			Name:        domain.AutomatedPrefix + rule.Name,
			Amount:      rule.Amount,
			Datetime:    domain.WallClock(p.clock()),
			PaymentMode: domain.AutomatedPrefix + rule.Name,
			Note:        domain.AutomatedNote,
		}
		balance = user.Balance.Add(delta)
		rule.NextRunDate = next

		if err := tx.SetBalance(ctx, rule.UserID, balance); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, entry); err != nil {
			return err
		}
		return tx.SaveRecurring(ctx, rule)
	})
	if err != nil || outcome == outcomeSkipped {
		return outcome, err
	}

	p.logger.Info("recurring rule fired",
		zap.String("recurring_id", ruleID),
		zap.String("user_id", entry.UserID),
		zap.String("transaction_id", entry.ID),
		zap.String("delta", delta.String()),
	)
	publishEvent(ctx, p.events, p.metrics, p.logger, domain.LedgerEvent{
		Type:          domain.EventRecurringFired,
		UserID:        entry.UserID,
		TransactionID: entry.ID,
		RecurringID:   ruleID,
		Amount:        entry.Amount,
		Delta:         delta,
		Balance:       balance,
		OccurredAt:    entry.Datetime,
	})
	return outcomeFired, nil
}
