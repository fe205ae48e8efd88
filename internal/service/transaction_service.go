package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
	"github.com/boddenberg/finance-tracker-go/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-go/internal/port"
)

var txTracer = otel.Tracer("service/transaction")

// TransactionStore is what TransactionService needs from persistence.
type TransactionStore interface {
	port.LedgerStore
	port.ReportStore
	port.UserStore
}

// TransactionService posts, edits and removes ledger entries and keeps the
// owner's balance equal to opening balance + sum of BalanceDelta.
type TransactionService struct {
	store   TransactionStore
	events  port.EventPublisher
	policy  domain.FloorPolicy
	clock   Clock
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewTransactionService creates a new transaction service.
func NewTransactionService(store TransactionStore, events port.EventPublisher, policy domain.FloorPolicy, clock Clock, metrics *observability.Metrics, logger *zap.Logger) *TransactionService {
	return &TransactionService{store: store, events: events, policy: policy, clock: clock, metrics: metrics, logger: logger}
}

// ============================================================
// Create
// ============================================================

func (s *TransactionService) Create(ctx context.Context, userID string, req *domain.TransactionRequest) (*domain.Transaction, error) {
	ctx, span := txTracer.Start(ctx, "TransactionService.Create")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	catName, err := req.Validate()
	if err != nil {
		return nil, err
	}

	var created *domain.Transaction
	var delta, balance decimal.Decimal
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx port.LedgerTx) error {
		user, err := tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}
		cat, err := tx.GetCategory(ctx, catName)
		if err != nil {
			return err
		}
		delta, err = domain.BalanceDelta(req.Amount.Decimal, cat.Type)
		if err != nil {
			return err
		}

		created = &domain.Transaction{
			ID:          uuid.NewString(),
			UserID:      userID,
			Category:    *cat,
			Name:        req.Name,
			Amount:      req.Amount.Decimal,
			Datetime:    domain.WallClock(s.clock()),
			PaymentMode: req.PaymentMode,
			Note:        req.Note,
		}
		balance = user.Balance.Add(delta)

		if err := tx.SetBalance(ctx, userID, balance); err != nil {
			return err
		}
		return tx.InsertTransaction(ctx, created)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrLedgerMutation("create")
	s.logger.Info("transaction created",
		zap.String("user_id", userID),
		zap.String("transaction_id", created.ID),
		zap.String("category", string(created.Category.Name)),
		zap.String("amount", created.Amount.String()),
		zap.String("balance", balance.String()),
	)
	publishEvent(ctx, s.events, s.metrics, s.logger, domain.LedgerEvent{
		Type:          domain.EventTransactionCreated,
		UserID:        userID,
		TransactionID: created.ID,
		Amount:        created.Amount,
		Delta:         delta,
		Balance:       balance,
		OccurredAt:    created.Datetime,
	})
	return created, nil
}

// ============================================================
// Update
// ============================================================

// Update replaces category, name, amount, payment mode and note. The old
// effect is reversed with the entry's old category.
func (s *TransactionService) Update(ctx context.Context, userID, transactionID string, req *domain.TransactionRequest) (*domain.Transaction, error) {
	ctx, span := txTracer.Start(ctx, "TransactionService.Update")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("transaction.id", transactionID),
	)

	catName, err := req.Validate()
	if err != nil {
		return nil, err
	}

	var updated *domain.Transaction
	var net, balance decimal.Decimal
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx port.LedgerTx) error {
		user, err := tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}
		existing, err := tx.GetTransaction(ctx, userID, transactionID)
		if err != nil {
			return err
		}
		cat, err := tx.GetCategory(ctx, catName)
		if err != nil {
			return err
		}
		oldDelta, err := domain.BalanceDelta(existing.Amount, existing.Category.Type)
		if err != nil {
			return err
		}
		newDelta, err := domain.BalanceDelta(req.Amount.Decimal, cat.Type)
		if err != nil {
			return err
		}

		net = newDelta.Sub(oldDelta)
		balance = user.Balance.Add(net)

		updated = existing
		updated.Category = *cat
		updated.Name = req.Name
		updated.Amount = req.Amount.Decimal
		updated.PaymentMode = req.PaymentMode
		updated.Note = req.Note

		if err := tx.SetBalance(ctx, userID, balance); err != nil {
			return err
		}
		return tx.UpdateTransaction(ctx, updated)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrLedgerMutation("update")
	s.logger.Info("transaction updated",
		zap.String("user_id", userID),
		zap.String("transaction_id", transactionID),
		zap.String("net_delta", net.String()),
		zap.String("balance", balance.String()),
	)
	publishEvent(ctx, s.events, s.metrics, s.logger, domain.LedgerEvent{
		Type:          domain.EventTransactionUpdated,
		UserID:        userID,
		TransactionID: transactionID,
		Amount:        updated.Amount,
		Delta:         net,
		Balance:       balance,
		OccurredAt:    domain.WallClock(s.clock()),
	})
	return updated, nil
}

// ============================================================
// Delete
// ============================================================

func (s *TransactionService) Delete(ctx context.Context, userID, transactionID string) error {
	ctx, span := txTracer.Start(ctx, "TransactionService.Delete")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("transaction.id", transactionID),
	)

	var removed *domain.Transaction
	var reversal, balance decimal.Decimal
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx port.LedgerTx) error {
		user, err := tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}
		removed, err = tx.GetTransaction(ctx, userID, transactionID)
		if err != nil {
			return err
		}
		delta, err := domain.BalanceDelta(removed.Amount, removed.Category.Type)
		if err != nil {
			return err
		}

		reversal = delta.Neg()
		balance = user.Balance.Add(reversal)

		if err := tx.SetBalance(ctx, userID, balance); err != nil {
			return err
		}
		return tx.DeleteTransaction(ctx, userID, transactionID)
	})
	if err != nil {
		return err
	}

	s.metrics.IncrLedgerMutation("delete")
	s.logger.Info("transaction deleted",
		zap.String("user_id", userID),
		zap.String("transaction_id", transactionID),
		zap.String("balance", balance.String()),
	)
	publishEvent(ctx, s.events, s.metrics, s.logger, domain.LedgerEvent{
		Type:          domain.EventTransactionDeleted,
		UserID:        userID,
		TransactionID: transactionID,
		Amount:        removed.Amount,
		Delta:         reversal,
		Balance:       balance,
		OccurredAt:    domain.WallClock(s.clock()),
	})
	return nil
}

// ============================================================
// List (read side)
// ============================================================

// List returns the filtered entries of the normalized window. Income and
// expense totals cover the whole window regardless of the filters.
func (s *TransactionService) List(ctx context.Context, userID string, q domain.TransactionQuery) (*domain.TransactionListResponse, error) {
	ctx, span := txTracer.Start(ctx, "TransactionService.List")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	rng := domain.NormalizeRange(q.From, q.To, s.policy, user.CreatedAt, s.clock())
	start, end := rng.Start(), rng.End()

	var (
		entries []domain.Transaction
		income  decimal.Decimal
		expense decimal.Decimal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, err = s.store.ListTransactions(gctx, domain.TransactionFilter{
			UserID:       userID,
			Start:        start,
			End:          end,
			CategoryType: q.CategoryType,
			CategoryName: q.CategoryName,
			Name:         q.Name,
			PaymentMode:  q.PaymentMode,
			Note:         q.Note,
			MinAmount:    q.MinAmount,
			MaxAmount:    q.MaxAmount,
		})
		return err
	})
	g.Go(func() error {
		var err error
		income, err = s.store.SumAmount(gctx, domain.AggregateQuery{UserID: userID, Start: start, End: end, CategoryType: domain.CategoryIncome})
		return err
	})
	g.Go(func() error {
		var err error
		expense, err = s.store.SumAmount(gctx, domain.AggregateQuery{UserID: userID, Start: start, End: end, CategoryType: domain.CategoryExpense})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &domain.TransactionListResponse{
		Username:          user.Username,
		FromDate:          rng.From.Format(domain.DateLayout),
		ToDate:            rng.To.Format(domain.DateLayout),
		TransactionsCount: len(entries),
		TotalIncome:       income,
		TotalExpense:      expense,
		TotalDelta:        income.Sub(expense),
		Transactions:      entries,
	}, nil
}
