package service

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
	"github.com/boddenberg/finance-tracker-go/internal/port"
)

var recurringTracer = otel.Tracer("service/recurring")

// RecurringRuleStore is what RecurringService needs from persistence.
type RecurringRuleStore interface {
	port.RecurringStore
	port.CategoryStore
	port.UserStore
}

// RecurringService manages recurring rule definitions. Rules never touch the
// balance here; only RecurringProcessor fires them.
type RecurringService struct {
	store  RecurringRuleStore
	clock  Clock
	logger *zap.Logger
}

// NewRecurringService creates a new recurring rule service.
func NewRecurringService(store RecurringRuleStore, clock Clock, logger *zap.Logger) *RecurringService {
	return &RecurringService{store: store, clock: clock, logger: logger}
}

func (s *RecurringService) List(ctx context.Context, userID string) ([]domain.RecurringResponse, error) {
	ctx, span := recurringTracer.Start(ctx, "RecurringService.List")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	rules, err := s.store.ListRecurring(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.RecurringResponse, 0, len(rules))
	for i := range rules {
		out = append(out, domain.NewRecurringResponse(&rules[i]))
	}
	return out, nil
}

// Create schedules the first run one period after the anchor (today when
// absent), never earlier than tomorrow.
func (s *RecurringService) Create(ctx context.Context, userID string, req *domain.RecurringRequest) (*domain.RecurringResponse, error) {
	ctx, span := recurringTracer.Start(ctx, "RecurringService.Create")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	v, err := req.Validate()
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	cat, err := s.store.GetCategory(ctx, v.CategoryName)
	if err != nil {
		return nil, err
	}
	next, err := domain.NextRunDate(v.Frequency, v.Anchor, s.clock())
	if err != nil {
		return nil, err
	}

	rt := &domain.RecurringTransaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Category:    *cat,
		Name:        v.Name,
		Amount:      v.Amount,
		Frequency:   v.Frequency,
		NextRunDate: next,
	}
	if err := s.store.CreateRecurring(ctx, rt); err != nil {
		return nil, err
	}

	s.logger.Info("recurring rule created",
		zap.String("user_id", userID),
		zap.String("recurring_id", rt.ID),
		zap.String("frequency", string(rt.Frequency)),
		zap.String("next_run_date", rt.NextRunDate.Format(domain.DateLayout)),
	)
	resp := domain.NewRecurringResponse(rt)
	return &resp, nil
}

// Update fully replaces the rule. The next run date is recomputed from the
// request's anchor only when the frequency changes.
func (s *RecurringService) Update(ctx context.Context, userID, id string, req *domain.RecurringRequest) (*domain.RecurringResponse, error) {
	ctx, span := recurringTracer.Start(ctx, "RecurringService.Update")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("recurring.id", id),
	)

	v, err := req.Validate()
	if err != nil {
		return nil, err
	}
	rt, err := s.store.GetRecurring(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	cat, err := s.store.GetCategory(ctx, v.CategoryName)
	if err != nil {
		return nil, err
	}
	if v.Frequency != rt.Frequency {
		next, err := domain.NextRunDate(v.Frequency, v.Anchor, s.clock())
		if err != nil {
			return nil, err
		}
		rt.NextRunDate = next
	}

	rt.Category = *cat
	rt.Name = v.Name
	rt.Amount = v.Amount
	rt.Frequency = v.Frequency
	if err := s.store.UpdateRecurring(ctx, rt); err != nil {
		return nil, err
	}

	s.logger.Info("recurring rule updated",
		zap.String("user_id", userID),
		zap.String("recurring_id", id),
		zap.String("next_run_date", rt.NextRunDate.Format(domain.DateLayout)),
	)
	resp := domain.NewRecurringResponse(rt)
	return &resp, nil
}

func (s *RecurringService) Delete(ctx context.Context, userID, id string) error {
	ctx, span := recurringTracer.Start(ctx, "RecurringService.Delete")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("recurring.id", id),
	)

	if err := s.store.DeleteRecurring(ctx, userID, id); err != nil {
		return err
	}
	s.logger.Info("recurring rule deleted", zap.String("user_id", userID), zap.String("recurring_id", id))
	return nil
}
