package service

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
	"github.com/boddenberg/finance-tracker-go/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-go/internal/port"
)

var userTracer = otel.Tracer("service/user")

const categoriesCacheKey = "catalog"

// CatalogStore is what UserService needs from persistence.
type CatalogStore interface {
	port.UserStore
	port.CategoryStore
}

// UserService serves the profile and the category catalog.
type UserService struct {
	store   CatalogStore
	cache   port.Cache[[]domain.Category]
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewUserService creates a new user service. The catalog is cached since it
// never changes at runtime.
func NewUserService(store CatalogStore, cache port.Cache[[]domain.Category], metrics *observability.Metrics, logger *zap.Logger) *UserService {
	return &UserService{store: store, cache: cache, metrics: metrics, logger: logger}
}

func (s *UserService) Get(ctx context.Context, userID string) (*domain.UserResponse, error) {
	ctx, span := userTracer.Start(ctx, "UserService.Get")
	defer span.End()

	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &domain.UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Balance:   u.Balance,
		CreatedAt: u.CreatedAt,
	}, nil
}

// Categories lists the catalog for an existing user.
func (s *UserService) Categories(ctx context.Context, userID string) ([]domain.Category, error) {
	ctx, span := userTracer.Start(ctx, "UserService.Categories")
	defer span.End()

	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}

	cats, hit, err := s.cache.Load(ctx, categoriesCacheKey, s.store.ListCategories)
	if err != nil {
		return nil, err
	}
	if hit {
		s.metrics.IncrCacheHit("categories")
		return cats, nil
	}
	s.metrics.IncrCacheMiss("categories")
	s.logger.Debug("category catalog cached", zap.Int("count", len(cats)))
	return cats, nil
}
