package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/boddenberg/finance-tracker-go/internal/config"
	"github.com/boddenberg/finance-tracker-go/internal/infra/events"
	"github.com/boddenberg/finance-tracker-go/internal/infra/memory"
	"github.com/boddenberg/finance-tracker-go/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-go/internal/infra/postgres"
	"github.com/boddenberg/finance-tracker-go/internal/infra/resilience"
	"github.com/boddenberg/finance-tracker-go/internal/port"
	"github.com/boddenberg/finance-tracker-go/internal/service"
)

// app holds the wired infrastructure shared by every subcommand.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *observability.Metrics
	store   port.Store
	events  port.EventPublisher
	clock   service.Clock

	closers []func()
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.Env)
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: observability.NewMetrics(),
		clock:   service.SystemClock(cfg.Timezone),
	}
	a.closers = append(a.closers, func() { logger.Sync() })

	logger.Info("configuration loaded",
		zap.String("env", cfg.Env),
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("timezone", cfg.Timezone.String()),
		zap.Bool("database", cfg.DatabaseURL != ""),
		zap.Bool("events", cfg.AMQPURL != ""),
		zap.String("report_range_policy", cfg.ReportRangePolicy.String()),
		zap.Int("recurring_workers", cfg.RecurringWorkers),
		zap.String("recurring_run_at", cfg.RecurringRunAt),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(ctx, cfg.OTLPEndpoint, "finance-tracker")
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.closers = append(a.closers, func() { shutdown(context.Background()) })

	// --- Store ---
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using the in-memory store; data is lost on exit")
		a.store = memory.New()
	} else {
		if cfg.RunMigrations {
			if err := postgres.RunMigrations(cfg.DatabaseURL); err != nil {
				a.close()
				return nil, err
			}
			logger.Info("migrations applied")
		}
		pg, err := postgres.Open(ctx, cfg.DatabaseURL, cfg.DBMaxConns, logger)
		if err != nil {
			a.close()
			return nil, err
		}
		a.store = pg
		a.closers = append(a.closers, pg.Close)
	}

	// --- Events ---
	if cfg.AMQPURL == "" {
		a.events = events.Noop{}
	} else {
		cb := resilience.NewCircuitBreaker("amqp", logger)
		pub, err := events.Dial(cfg.AMQPURL, cfg.AMQPExchange, cb, resilience.Config{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: cfg.InitialBackoff,
		}, logger)
		if err != nil {
			a.close()
			return nil, err
		}
		a.events = pub
		a.closers = append(a.closers, func() { pub.Close() })
		logger.Info("ledger events enabled", zap.String("exchange", cfg.AMQPExchange))
	}

	return a, nil
}

func (a *app) processor() *service.RecurringProcessor {
	return service.NewRecurringProcessor(a.store, a.events, a.cfg.RecurringWorkers, a.clock, a.metrics, a.logger)
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
