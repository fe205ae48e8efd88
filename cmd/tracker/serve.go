package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
	"github.com/boddenberg/finance-tracker-go/internal/handler"
	"github.com/boddenberg/finance-tracker-go/internal/infra/cache"
	"github.com/boddenberg/finance-tracker-go/internal/service"
)

func serveCmd() *cobra.Command {
	var noScheduler bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (and the daily recurring batch unless disabled)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			catalog := cache.New[[]domain.Category](a.cfg.CacheTTL)
			defer catalog.Close()

			proc := a.processor()
			svc := handler.Services{
				Auth:         service.NewAuthService(a.store, a.cfg.JWTSecret, a.cfg.JWTAccessTTL, a.clock, a.logger),
				Users:        service.NewUserService(a.store, catalog, a.metrics, a.logger),
				Transactions: service.NewTransactionService(a.store, a.events, a.cfg.ReportRangePolicy, a.clock, a.metrics, a.logger),
				Recurring:    service.NewRecurringService(a.store, a.clock, a.logger),
				Processor:    proc,
				Dashboard:    service.NewDashboardService(a.store, a.cfg.ReportRangePolicy, a.clock),
				Store:        a.store,
			}
			if a.cfg.AdminToken == "" {
				a.logger.Info("ADMIN_TOKEN not set, admin routes disabled")
			}

			srv := &http.Server{
				Addr:         fmt.Sprintf(":%d", a.cfg.Port),
				Handler:      handler.NewRouter(svc, a.cfg.AdminToken, a.metrics, a.logger),
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 30 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				a.logger.Info("server starting", zap.Int("port", a.cfg.Port))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				a.logger.Info("server shutting down...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			if !noScheduler {
				g.Go(func() error {
					return runDaily(gctx, a, proc)
				})
			}

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			a.logger.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "do not run the daily recurring batch in this process")
	return cmd
}
