package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/boddenberg/finance-tracker-go/internal/config"
	"github.com/boddenberg/finance-tracker-go/internal/scheduler"
	"github.com/boddenberg/finance-tracker-go/internal/service"
)

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the recurring batch every day at RECURRING_RUN_AT",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := runDaily(cmd.Context(), a, a.processor()); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

func runDaily(ctx context.Context, a *app, proc *service.RecurringProcessor) error {
	hour, minute, err := config.ParseClock(a.cfg.RecurringRunAt)
	if err != nil {
		return err
	}
	daily := scheduler.NewDaily(hour, minute, a.cfg.Timezone, a.cfg.RecurringRunOnStart, a.clock, func(ctx context.Context) error {
		_, err := proc.Run(ctx)
		return err
	}, a.logger)
	return daily.Run(ctx)
}

func recurringCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recurring",
		Short: "Recurring transaction maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Fire every rule due today once and print the batch result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.processor().Run(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	})
	return cmd
}
