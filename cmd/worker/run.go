package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/phrazzld/goalforge/internal/scheduler"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newRunCommand() *cobra.Command {
	var noScheduler bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Consume every queue and fire the maintenance schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, stop := withSignals(cmd)
			defer stop()

			app, err := newApplication(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer app.close()

			handlers, err := app.processors(ctx)
			if err != nil {
				return err
			}
			workers, err := app.workers(handlers)
			if err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			for _, w := range workers {
				g.Go(func() error { return w.Run(gctx) })
			}
			if noScheduler {
				logger.Info("scheduler disabled by flag")
			} else {
				sched, err := scheduler.New(cfg.Schedule, app.queue.enqueuer, logger)
				if err != nil {
					return fmt.Errorf("failed to create scheduler: %w", err)
				}
				g.Go(func() error { return sched.Run(gctx) })
			}
			router := newRouter(app.healthChecks(), app.registry, logger)
			g.Go(func() error {
				return serveHTTP(gctx, cfg.Server.Port, router, cfg.Server.ShutdownTimeout, logger)
			})

			logger.Info("worker started", "queues", len(workers), "scheduler", !noScheduler)
			err = g.Wait()
			if err != nil && ctx.Err() == nil {
				return err
			}
			logger.Info("worker stopped")
			return nil
		},
	}
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "consume queues without firing the maintenance schedule")
	return cmd
}

// withSignals cancels the command context on SIGINT or SIGTERM.
func withSignals(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}
