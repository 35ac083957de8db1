package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/phrazzld/goalforge/internal/scheduler"
	"github.com/spf13/cobra"
)

func newTriggerCommand() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:       "trigger <" + strings.Join(scheduler.Triggers(), "|") + ">",
		Short:     "Fire a maintenance trigger now",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: scheduler.Triggers(),
		RunE: func(cmd *cobra.Command, args []string) error {
			when := time.Now()
			if at != "" {
				var err error
				if when, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
			}

			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			q, err := openQueue(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = q.close() }()

			sched, err := scheduler.New(cfg.Schedule, q.enqueuer, logger)
			if err != nil {
				return err
			}
			out, err := sched.Fire(cmd.Context(), args[0], when)
			if err != nil {
				return err
			}
			for _, job := range out {
				printJob(cmd.OutOrStdout(), job)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "fire as of this RFC 3339 time (default now)")
	return cmd
}
