package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/phrazzld/goalforge/internal/jobs"
	"github.com/phrazzld/goalforge/internal/queue"
	"github.com/spf13/cobra"
)

func newDeadLettersCommand() *cobra.Command {
	var (
		limit   int
		requeue []string
	)
	cmd := &cobra.Command{
		Use:       "dead-letters <" + strings.Join(jobs.Queues, "|") + ">",
		Short:     "List dead-lettered jobs or put them back on the queue",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: jobs.Queues,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			q, err := openQueue(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = q.close() }()

			if len(requeue) > 0 {
				return requeueDead(cmd.Context(), cmd.OutOrStdout(), q.backend, args[0], requeue)
			}
			return listDead(cmd.Context(), cmd.OutOrStdout(), q.backend, args[0], limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of jobs to list")
	cmd.Flags().StringSliceVar(&requeue, "requeue", nil, "job IDs to move back to the queue")
	return cmd
}

// deadLetter is the listing format, one JSON object per line.
type deadLetter struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Attempt   int             `json:"attempt"`
	LastError string          `json:"lastError"`
	FailedAt  string          `json:"failedAt,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

func listDead(ctx context.Context, w io.Writer, backend queue.Backend, name string, limit int) error {
	dead, err := backend.DeadLetters(ctx, name, limit)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	for _, job := range dead {
		d := deadLetter{
			ID:        job.ID,
			Name:      job.Name,
			Attempt:   job.Attempt,
			LastError: job.LastError,
			Payload:   job.Payload,
		}
		if job.FailedAt != nil {
			d.FailedAt = job.FailedAt.Format(time.RFC3339)
		}
		if err := enc.Encode(d); err != nil {
			return err
		}
	}
	return nil
}

func requeueDead(ctx context.Context, w io.Writer, backend queue.Backend, name string, ids []string) error {
	slices.Sort(ids)
	for _, id := range slices.Compact(ids) {
		if err := backend.RequeueDead(ctx, name, id); err != nil {
			return fmt.Errorf("failed to requeue %s: %w", id, err)
		}
		fmt.Fprintf(w, "requeued %s\n", id)
	}
	return nil
}
