package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"radhiant_ops/internal/jobs"
)

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run the auto sign-out sweep and retention purge once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), jobs.AutoSignOutJobName, func(a *app) any {
				return a.sweep.LastReport()
			})
		},
	}
}

func outboxCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "outbox",
		Short: "Deliver one batch of pending booking notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), jobs.OutboxJobName, nil)
		},
	}
}

// runOnce runs a scheduled job immediately under its lock and prints report
// as JSON when given.
func runOnce(ctx context.Context, name string, report func(*app) any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.scheduler.RunNow(ctx, name); err != nil {
		return err
	}
	if report == nil {
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report(a))
}
