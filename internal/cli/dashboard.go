package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pitabwire/workdesk/internal/dashboard"
)

func newDashboardCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Print the KPI snapshot; falls back to KPIs computed from the work orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := connect(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			snap, err := dashboard.Fetch(r.ctx, r.api)
			if err == nil {
				snap.FetchedAt = time.Now()
				return writeOut(cmd, app, map[string]any{"source": "api", "snapshot": snap})
			}
			if err := r.engine.Reload(r.ctx); err != nil {
				return writeErr(cmd, err)
			}
			local := dashboard.LocalSnapshot(r.engine.Records(), time.Now())
			return writeOut(cmd, app, map[string]any{"source": "local", "snapshot": local})
		},
	}
	cmd.AddCommand(newDashboardWatchCmd(app))
	return cmd
}

func newDashboardWatchCmd(app *App) *cobra.Command {
	var interval time.Duration
	var count int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print a snapshot on every poll until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			r, err := connect(ctx, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx, cancel := context.WithCancel(r.ctx)
			defer cancel()

			poller := dashboard.NewPoller(r.api, interval, nil, zap.NewNop())
			snapshots, unsubscribe := poller.Subscribe()
			defer unsubscribe()
			go poller.Run(ctx)

			printed := 0
			for snap := range snapshots {
				if err := writeOut(cmd, app, snap); err != nil {
					return err
				}
				printed++
				if count > 0 && printed >= count {
					return nil
				}
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", dashboard.DefaultInterval, "Poll interval")
	cmd.Flags().IntVar(&count, "count", 0, "Stop after this many snapshots (0 = until interrupted)")
	return cmd
}
