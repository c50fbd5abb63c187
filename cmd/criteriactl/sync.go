package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	eligsync "github.com/alfredjeanlab/eligibility/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Export snapshots to the configured destinations on an interval",
	Long: `Runs until interrupted, writing a snapshot at startup and then every
interval to the S3 bucket and file named in the configuration.`,
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		interval := env.cfg.SyncInterval
		if cmd.Flags().Changed("interval") {
			interval, _ = cmd.Flags().GetDuration("interval")
		}
		if interval <= 0 {
			return errors.New("sync interval must be positive")
		}

		dests, err := configuredDestinations(ctx, env.cfg)
		if err != nil {
			return err
		}
		if len(dests) == 0 {
			return errors.New("no sync destinations configured (set ELIGIBILITY_SYNC_S3_BUCKET or ELIGIBILITY_SYNC_FILE)")
		}

		scheduler := eligsync.NewScheduler(env.owners, env.criteria, env.cfg.Apps, dests, interval, env.logger)
		env.logger.Info("sync scheduler started", "interval", interval, "destinations", len(dests))
		if err := scheduler.Run(ctx); err != nil {
			return err
		}
		env.logger.Info("sync scheduler stopped")
		return nil
	},
}

func init() {
	syncCmd.Flags().Duration("interval", 3*time.Minute, "time between snapshots (default: the configured interval)")
}
