package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/eligibility/internal/config"
	eligsync "github.com/alfredjeanlab/eligibility/internal/sync"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a JSONL snapshot of criteria and their owners",
	Long: `Writes every stored criteria and the owners of the selected apps as JSONL.
Output goes to stdout unless --out or --s3 is given; both may be combined.`,
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		apps, _ := cmd.Flags().GetStringSlice("app")
		out, _ := cmd.Flags().GetString("out")
		toS3, _ := cmd.Flags().GetBool("s3")
		if len(apps) == 0 {
			apps = env.cfg.Apps
		}

		var dests []eligsync.Destination
		if out != "" {
			dests = append(dests, eligsync.NewFileDestination(out))
		}
		if toS3 {
			d, err := s3Destination(ctx, env.cfg)
			if err != nil {
				return err
			}
			dests = append(dests, d)
		}
		if len(dests) == 0 {
			dests = append(dests, eligsync.NewWriterDestination(os.Stdout))
		}

		return eligsync.NewScheduler(env.owners, env.criteria, apps, dests, 0, env.logger).SyncOnce(ctx)
	},
}

func init() {
	exportCmd.Flags().StringSlice("app", nil, "app whose owners to include (repeatable; default: configured apps)")
	exportCmd.Flags().StringP("out", "o", "", "write the snapshot to this file")
	exportCmd.Flags().Bool("s3", false, "upload the snapshot to the configured S3 bucket")
}

func s3Destination(ctx context.Context, cfg *config.Config) (*eligsync.S3Destination, error) {
	if cfg.SyncS3Bucket == "" {
		return nil, errors.New("ELIGIBILITY_SYNC_S3_BUCKET is not set")
	}
	d, err := eligsync.NewS3Destination(ctx, cfg.SyncS3Bucket, cfg.SyncS3Key, cfg.SyncS3Region, cfg.SyncS3Endpoint)
	if err != nil {
		return nil, fmt.Errorf("creating S3 destination: %w", err)
	}
	return d, nil
}

// configuredDestinations returns every destination enabled in cfg.
func configuredDestinations(ctx context.Context, cfg *config.Config) ([]eligsync.Destination, error) {
	var dests []eligsync.Destination
	if cfg.SyncS3Bucket != "" {
		d, err := s3Destination(ctx, cfg)
		if err != nil {
			return nil, err
		}
		dests = append(dests, d)
	}
	if cfg.SyncFile != "" {
		dests = append(dests, eligsync.NewFileDestination(cfg.SyncFile))
	}
	return dests, nil
}
