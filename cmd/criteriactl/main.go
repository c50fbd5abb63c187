package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/eligibility/internal/config"
	"github.com/alfredjeanlab/eligibility/internal/ui"
)

var (
	profileName string
	jsonOutput  bool
	noColor     bool

	// env is opened by the root PersistentPreRunE and closed by main.
	env *app
)

var rootCmd = &cobra.Command{
	Use:           "criteriactl <command>",
	Short:         "Manage and evaluate eligibility criteria",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor || !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
		cfg, err := config.LoadProfile(profileName)
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		env = a
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "", "config profile to use (default: the active profile)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "criteria", Title: "Criteria:"},
		&cobra.Group{ID: "eval", Title: "Evaluation:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false

	// Criteria
	rootCmd.AddCommand(criteriaCmd)

	// Evaluation
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(resolveCmd)

	// System
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if env != nil {
		if cerr := env.Close(); cerr != nil {
			env.logger.Error("shutdown", "err", cerr)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
