package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	eligsync "github.com/alfredjeanlab/eligibility/internal/sync"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Restore criteria and owners from a JSONL snapshot",
	Long: `Reads a snapshot written by export ("-" for stdin). Criteria are replaced
by key. Owners that already exist are left untouched.`,
	GroupID: "system",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}

		stats, err := eligsync.ImportJSONL(cmd.Context(), env.owners, env.criteria, r)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(stats)
		}
		fmt.Printf("Imported %d criteria, %d owners (%d already present)\n",
			stats.Criteria, stats.OwnersCreated, stats.OwnersSkipped)
		return nil
	},
}
