package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/eligibility/internal/ui"
)

var matchFlags clientFlags

var matchCmd = &cobra.Command{
	Use:   "match <key>",
	Short: "Evaluate stored criteria against a client",
	Long: `Loads the criteria under key and matches it against the client described
by the flags, listing every check that failed. A key with nothing stored
matches every client.`,
	Example: `  criteriactl match appconfig:cfg-1 --ua "Asthma/26 (iPhone 14; iPhone OS/17.2) BridgeSDK/4"
  criteriactl match subpopulation:sub-1 --os android --app-version 12 --group beta --lang fr`,
	GroupID: "eval",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cc, err := matchFlags.context()
		if err != nil {
			return err
		}
		ev, err := env.svc.Evaluate(cmd.Context(), args[0], cc)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(ev)
		}
		fmt.Printf("%s  %s\n", ui.Verdict(ev.Matched), ui.RenderAccent(ev.Key))
		printMismatches(os.Stdout, ev.Mismatches)
		return nil
	},
}

func init() {
	matchFlags.register(matchCmd)
}
