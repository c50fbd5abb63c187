package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/eligibility/internal/model"
)

var criteriaCmd = &cobra.Command{
	Use:     "criteria",
	Short:   "Read and write stored criteria by key",
	GroupID: "criteria",
}

var criteriaGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show the criteria stored under a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := env.svc.Criteria(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(c)
		}
		printCriteria(os.Stdout, c)
		return nil
	},
}

var criteriaPutCmd = &cobra.Command{
	Use:   "put <key>",
	Short: "Replace the criteria stored under a key",
	Long: `Reads criteria in wire JSON from --file, or stdin when --file is "-" or
unset, and stores it under key. The previous value is fully replaced.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		data, err := readInput(file)
		if err != nil {
			return err
		}
		c := model.NewCriteria()
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parsing criteria: %w", err)
		}
		if err := env.svc.PutCriteria(cmd.Context(), args[0], c); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(c)
		}
		fmt.Printf("Stored %s\n", c.Key())
		return nil
	},
}

var criteriaDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete the criteria stored under a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := env.svc.PurgeCriteria(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

var criteriaListCmd = &cobra.Command{
	Use:   "list [prefix]",
	Short: "List stored criteria, optionally limited to a key prefix",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var prefix string
		if len(args) == 1 {
			prefix = args[0]
		}
		list, err := env.criteria.ListCriteria(cmd.Context(), prefix)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(list)
		}
		printCriteriaList(os.Stdout, list)
		return nil
	},
}

func init() {
	criteriaPutCmd.Flags().StringP("file", "f", "", `criteria JSON file ("-" for stdin)`)

	criteriaCmd.AddCommand(criteriaGetCmd)
	criteriaCmd.AddCommand(criteriaPutCmd)
	criteriaCmd.AddCommand(criteriaDeleteCmd)
	criteriaCmd.AddCommand(criteriaListCmd)
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
