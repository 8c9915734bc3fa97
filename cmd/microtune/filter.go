package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/microtune/microtune/pkg/dataset"
)

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Reshape raw run exports into filtered training tables",
	Long: `Join the per-iteration metric exports of a run with its parameter
variation table into one filtered CSV with a row per (iteration, pod).
Either a single --run or a --first/--last run ID range is required.`,
	RunE: runFilter,
}

func init() {
	rootCmd.AddCommand(filterCmd)

	filterCmd.Flags().String("run", "", "run ID to filter")
	filterCmd.Flags().String("first", "", "first run ID of a range")
	filterCmd.Flags().String("last", "", "last run ID of a range")
}

func runFilter(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	runID, _ := cmd.Flags().GetString("run")
	first, _ := cmd.Flags().GetString("first")
	last, _ := cmd.Flags().GetString("last")

	ft := &dataset.Filterer{
		DataDir:   cfg.DataDir,
		Namespace: cfg.Namespace,
		Logger:    logger,
	}

	switch {
	case runID != "":
		res, err := ft.FilterRun(runID)
		if err != nil {
			return err
		}
		if res == nil {
			return fmt.Errorf("run %s has no raw data", runID)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d records -> %s\n", runID, res.Len(), ft.FilteredPath(runID))
		return nil

	case first != "" && last != "":
		return ft.FilterAll(first, last)

	default:
		return fmt.Errorf("either --run or both --first and --last are required")
	}
}
