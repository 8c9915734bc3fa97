package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/microtune/microtune/pkg/models"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fit models on a run's filtered table",
	Long: `Fit one regression model per target metric (average response time,
cpu usage, memory usage) from a run's filtered table and persist the
artifacts under <data-dir>/models. With --target only that metric's
model is trained.`,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().String("run", "", "run ID whose filtered table to train on (required)")
	trainCmd.Flags().String("family", "linear", "model family: linear, svr, or neural")
	trainCmd.Flags().String("target", "", "train only this target metric")
	trainCmd.Flags().Bool("search", false, "grid-search SVR hyper-parameters with cross-validation")
	trainCmd.MarkFlagRequired("run")
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	runID, _ := cmd.Flags().GetString("run")
	familyName, _ := cmd.Flags().GetString("family")
	target, _ := cmd.Flags().GetString("target")
	search, _ := cmd.Flags().GetBool("search")

	family, err := models.ParseFamily(familyName)
	if err != nil {
		return err
	}

	trainer := &models.Trainer{
		DataDir: cfg.DataDir,
		Logger:  logger,
		Search:  search,
	}

	if target == "" {
		return trainer.TrainAll(runID, family)
	}

	model, report, err := trainer.TrainTarget(runID, target, family)
	if err != nil {
		return err
	}
	if model == nil {
		return fmt.Errorf("run %s has no filtered table", runID)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", family, target, report)
	return nil
}
