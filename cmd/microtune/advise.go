package main

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/microtune/microtune/pkg/advisor"
	"github.com/microtune/microtune/pkg/collector"
	"github.com/microtune/microtune/pkg/grid"
	"github.com/microtune/microtune/pkg/models"
)

var adviseCmd = &cobra.Command{
	Use:   "advise",
	Short: "Recommend the next resource setting",
	Long: `Score a window of candidate points around the deployment's current
CPU/memory/replica setting with the trained models and print the best
one. The current point is read from the monitoring backend unless all
of --cpu, --memory, and --replicas are given.`,
	RunE: runAdvise,
}

func init() {
	rootCmd.AddCommand(adviseCmd)

	adviseCmd.Flags().Int("window", 2, "candidate points per direction")
	adviseCmd.Flags().Int("cpu", 0, "current CPU limit in millicores")
	adviseCmd.Flags().Int("memory", 0, "current memory limit in MiB")
	adviseCmd.Flags().Int("replicas", 0, "current replica count")
}

func runAdvise(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	window, _ := cmd.Flags().GetInt("window")
	cpu, _ := cmd.Flags().GetInt("cpu")
	memory, _ := cmd.Flags().GetInt("memory")
	replicas, _ := cmd.Flags().GetInt("replicas")

	current := grid.Point{CPUMillis: cpu, MemoryMiB: memory, Replicas: replicas}
	if cpu <= 0 || memory <= 0 || replicas <= 0 {
		current, err = currentPoint(cmd, cfg.PrometheusURL, cfg.Namespace, cfg.DataDir, cfg.Deployment)
		if err != nil {
			return err
		}
		logger.Info("current operating point read from monitoring",
			"cpu", current.CPUMillis,
			"memory", current.MemoryMiB,
			"replicas", current.Replicas,
		)
	}

	targetModels, err := models.LoadTargets(filepath.Join(cfg.DataDir, "models"))
	if err != nil {
		return fmt.Errorf("load trained models: %w", err)
	}

	adv := &advisor.Advisor{
		Models: targetModels,
		Step:   cfg.GridStep,
		Logger: logger,
	}

	best, err := adv.Recommend(current, window)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "cpu=%dm memory=%dMi replicas=%d\n",
		best.CPUMillis, best.MemoryMiB, best.Replicas)
	return nil
}

// currentPoint reads the deployment's live limits and replica count
// from the monitoring backend.
func currentPoint(cmd *cobra.Command, prometheusURL, namespace, dataDir, deployment string) (grid.Point, error) {
	col := &collector.Collector{
		Client:    &collector.Client{BaseURL: prometheusURL},
		Namespace: namespace,
		DataDir:   dataDir,
	}

	st, err := col.Status(cmd.Context(), deployment)
	if err != nil {
		return grid.Point{}, fmt.Errorf("read deployment status: %w", err)
	}

	return grid.Point{
		CPUMillis: int(math.Round(st.CPULimitCores * 1000)),
		MemoryMiB: int(math.Round(st.MemoryLimitBytes / (1 << 20))),
		Replicas:  int(st.Replicas),
	}, nil
}
