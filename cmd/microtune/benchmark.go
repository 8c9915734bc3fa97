package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/microtune/microtune/cmd/microtune/config"
	"github.com/microtune/microtune/cmd/microtune/metrics"
	"github.com/microtune/microtune/cmd/microtune/router"
	"github.com/microtune/microtune/pkg/collector"
	"github.com/microtune/microtune/pkg/grid"
	"github.com/microtune/microtune/pkg/httpx"
	"github.com/microtune/microtune/pkg/kube"
	"github.com/microtune/microtune/pkg/loadgen"
	"github.com/microtune/microtune/pkg/storage"
	"github.com/microtune/microtune/pkg/sweep"
	"github.com/microtune/microtune/pkg/tls"
)

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Run the full parameter sweep",
	Long: `Sweep every CPU/memory/replica grid point over the scalable
deployment: apply the point, wait for the rollout, drive load, and
snapshot the metrics. The status server reports progress while the
sweep runs. Prints the run ID on success.`,
	RunE: runBenchmark,
}

func init() {
	rootCmd.AddCommand(benchmarkCmd)

	benchmarkCmd.Flags().Bool("invert", false, "sweep the grid from most to least constrained")
	benchmarkCmd.Flags().Int("replica-cap", 3, "maximum replica count")
	benchmarkCmd.Flags().Bool("from-cluster", false, "anchor the grid on the deployment's live resource requests")
	benchmarkCmd.Flags().Bool("manage-namespace", false, "create the namespace before the sweep and delete it after")
	viper.BindPFlag("invert", benchmarkCmd.Flags().Lookup("invert"))
	viper.BindPFlag("replica_cap", benchmarkCmd.Flags().Lookup("replica-cap"))
	viper.BindPFlag("bounds_from_cluster", benchmarkCmd.Flags().Lookup("from-cluster"))
	viper.BindPFlag("manage_namespace", benchmarkCmd.Flags().Lookup("manage-namespace"))
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	controller, err := kube.NewController(cfg.Kubeconfig, cfg.Namespace, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if cfg.ManageNamespace {
		cleanup, err := setupNamespace(ctx, controller, logger)
		if err != nil {
			return err
		}
		defer cleanup()
	}

	bounds := grid.Bounds{
		CPURequestMillis: cfg.CPURequestMillis,
		CPULimitMillis:   cfg.CPULimitMillis,
		MemoryRequestMiB: cfg.MemoryRequestMiB,
		MemoryLimitMiB:   cfg.MemoryLimitMiB,
		Step:             cfg.GridStep,
		ReplicaCap:       cfg.ReplicaCap,
		Invert:           cfg.Invert,
	}
	if cfg.BoundsFromCluster {
		bounds, err = clusterBounds(ctx, controller, cfg)
		if err != nil {
			return err
		}
		logger.Info("grid anchored on live resource requests",
			"cpu_start", bounds.CPURequestMillis,
			"cpu_stop", bounds.CPULimitMillis,
			"memory_start", bounds.MemoryRequestMiB,
			"memory_stop", bounds.MemoryLimitMiB,
		)
	}
	g, err := grid.Generate(bounds)
	if err != nil {
		return err
	}

	registry, closeRegistry, err := openRegistry(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRegistry()

	col := &collector.Collector{
		Client:    &collector.Client{BaseURL: cfg.PrometheusURL},
		Namespace: cfg.Namespace,
		DataDir:   cfg.DataDir,
		Lookback:  cfg.Window,
		Step:      cfg.QueryStep,
		Logger:    logger,
	}

	driver := &loadgen.Driver{
		Config: loadgen.Config{
			BaseURL:   storefrontURL(ctx, controller, cfg, logger),
			Users:     cfg.Users,
			SpawnRate: cfg.SpawnRate,
			Duration:  cfg.LoadDuration,
		},
		Plan:    browsePlan(cfg.DataDir, logger),
		DataDir: cfg.DataDir,
		Logger:  logger,
	}

	runner := &sweep.Runner{
		Deployment:         cfg.Deployment,
		DataDir:            cfg.DataDir,
		Controller:         controller,
		Load:               driver,
		Collector:          col,
		Registry:           registry,
		Observer:           metrics.New(cfg.Deployment),
		Logger:             logger,
		StabilizationDelay: cfg.StabilizationDelay,
		HealthRetries:      cfg.HealthRetries,
		HealthInterval:     cfg.HealthInterval,
	}

	server, err := statusServer(cfg, registry, logger)
	if err != nil {
		return err
	}
	serverErr := make(chan error, 1)
	go func() {
		if cfg.TLS.Enabled {
			serverErr <- server.StartTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			serverErr <- server.Start()
		}
	}()
	defer func() {
		if err := server.Stop(10 * time.Second); err != nil {
			logger.Error("status server shutdown failed", "error", err)
		}
	}()

	logger.Info("starting benchmark",
		"deployment", cfg.Deployment,
		"namespace", cfg.Namespace,
		"points", g.Len(),
		"users", cfg.Users,
	)

	runID, err := runner.Run(ctx, g)
	if err != nil {
		select {
		case serr := <-serverErr:
			if serr != nil {
				logger.Error("status server failed", "error", serr)
			}
		default:
		}
		return err
	}

	// Run ID only, for shell scripting.
	fmt.Fprintln(cmd.OutOrStdout(), runID)
	return nil
}

// statusServer wires the status routes behind the logging and recovery
// middleware, with TLS when configured.
func statusServer(cfg *config.Config, registry storage.Store, logger *slog.Logger) (*httpx.Server, error) {
	mux := router.SetupRoutes(registry, logger)
	handler := httpx.RecoveryMiddleware(logger)(httpx.LoggingMiddleware(logger)(mux))
	server := httpx.NewServer(cfg.Listen, handler, logger)

	if cfg.TLS.Enabled {
		tlsConf, err := tls.NewServerTLSConfig(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.CAFile)
		if err != nil {
			return nil, err
		}
		server.SetTLSConfig(tlsConf)
	}
	return server, nil
}

// clusterBounds anchors the swept axes on the deployment's live
// resource requests: each axis starts one step above the request and
// keeps the configured span, so every swept limit exceeds what the
// scheduler already granted.
func clusterBounds(ctx context.Context, controller *kube.Controller, cfg *config.Config) (grid.Bounds, error) {
	requests, err := controller.ResourceRequests(ctx)
	if err != nil {
		return grid.Bounds{}, err
	}
	req, ok := requests[cfg.Deployment]
	if !ok {
		return grid.Bounds{}, fmt.Errorf("deployment %s not found in namespace %s", cfg.Deployment, cfg.Namespace)
	}

	cpuSpan := cfg.CPULimitMillis - cfg.CPURequestMillis
	memSpan := cfg.MemoryLimitMiB - cfg.MemoryRequestMiB
	return grid.Bounds{
		CPURequestMillis: req.CPUMillis + cfg.GridStep,
		CPULimitMillis:   req.CPUMillis + cfg.GridStep + cpuSpan,
		MemoryRequestMiB: req.MemoryMiB + cfg.GridStep,
		MemoryLimitMiB:   req.MemoryMiB + cfg.GridStep + memSpan,
		Step:             cfg.GridStep,
		ReplicaCap:       cfg.ReplicaCap,
		Invert:           cfg.Invert,
	}, nil
}

// storefrontURL discovers the storefront's node port from its service;
// without one the configured webui_port is used.
func storefrontURL(ctx context.Context, controller *kube.Controller, cfg *config.Config, logger *slog.Logger) string {
	port, err := controller.NodePort(ctx, cfg.Deployment)
	if err != nil {
		logger.Warn("node port discovery failed, using configured port",
			"service", cfg.Deployment, "port", cfg.WebUIPort, "error", err)
		return cfg.WebUIURL()
	}
	return cfg.WebUIURLAt(port)
}

// setupNamespace recreates the benchmark namespace and returns its
// teardown. Teardown runs on a fresh context so an aborted sweep still
// cleans up.
func setupNamespace(ctx context.Context, controller *kube.Controller, logger *slog.Logger) (func(), error) {
	if err := controller.CreateNamespace(ctx); err != nil {
		return nil, err
	}
	return func() {
		if err := controller.DeleteNamespace(context.Background()); err != nil {
			logger.Error("namespace teardown failed", "error", err)
		}
	}, nil
}

// browsePlan loads the seeded corpus routes; without a corpus the load
// falls back to the storefront landing page.
func browsePlan(dataDir string, logger *slog.Logger) []string {
	corpus, err := loadgen.LoadCorpus(filepath.Join(dataDir, "corpus"))
	if err != nil {
		logger.Warn("no browse corpus, hitting landing page only", "error", err)
		return nil
	}
	return corpus.Plan()
}
