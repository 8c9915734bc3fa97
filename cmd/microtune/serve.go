package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the status server on its own",
	Long: `Serve /healthz, /metrics, and the run registry endpoints without
running a benchmark. Useful for inspecting past runs.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	registry, closeRegistry, err := openRegistry(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRegistry()

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

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	return server.Stop(10 * time.Second)
}
