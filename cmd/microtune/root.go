package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/microtune/microtune/cmd/microtune/config"
	"github.com/microtune/microtune/pkg/httpx"
	"github.com/microtune/microtune/pkg/storage"
	"github.com/microtune/microtune/pkg/tls"
)

// version is set via ldflags at build time
var version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:     "microtune",
	Short:   "Closed-loop resource tuning benchmark for microservices",
	Version: version,
	Long: `microtune sweeps CPU limit, memory limit, and replica count over a
deployment under synthetic load, trains regression models on the
recorded metrics, and recommends better resource settings.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default microtune.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text or json")
	rootCmd.PersistentFlags().String("data-dir", "data", "experiment data directory")
	rootCmd.PersistentFlags().String("namespace", "teastore", "benchmark namespace")
	rootCmd.PersistentFlags().String("deployment", "webui", "scalable deployment under test")
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	viper.BindPFlag("namespace", rootCmd.PersistentFlags().Lookup("namespace"))
	viper.BindPFlag("deployment", rootCmd.PersistentFlags().Lookup("deployment"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("microtune")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("MICROTUNE")
	viper.AutomaticEnv()

	config.SetDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}
}

// loadConfig materializes and validates the configuration and installs
// the logger it describes as the default.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg := config.New()
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// newHTTPClient builds the client for the benchmark app's plain-HTTP
// endpoints.
func newHTTPClient(timeout time.Duration) (*http.Client, error) {
	return httpx.NewClient(tls.Config{}, timeout)
}

// openRegistry builds the configured run registry backend. The
// returned close func is a no-op for backends without connections.
func openRegistry(cfg *config.Config, logger *slog.Logger) (storage.Store, func(), error) {
	switch cfg.Storage {
	case config.StorageMemory:
		return storage.NewMemoryStore(), func() {}, nil
	case config.StorageRedis:
		store, err := storage.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, fmt.Errorf("open redis registry: %w", err)
		}
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Error("failed to close redis registry", "error", err)
			}
		}, nil
	default:
		store, err := storage.NewFileStore(cfg.RegistryPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open run registry: %w", err)
		}
		return store, func() {}, nil
	}
}
