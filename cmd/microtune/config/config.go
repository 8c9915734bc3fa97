// Package config materializes the CLI's viper state into one validated
// Config struct passed to every component.
//
// Configuration sources, in order of precedence:
//  1. Command-line flags
//  2. MICROTUNE_* environment variables
//  3. An optional config file (--config, or microtune.yaml in the
//     working directory)
//  4. Default values
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/microtune/microtune/pkg/tls"
)

// Storage backend names accepted by the run registry.
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageRedis  = "redis"
)

// Config holds all runtime configuration for the tuning benchmark.
type Config struct {
	LogLevel  string
	LogFormat string
	Listen    string
	TLS       tls.Config

	DataDir    string
	Namespace  string
	Deployment string
	Kubeconfig string

	Host            string
	WebUIPort       int
	PersistencePort int
	PrometheusURL   string

	Users        int
	SpawnRate    float64
	LoadDuration time.Duration

	CPURequestMillis int
	CPULimitMillis   int
	MemoryRequestMiB int
	MemoryLimitMiB   int
	GridStep         int
	ReplicaCap       int
	Invert           bool

	// BoundsFromCluster anchors the CPU and memory axes on the
	// deployment's live resource requests instead of the configured
	// cpu_request/memory_request values.
	BoundsFromCluster bool

	// ManageNamespace creates the benchmark namespace before the sweep
	// and deletes it afterwards.
	ManageNamespace bool

	StabilizationDelay time.Duration
	HealthRetries      int
	HealthInterval     time.Duration

	// Window is the metric lookback collected after each load run; it
	// should cover at least the load duration.
	Window    time.Duration
	QueryStep time.Duration

	Storage       string
	RegistryPath  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// SetDefaults registers every configuration default with viper.
func SetDefaults() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")
	viper.SetDefault("listen", ":8082")

	viper.SetDefault("data_dir", "data")
	viper.SetDefault("namespace", "teastore")
	viper.SetDefault("deployment", "webui")
	viper.SetDefault("kubeconfig", "")

	viper.SetDefault("host", "localhost")
	viper.SetDefault("webui_port", 30080)
	viper.SetDefault("persistence_port", 30090)
	viper.SetDefault("prometheus_url", "http://localhost:30000")

	viper.SetDefault("users", 30)
	viper.SetDefault("spawn_rate", 1.0)
	viper.SetDefault("load_duration", "10m")

	viper.SetDefault("cpu_request", 300)
	viper.SetDefault("cpu_limit", 600)
	viper.SetDefault("memory_request", 512)
	viper.SetDefault("memory_limit", 1024)
	viper.SetDefault("grid_step", 100)
	viper.SetDefault("replica_cap", 3)
	viper.SetDefault("invert", false)
	viper.SetDefault("bounds_from_cluster", false)
	viper.SetDefault("manage_namespace", false)

	viper.SetDefault("stabilization_delay", "30s")
	viper.SetDefault("health_retries", 30)
	viper.SetDefault("health_interval", "10s")

	viper.SetDefault("window", "10m")
	viper.SetDefault("query_step", "10s")

	viper.SetDefault("storage", StorageFile)
	viper.SetDefault("registry_path", "data/runs.json")
	viper.SetDefault("redis_addr", "localhost:6379")
	viper.SetDefault("redis_password", "")
	viper.SetDefault("redis_db", 0)

	viper.SetDefault("tls_enabled", false)
	viper.SetDefault("tls_cert_file", "")
	viper.SetDefault("tls_key_file", "")
	viper.SetDefault("tls_ca_file", "")
}

// New reads the current viper state into a Config.
func New() *Config {
	return &Config{
		LogLevel:  viper.GetString("log_level"),
		LogFormat: viper.GetString("log_format"),
		Listen:    viper.GetString("listen"),
		TLS: tls.Config{
			Enabled:  viper.GetBool("tls_enabled"),
			CertFile: viper.GetString("tls_cert_file"),
			KeyFile:  viper.GetString("tls_key_file"),
			CAFile:   viper.GetString("tls_ca_file"),
		},

		DataDir:    viper.GetString("data_dir"),
		Namespace:  viper.GetString("namespace"),
		Deployment: viper.GetString("deployment"),
		Kubeconfig: viper.GetString("kubeconfig"),

		Host:            viper.GetString("host"),
		WebUIPort:       viper.GetInt("webui_port"),
		PersistencePort: viper.GetInt("persistence_port"),
		PrometheusURL:   viper.GetString("prometheus_url"),

		Users:        viper.GetInt("users"),
		SpawnRate:    viper.GetFloat64("spawn_rate"),
		LoadDuration: viper.GetDuration("load_duration"),

		CPURequestMillis:  viper.GetInt("cpu_request"),
		CPULimitMillis:    viper.GetInt("cpu_limit"),
		MemoryRequestMiB:  viper.GetInt("memory_request"),
		MemoryLimitMiB:    viper.GetInt("memory_limit"),
		GridStep:          viper.GetInt("grid_step"),
		ReplicaCap:        viper.GetInt("replica_cap"),
		Invert:            viper.GetBool("invert"),
		BoundsFromCluster: viper.GetBool("bounds_from_cluster"),
		ManageNamespace:   viper.GetBool("manage_namespace"),

		StabilizationDelay: viper.GetDuration("stabilization_delay"),
		HealthRetries:      viper.GetInt("health_retries"),
		HealthInterval:     viper.GetDuration("health_interval"),

		Window:    viper.GetDuration("window"),
		QueryStep: viper.GetDuration("query_step"),

		Storage:       viper.GetString("storage"),
		RegistryPath:  viper.GetString("registry_path"),
		RedisAddr:     viper.GetString("redis_addr"),
		RedisPassword: viper.GetString("redis_password"),
		RedisDB:       viper.GetInt("redis_db"),
	}
}

// Validate rejects configurations no component could run with.
func (c *Config) Validate() error {
	if c.Namespace == "" {
		return fmt.Errorf("namespace cannot be empty")
	}
	if c.Deployment == "" {
		return fmt.Errorf("deployment cannot be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data dir cannot be empty")
	}
	if c.Users <= 0 {
		return fmt.Errorf("users must be > 0, got %d", c.Users)
	}
	if c.SpawnRate <= 0 {
		return fmt.Errorf("spawn rate must be > 0, got %v", c.SpawnRate)
	}
	if c.LoadDuration <= 0 {
		return fmt.Errorf("load duration must be > 0, got %v", c.LoadDuration)
	}
	if c.GridStep <= 0 {
		return fmt.Errorf("grid step must be > 0, got %d", c.GridStep)
	}
	if c.ReplicaCap < 1 {
		return fmt.Errorf("replica cap must be >= 1, got %d", c.ReplicaCap)
	}
	if c.Window <= 0 {
		return fmt.Errorf("window must be > 0, got %v", c.Window)
	}

	switch c.Storage {
	case StorageMemory, StorageFile, StorageRedis:
	default:
		return fmt.Errorf("invalid storage backend %q (must be %s, %s, or %s)",
			c.Storage, StorageMemory, StorageFile, StorageRedis)
	}
	if c.Storage == StorageFile && c.RegistryPath == "" {
		return fmt.Errorf("registry path cannot be empty with file storage")
	}

	if err := c.TLS.Validate(); err != nil {
		return err
	}

	return nil
}

// WebUIURL is the storefront entry point hit by the load generator.
func (c *Config) WebUIURL() string {
	return c.WebUIURLAt(c.WebUIPort)
}

// WebUIURLAt is the storefront entry point on an explicit port, used
// when the node port is discovered from the cluster.
func (c *Config) WebUIURLAt(port int) string {
	return fmt.Sprintf("http://%s:%d/tools.descartes.teastore.webui", c.Host, port)
}

// PersistenceURL is the persistence service REST root used for corpus
// seeding.
func (c *Config) PersistenceURL() string {
	return fmt.Sprintf("http://%s:%d/tools.descartes.teastore.persistence/rest", c.Host, c.PersistencePort)
}
