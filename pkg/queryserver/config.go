package queryserver

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the query core's recognized configuration, following
// spec.md §6's option set plus the expansion's additions.
type Config struct {
	Database struct {
		Hostname       string `yaml:"hostname"`
		Port           uint32 `yaml:"port"`
		Username       string `yaml:"username"`
		Password       string `yaml:"password"`
		MasterDatabase string `yaml:"master_database"`
		Path           string `yaml:"path"`
	} `yaml:"database"`

	Server struct {
		ListenAddress       string `yaml:"listen_address"`
		ListenPort          uint16 `yaml:"listen_port"`
		HeartbeatPort       uint16 `yaml:"heartbeat_port"`
		IdleReadTimeoutSecs int    `yaml:"idle_read_timeout_secs"`
	} `yaml:"server"`

	Title struct {
		HandoffKey string `yaml:"handoff_key"`
		Tag        string `yaml:"tag"`
	} `yaml:"title"`

	Registry struct {
		StaleAfterSecs int    `yaml:"stale_after_secs"`
		ColdStorePath  string `yaml:"cold_store_path"`
	} `yaml:"registry"`

	Metrics struct {
		ListenAddress string `yaml:"listen_address"`
	} `yaml:"metrics"`
}

// envDefault returns the environment variable value if set, otherwise the
// fallback.
func envDefault(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

// Default returns the core's built-in defaults before file/flag/env overrides.
func Default() Config {
	var c Config
	c.Server.ListenAddress = "0.0.0.0"
	c.Server.ListenPort = 28910
	c.Server.HeartbeatPort = 27900
	c.Server.IdleReadTimeoutSecs = 30
	c.Title.Tag = "battlefield2"
	c.Registry.StaleAfterSecs = 600
	c.Metrics.ListenAddress = "127.0.0.1:9090"
	return c
}

// Load reads path (if non-empty) as YAML into Default(), then applies
// command-line flags and environment variables, matching the teacher's
// flag/envDefault layering in cmd/server/main.go.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	listenAddr := flag.String("listen-address", envDefault("QS_LISTEN_ADDRESS", cfg.Server.ListenAddress), "TCP listen address (env: QS_LISTEN_ADDRESS)")
	listenPort := flag.Int("listen-port", 0, "TCP listen port, overrides config (env: QS_LISTEN_PORT)")
	heartbeatPort := flag.Int("heartbeat-port", 0, "UDP heartbeat port, overrides config (env: QS_HEARTBEAT_PORT)")
	handoffKey := flag.String("handoff-key", envDefault("QS_HANDOFF_KEY", cfg.Title.HandoffKey), "Title handoff key (env: QS_HANDOFF_KEY)")
	dbPath := flag.String("db-path", envDefault("QS_DB_PATH", cfg.Database.Path), "Path to the SQLite server database (env: QS_DB_PATH)")
	metricsAddr := flag.String("metrics-address", envDefault("QS_METRICS_ADDRESS", cfg.Metrics.ListenAddress), "Prometheus metrics listen address (env: QS_METRICS_ADDRESS)")
	flag.Parse()

	cfg.Server.ListenAddress = *listenAddr
	if *listenPort != 0 {
		cfg.Server.ListenPort = uint16(*listenPort)
	} else if v := os.Getenv("QS_LISTEN_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Server.ListenPort)
	}
	if *heartbeatPort != 0 {
		cfg.Server.HeartbeatPort = uint16(*heartbeatPort)
	} else if v := os.Getenv("QS_HEARTBEAT_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Server.HeartbeatPort)
	}
	cfg.Title.HandoffKey = *handoffKey
	cfg.Database.Path = *dbPath
	cfg.Metrics.ListenAddress = *metricsAddr

	return cfg, nil
}

// IdleReadTimeout is Server.IdleReadTimeoutSecs as a time.Duration.
func (c Config) IdleReadTimeout() time.Duration {
	return time.Duration(c.Server.IdleReadTimeoutSecs) * time.Second
}

// StaleAfter is Registry.StaleAfterSecs as a time.Duration.
func (c Config) StaleAfter() time.Duration {
	return time.Duration(c.Registry.StaleAfterSecs) * time.Second
}
