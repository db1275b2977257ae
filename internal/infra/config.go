package infra

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every application setting. Sensitive or deployment-specific
// values can be overridden through environment variables after load.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Server struct {
		StreamAddr string `yaml:"stream_addr"` // websocket fan-out listen address
		PprofAddr  string `yaml:"pprof_addr"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Engine struct {
		InboxSize         int `yaml:"inbox_size"`          // per-instrument command queue depth
		IdempotencyTTLSec int `yaml:"idempotency_ttl_sec"` // cached submission result retention
	} `yaml:"engine"`

	Snapshot struct {
		Enabled        bool `yaml:"enabled"`
		IntervalSec    int  `yaml:"interval_sec"`
		RestoreOnStart bool `yaml:"restore_on_start"`
	} `yaml:"snapshot"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// DefaultConfig returns a runnable configuration for local development.
func DefaultConfig() *Config {
	var cfg Config
	cfg.App.Name = "TradeCore"
	cfg.App.Version = "dev"
	cfg.Server.StreamAddr = "localhost:8090"
	cfg.Server.PprofAddr = "localhost:6060"
	cfg.Database.Path = "data/trade_core.db"
	cfg.Engine.InboxSize = 1024
	cfg.Engine.IdempotencyTTLSec = 3600
	cfg.Snapshot.Enabled = true
	cfg.Snapshot.IntervalSec = 300
	cfg.Snapshot.RestoreOnStart = false
	cfg.Logging.Level = "info"
	return &cfg
}

// LoadConfig reads and parses the configuration file, applies environment
// overrides and validates the result. A missing file yields defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Server.StreamAddr == "" {
		return fmt.Errorf("stream address is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Engine.InboxSize <= 0 {
		return fmt.Errorf("engine inbox size must be positive")
	}
	if c.Engine.IdempotencyTTLSec <= 0 {
		return fmt.Errorf("idempotency TTL must be positive")
	}
	if c.Snapshot.Enabled && c.Snapshot.IntervalSec <= 0 {
		return fmt.Errorf("snapshot interval must be positive")
	}
	return nil
}

// IdempotencyTTL returns the idempotency cache retention as a duration.
func (c *Config) IdempotencyTTL() time.Duration {
	return time.Duration(c.Engine.IdempotencyTTLSec) * time.Second
}

// SnapshotInterval returns the snapshot scheduler period as a duration.
func (c *Config) SnapshotInterval() time.Duration {
	return time.Duration(c.Snapshot.IntervalSec) * time.Second
}

// overrideWithEnv overrides settings when environment variables are present.
func overrideWithEnv(cfg *Config) {
	if path := os.Getenv("TRADECORE_DB_PATH"); path != "" {
		cfg.Database.Path = path
	}
	if addr := os.Getenv("TRADECORE_STREAM_ADDR"); addr != "" {
		cfg.Server.StreamAddr = addr
	}
	if level := os.Getenv("TRADECORE_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = strings.ToLower(level)
	}
	if restore := os.Getenv("TRADECORE_RESTORE_ON_START"); restore != "" {
		cfg.Snapshot.RestoreOnStart = restore == "1" || strings.EqualFold(restore, "true")
	}
}
