package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

const (
	// DefaultDirPerm is the default permission for the config directory.
	DefaultDirPerm = 0700

	defaultConfigDir = "config"
	defaultDataDir   = "data"

	defaultConfigFileName = "config.toml"
)

// Config defines the top-level configuration for an ecsync node.
type Config struct {
	BaseConfig `mapstructure:",squash"`

	Sync            *SyncConfig            `mapstructure:"sync"`
	Instrumentation *InstrumentationConfig `mapstructure:"instrumentation"`
}

// DefaultConfig returns a default configuration for an ecsync node.
func DefaultConfig() *Config {
	return &Config{
		BaseConfig:      DefaultBaseConfig(),
		Sync:            DefaultSyncConfig(),
		Instrumentation: DefaultInstrumentationConfig(),
	}
}

// TestConfig returns a configuration that can be used for testing: memdb
// storage and a fast tick.
func TestConfig() *Config {
	cfg := DefaultConfig()
	cfg.DBBackend = "memdb"
	cfg.Sync.TickInterval = time.Millisecond
	return cfg
}

// SetRoot sets the RootDir for all config sections.
func (cfg *Config) SetRoot(root string) *Config {
	cfg.BaseConfig.RootDir = root
	return cfg
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *Config) ValidateBasic() error {
	if err := cfg.BaseConfig.ValidateBasic(); err != nil {
		return err
	}
	if err := cfg.Sync.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [sync] section: %w", err)
	}
	return nil
}

//-----------------------------------------------------------------------------

// BaseConfig defines the base configuration for an ecsync node.
type BaseConfig struct {
	// The root directory for all data.
	RootDir string `mapstructure:"home"`

	// This node's identifier on the ring-ordered address space.
	NodeID uint64 `mapstructure:"node_id"`

	// Database backend: goleveldb | memdb
	DBBackend string `mapstructure:"db_backend"`

	// Database directory, relative to RootDir
	DBPath string `mapstructure:"db_dir"`

	// Output level for logging: debug | info | error
	LogLevel string `mapstructure:"log_level"`

	// Output format: plain | json
	LogFormat string `mapstructure:"log_format"`
}

// DefaultBaseConfig returns a default base configuration.
func DefaultBaseConfig() BaseConfig {
	return BaseConfig{
		DBBackend: "goleveldb",
		DBPath:    defaultDataDir,
		LogLevel:  "info",
		LogFormat: "plain",
	}
}

// ValidateBasic performs basic validation.
func (cfg BaseConfig) ValidateBasic() error {
	switch cfg.DBBackend {
	case "goleveldb", "memdb":
	default:
		return fmt.Errorf("unknown db_backend %q", cfg.DBBackend)
	}
	switch cfg.LogFormat {
	case "plain", "json":
	default:
		return errors.New("unknown log_format (must be 'plain' or 'json')")
	}
	return nil
}

// DBDir returns the full path to the database directory.
func (cfg BaseConfig) DBDir() string {
	return filepath.Join(cfg.RootDir, cfg.DBPath)
}

// ConfigFile returns the full path to the config file.
func (cfg BaseConfig) ConfigFile() string {
	return filepath.Join(cfg.RootDir, defaultConfigDir, defaultConfigFileName)
}

//-----------------------------------------------------------------------------

// SyncConfig defines the configuration for the commit-chain sync engine.
type SyncConfig struct {
	// How far back in time to sync on a fresh start, in time-units.
	// The watermark is initialized to now minus this depth.
	TargetDepth uint64 `mapstructure:"target_depth"`

	// Independent peer confirmations required before a shadow mapping is
	// promoted to durable storage.
	ConfirmationThreshold int `mapstructure:"confirmation_threshold"`

	// Number of peers kept under active synchronization, split between
	// the ring neighbourhoods above and below this node.
	TrackedPeers int `mapstructure:"tracked_peers"`

	// Ticks to wait before retransmitting an unanswered summary-block
	// request.
	RetransmitTicks uint64 `mapstructure:"retransmit_ticks"`

	// Ticks between ticket secret rotations.
	TicketRotationTicks uint64 `mapstructure:"ticket_rotation_ticks"`

	// Wall-clock interval between engine ticks.
	TickInterval time.Duration `mapstructure:"tick_interval"`
}

// DefaultSyncConfig returns a default configuration for the sync engine.
func DefaultSyncConfig() *SyncConfig {
	return &SyncConfig{
		TargetDepth:           30 * 24 * 3600, // 30 days
		ConfirmationThreshold: 2,
		TrackedPeers:          4,
		RetransmitTicks:       10,
		TicketRotationTicks:   100,
		TickInterval:          100 * time.Millisecond,
	}
}

// ValidateBasic performs basic validation.
func (cfg *SyncConfig) ValidateBasic() error {
	if cfg.ConfirmationThreshold < 1 {
		return errors.New("confirmation_threshold must be at least 1")
	}
	if cfg.TrackedPeers < 1 {
		return errors.New("tracked_peers must be at least 1")
	}
	if cfg.TrackedPeers%2 != 0 {
		return errors.New("tracked_peers must be even (split above/below this node)")
	}
	if cfg.RetransmitTicks == 0 {
		return errors.New("retransmit_ticks must be positive")
	}
	if cfg.TicketRotationTicks == 0 {
		return errors.New("ticket_rotation_ticks must be positive")
	}
	if cfg.TickInterval <= 0 {
		return errors.New("tick_interval must be positive")
	}
	return nil
}

//-----------------------------------------------------------------------------

// InstrumentationConfig defines the configuration for metrics reporting.
type InstrumentationConfig struct {
	// When true, Prometheus metrics are served under /metrics on
	// PrometheusListenAddr.
	Prometheus bool `mapstructure:"prometheus"`

	// Address to listen for Prometheus collector(s) connections.
	PrometheusListenAddr string `mapstructure:"prometheus_listen_addr"`

	// Instrumentation namespace.
	Namespace string `mapstructure:"namespace"`
}

// DefaultInstrumentationConfig returns a default configuration for metrics
// reporting.
func DefaultInstrumentationConfig() *InstrumentationConfig {
	return &InstrumentationConfig{
		Prometheus:           false,
		PrometheusListenAddr: ":26660",
		Namespace:            "ecsync",
	}
}
