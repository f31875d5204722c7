package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

var configTemplate *template.Template

func init() {
	var err error
	tmpl := template.New("configFileTemplate")
	if configTemplate, err = tmpl.Parse(defaultConfigTemplate); err != nil {
		panic(err)
	}
}

// EnsureRoot creates the root, config and data directories if they are
// missing, and writes a default config file if none exists.
func EnsureRoot(rootDir string) error {
	for _, dir := range []string{
		rootDir,
		filepath.Join(rootDir, defaultConfigDir),
		filepath.Join(rootDir, defaultDataDir),
	} {
		if err := os.MkdirAll(dir, DefaultDirPerm); err != nil {
			return fmt.Errorf("ensure %s: %w", dir, err)
		}
	}

	configFilePath := filepath.Join(rootDir, defaultConfigDir, defaultConfigFileName)
	if _, err := os.Stat(configFilePath); os.IsNotExist(err) {
		return WriteConfigFile(configFilePath, DefaultConfig())
	}
	return nil
}

// WriteConfigFile renders cfg into TOML and writes it to configFilePath.
func WriteConfigFile(configFilePath string, cfg *Config) error {
	var buf bytes.Buffer
	if err := configTemplate.Execute(&buf, cfg); err != nil {
		return err
	}
	return os.WriteFile(configFilePath, buf.Bytes(), 0600)
}

// Note: any changes to the comments/variables/mapstructure
// must be reflected in the appropriate struct in config/config.go
const defaultConfigTemplate = `# This is a TOML config file.
# For more information, see https://github.com/toml-lang/toml

###############################################
###        Base Configuration Options       ###
###############################################

# This node's identifier on the ring-ordered address space
node_id = {{ .BaseConfig.NodeID }}

# Database backend: goleveldb | memdb
db_backend = "{{ .BaseConfig.DBBackend }}"

# Database directory
db_dir = "{{ .BaseConfig.DBPath }}"

# Output level for logging: debug | info | error
log_level = "{{ .BaseConfig.LogLevel }}"

# Output format: plain | json
log_format = "{{ .BaseConfig.LogFormat }}"

###############################################
###        Sync Configuration Options       ###
###############################################
[sync]

# How far back in time to sync on a fresh start, in time-units
target_depth = {{ .Sync.TargetDepth }}

# Peer confirmations required before a shadow mapping is persisted
confirmation_threshold = {{ .Sync.ConfirmationThreshold }}

# Number of peers kept under active synchronization
tracked_peers = {{ .Sync.TrackedPeers }}

# Ticks before an unanswered summary-block request is retransmitted
retransmit_ticks = {{ .Sync.RetransmitTicks }}

# Ticks between ticket secret rotations
ticket_rotation_ticks = {{ .Sync.TicketRotationTicks }}

# Wall-clock interval between engine ticks
tick_interval = "{{ .Sync.TickInterval }}"

###############################################
###  Instrumentation Configuration Options  ###
###############################################
[instrumentation]

# When true, Prometheus metrics are served under /metrics
prometheus = {{ .Instrumentation.Prometheus }}

# Address to listen for Prometheus collector(s) connections
prometheus_listen_addr = "{{ .Instrumentation.PrometheusListenAddr }}"

# Instrumentation namespace
namespace = "{{ .Instrumentation.Namespace }}"
`
