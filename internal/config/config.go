// Package config loads and validates the process-wide configuration for
// a single DHT node: identifier space size, daemon cadences, transport
// timeouts, logging, tracing, and bootstrap discovery.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kunwarpradip/distributedchord-dht/internal/logger"

	"gopkg.in/yaml.v3"
)

// NodeConfig describes this process's listen address; the node's ring
// identifier is derived from it.
type NodeConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// RingConfig configures the identifier space.
type RingConfig struct {
	Bits uint `yaml:"bits"`
}

// TimingConfig configures the cadence of every background daemon plus
// the per-RPC timeout.
type TimingConfig struct {
	Stabilize        time.Duration `yaml:"stabilize"`
	FixFingers       time.Duration `yaml:"fix_fingers"`
	CheckPredecessor time.Duration `yaml:"check_predecessor"`
	Migrate          time.Duration `yaml:"migrate"`
	RPCTimeout       time.Duration `yaml:"rpc_timeout"`
}

// LoggingConfig configures the zap-backed logger.
type LoggingConfig struct {
	Active    bool   `yaml:"active"`
	Level     string `yaml:"level"`
	File      string `yaml:"file"`
	MaxSizeMB int    `yaml:"max_size_mb"`
}

// TracingConfig configures OpenTelemetry span export.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // "stdout" or "otlp"
	Endpoint string `yaml:"endpoint"` // used when exporter == "otlp"
}

// Route53BootstrapConfig configures DNS-based peer discovery.
type Route53BootstrapConfig struct {
	HostedZoneID string `yaml:"hosted_zone_id"`
	RecordName   string `yaml:"record_name"`
}

// BootstrapConfig selects and configures how a node discovers peers to
// join through.
type BootstrapConfig struct {
	Mode    string                 `yaml:"mode"` // "static" or "route53"
	Peers   []string               `yaml:"peers"`
	Route53 Route53BootstrapConfig `yaml:"route53"`
}

// Config is the full process configuration for one DHT node.
type Config struct {
	Node      NodeConfig      `yaml:"node"`
	Ring      RingConfig      `yaml:"ring"`
	Timing    TimingConfig    `yaml:"timing"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
}

// Default returns a configuration usable without a config file: a
// single-node ring with sane cadences and logging to stdout.
func Default() Config {
	return Config{
		Node: NodeConfig{Host: "127.0.0.1", Port: 5000},
		Ring: RingConfig{Bits: 24},
		Timing: TimingConfig{
			Stabilize:        1500 * time.Millisecond,
			FixFingers:       2 * time.Second,
			CheckPredecessor: 3 * time.Second,
			Migrate:          5 * time.Second,
			RPCTimeout:       2 * time.Second,
		},
		Logging:   LoggingConfig{Active: true, Level: "info", MaxSizeMB: 50},
		Tracing:   TracingConfig{Enabled: false, Exporter: "stdout"},
		Bootstrap: BootstrapConfig{Mode: "static"},
	}
}

// LoadConfig reads and parses a YAML config file, filling in defaults
// for anything left unset.
func LoadConfig(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: failed to read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: failed to parse %q: %w", path, err)
	}
	return cfg, nil
}

// ValidateConfig rejects configurations that would otherwise fail at
// some arbitrary point deep in start-up.
func (c Config) ValidateConfig() error {
	if c.Ring.Bits < 8 || c.Ring.Bits > 63 {
		return fmt.Errorf("config: ring.bits = %d, want 8..63", c.Ring.Bits)
	}
	for name, d := range map[string]time.Duration{
		"timing.stabilize":         c.Timing.Stabilize,
		"timing.fix_fingers":       c.Timing.FixFingers,
		"timing.check_predecessor": c.Timing.CheckPredecessor,
		"timing.migrate":           c.Timing.Migrate,
		"timing.rpc_timeout":       c.Timing.RPCTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("config: %s must be positive, got %s", name, d)
		}
	}
	switch c.Bootstrap.Mode {
	case "static", "route53":
	default:
		return fmt.Errorf("config: unsupported bootstrap.mode %q", c.Bootstrap.Mode)
	}
	if c.Node.Port <= 0 {
		return fmt.Errorf("config: node.port must be positive, got %d", c.Node.Port)
	}
	return nil
}

// LogConfig emits a one-time summary of the effective configuration.
func (c Config) LogConfig(lgr logger.Logger) {
	lgr.Info("effective configuration",
		logger.F("node", fmt.Sprintf("%s:%d", c.Node.Host, c.Node.Port)),
		logger.F("ring_bits", c.Ring.Bits),
		logger.F("bootstrap_mode", c.Bootstrap.Mode),
		logger.F("tracing_enabled", c.Tracing.Enabled))
}
