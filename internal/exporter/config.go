package exporter

import (
	"fmt"
	"os"
	"regexp"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/rosprobe/internal/device"
	"github.com/ethpandaops/rosprobe/internal/probe"
)

var metricPrefix = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)

// Config is the top-level configuration for rosprobe.
type Config struct {
	// LogLevel sets the logging verbosity (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// ListenAddr serves /probe, /metrics and /healthz.
	// Defaults to ":9436".
	ListenAddr string `yaml:"listen_addr"`

	// Probe holds the metric prefix and default module selection.
	Probe probe.Config `yaml:",inline"`

	// Device configures RouterOS API sessions.
	Device device.Config `yaml:"device"`

	// OUIFile is an IEEE oui.txt used to label MAC addresses with their
	// vendor. Empty disables vendor lookup.
	OUIFile string `yaml:"oui_file"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:   "info",
		ListenAddr: ":9436",
		Probe:      probe.DefaultConfig(),
		Device:     device.DefaultConfig(),
	}
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := DefaultConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for required fields and consistency.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}

	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}

	if c.Probe.Prefix != "" && !metricPrefix.MatchString(c.Probe.Prefix) {
		return fmt.Errorf("prefix %q is not a valid metric name prefix", c.Probe.Prefix)
	}

	if c.Device.DefaultPort < 1 || c.Device.DefaultPort > 65535 {
		return fmt.Errorf("device.default_port must be between 1 and 65535")
	}

	if c.Device.DialTimeout < 0 || c.Device.IOTimeout < 0 {
		return fmt.Errorf("device timeouts must not be negative")
	}

	if c.Device.Username == "" && c.Device.Password != "" {
		return fmt.Errorf("device.password requires device.username")
	}

	return nil
}
