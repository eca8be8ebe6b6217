package robot

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"

	"go.uber.org/multierr"

	"github.com/gwillem/dronearm/pkg/motion"
)

const DefaultConfigFile = "dronearm.json"

// DefaultBridgeURL is where rosbridge_server listens by default.
const DefaultBridgeURL = "ws://localhost:9090"

// Duration is a time.Duration that reads and writes as "5s" in JSON.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config holds the dronearm configuration
type Config struct {
	Bridge   BridgeConfig           `json:"bridge"`
	Limits   motion.KinematicLimits `json:"limits"`
	LogLevel string                 `json:"log_level,omitempty"`
}

// BridgeConfig holds the rosbridge connection settings
type BridgeConfig struct {
	URL              string   `json:"url"`
	Limb             string   `json:"limb,omitempty"`
	Tip              string   `json:"tip,omitempty"`
	HandshakeTimeout Duration `json:"handshake_timeout,omitempty"`
	EnableTimeout    Duration `json:"enable_timeout,omitempty"`
	LimbTimeout      Duration `json:"limb_timeout,omitempty"`
}

// Default returns a configuration for a local rosbridge.
func Default() *Config {
	cfg := &Config{Bridge: BridgeConfig{URL: DefaultBridgeURL}}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Bridge.Limb == "" {
		c.Bridge.Limb = DefaultLimb
	}
	if c.Bridge.Tip == "" {
		c.Bridge.Tip = DefaultTip
	}
	if c.Bridge.HandshakeTimeout == 0 {
		c.Bridge.HandshakeTimeout = Duration(10 * time.Second)
	}
	if c.Bridge.EnableTimeout == 0 {
		c.Bridge.EnableTimeout = Duration(5 * time.Second)
	}
	if c.Bridge.LimbTimeout == 0 {
		c.Bridge.LimbTimeout = Duration(2 * time.Second)
	}
	if c.Limits == (motion.KinematicLimits{}) {
		c.Limits = motion.DefaultLimits()
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// IsConfigured returns true if a bridge URL has been set
func (c *Config) IsConfigured() bool {
	return c.Bridge.URL != ""
}

// Validate checks the bridge URL and the kinematic limits.
func (c *Config) Validate() error {
	var err error
	u, perr := url.Parse(c.Bridge.URL)
	switch {
	case perr != nil:
		err = multierr.Append(err, fmt.Errorf("bridge url: %w", perr))
	case u.Scheme != "ws" && u.Scheme != "wss":
		err = multierr.Append(err, fmt.Errorf("bridge url %q: scheme must be ws or wss", c.Bridge.URL))
	case u.Host == "":
		err = multierr.Append(err, fmt.Errorf("bridge url %q: missing host", c.Bridge.URL))
	}
	if lerr := c.Limits.Validate(); lerr != nil {
		err = multierr.Append(err, fmt.Errorf("limits: %w", lerr))
	}
	return err
}

// LoadConfig loads configuration from the default config file
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads configuration from a specific file, filling in
// defaults for anything the file leaves out
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the default config file exists
func ConfigExists() bool {
	_, err := os.Stat(DefaultConfigFile)
	return err == nil
}
