// Package config holds the payfill runner configuration read from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/payfill/guard"
)

// Config is the top-level runner configuration.
type Config struct {
	Browser BrowserConfig `yaml:"browser"`
	Target  TargetConfig  `yaml:"target"`
	Fill    FillConfig    `yaml:"fill"`
	Store   StoreConfig   `yaml:"store"`
	Control ControlConfig `yaml:"control"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	Stealth          string        `yaml:"stealth"` // headless | headful
	IgnoreCertErrors bool          `yaml:"ignore_cert_errors"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
	XvfbDisplay      string        `yaml:"xvfb_display"`
}

// TargetConfig is the checkout page to attach to.
type TargetConfig struct {
	URL string `yaml:"url"`
	// NavigateTimeout bounds the initial navigation. Default: 30s.
	NavigateTimeout time.Duration `yaml:"navigate_timeout"`
}

// FillConfig tunes the engine.
type FillConfig struct {
	// Debounce is the quiet interval before a scan. Default: 150ms.
	Debounce time.Duration `yaml:"debounce"`
	// ScanTimeout bounds one scan. Default: 30s.
	ScanTimeout time.Duration `yaml:"scan_timeout"`
	// RulesFile replaces the built-in classification rules.
	RulesFile string `yaml:"rules_file"`
	// Processors are checked after the built-in Stripe profile.
	Processors []guard.Processor `yaml:"processors"`
}

// StoreConfig locates the settings database.
type StoreConfig struct {
	Path string `yaml:"path"`
	// PollInterval is how often the settings revision is checked. Default: 500ms.
	PollInterval time.Duration `yaml:"poll_interval"`
	// JournalRetention drops scans older than this at startup. 0 keeps everything.
	JournalRetention time.Duration `yaml:"journal_retention"`
}

// ControlConfig enables the operator surfaces.
type ControlConfig struct {
	// Addr is the HTTP listen address. Empty disables HTTP.
	Addr string `yaml:"addr"`
	// MCPStdio serves the MCP tools on stdin/stdout.
	MCPStdio bool `yaml:"mcp_stdio"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills zero fields.
func (c *Config) ApplyDefaults() {
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Target.NavigateTimeout <= 0 {
		c.Target.NavigateTimeout = 30 * time.Second
	}
	if c.Fill.Debounce <= 0 {
		c.Fill.Debounce = 150 * time.Millisecond
	}
	if c.Fill.ScanTimeout <= 0 {
		c.Fill.ScanTimeout = 30 * time.Second
	}
	if c.Store.Path == "" {
		c.Store.Path = "payfill.db"
	}
	if c.Store.PollInterval <= 0 {
		c.Store.PollInterval = 500 * time.Millisecond
	}
}

// Validate checks the fields defaults cannot fix.
func (c *Config) Validate() error {
	switch c.Browser.Stealth {
	case "headless", "headful":
	default:
		return fmt.Errorf("config: browser.stealth %q: want headless or headful", c.Browser.Stealth)
	}
	if c.Target.URL == "" {
		return fmt.Errorf("config: target.url is required")
	}
	for i, p := range c.Fill.Processors {
		if p.Name == "" {
			return fmt.Errorf("config: fill.processors[%d]: name is required", i)
		}
	}
	return nil
}
