package livefill

import (
	"github.com/hazyhaar/payfill/livefill/internal/config"
)

// Config is the top-level runner configuration. Re-exported from internal.
type Config = config.Config

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig = config.BrowserConfig

// TargetConfig is the page to attach to.
type TargetConfig = config.TargetConfig

// FillConfig tunes the engine.
type FillConfig = config.FillConfig

// StoreConfig locates the settings database.
type StoreConfig = config.StoreConfig

// ControlConfig enables the operator surfaces.
type ControlConfig = config.ControlConfig

// LoadConfigFile reads a YAML configuration file and applies defaults.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	return config.Default()
}
