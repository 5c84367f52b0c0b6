// Package config provides shared configuration defaults for eqviz.
// This package is decoupled from CLI concerns so the dashboard, watcher and
// tests can build clients without importing the command tree.
package config

import "time"

// Default configuration values.
const (
	DefaultBaseURL       = "http://localhost:8000/api"
	DefaultStateFile     = ".eqviz/state.db"
	DefaultReportDir     = "."
	DefaultUIPort        = 8766
	DefaultWatchDebounce = 250 * time.Millisecond
	// DefaultActivityKeep bounds the local activity log.
	DefaultActivityKeep = 500
)

// ClientConfig holds what is needed to reach the analytics service.
type ClientConfig struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// ApplyClientDefaults applies default values to a ClientConfig.
func ApplyClientDefaults(c *ClientConfig) {
	if c == nil {
		return
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
}
