// Package config provides configuration management for the eqviz CLI.
//
// Values are layered with koanf: defaults < eqviz.yaml < EQVIZ_* environment
// variables < explicitly set flags.
package config

import (
	"time"

	intconfig "github.com/leapstack-labs/eqviz/internal/config"
)

// UIConfig holds configuration for the dashboard server.
type UIConfig struct {
	Port int `koanf:"port"`
	// SessionSecret signs the dashboard cookie. A random key is generated
	// per run when empty.
	SessionSecret string `koanf:"session_secret"`
}

// WatchConfig holds configuration for the directory watcher.
type WatchConfig struct {
	Dir      string        `koanf:"dir"`
	Debounce time.Duration `koanf:"debounce"`
}

// Config holds all CLI configuration options.
type Config struct {
	BaseURL      string        `koanf:"base_url"`
	StatePath    string        `koanf:"state_path"`
	ReportDir    string        `koanf:"report_dir"`
	OutputFormat string        `koanf:"output"`
	Verbose      bool          `koanf:"verbose"`
	Timeout      time.Duration `koanf:"timeout"`
	ActivityKeep int           `koanf:"activity_keep"`
	UI           UIConfig      `koanf:"ui"`
	Watch        WatchConfig   `koanf:"watch"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// ClientConfig returns the transport settings.
func (c *Config) ClientConfig() intconfig.ClientConfig {
	cc := intconfig.ClientConfig{BaseURL: c.BaseURL, Timeout: c.Timeout}
	intconfig.ApplyClientDefaults(&cc)
	return cc
}

// Default configuration values.
const (
	DefaultStateFile = intconfig.DefaultStateFile
	DefaultOutput    = "auto" // TTY=text, non-TTY=markdown
)

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		BaseURL:      intconfig.DefaultBaseURL,
		StatePath:    intconfig.DefaultStateFile,
		ReportDir:    intconfig.DefaultReportDir,
		OutputFormat: DefaultOutput,
		ActivityKeep: intconfig.DefaultActivityKeep,
		UI:           UIConfig{Port: intconfig.DefaultUIPort},
		Watch:        WatchConfig{Debounce: intconfig.DefaultWatchDebounce},
	}
}
