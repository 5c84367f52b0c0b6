package config

import (
	"fmt"
	"net/url"

	"github.com/leapstack-labs/eqviz/internal/cli/output"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("base_url must be an absolute URL, got %q", c.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must use http or https, got %q", u.Scheme)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if c.StatePath == "" {
		return fmt.Errorf("state_path is required")
	}
	if _, err := output.ParseMode(c.OutputFormat); err != nil {
		return err
	}
	if c.UI.Port < 0 || c.UI.Port > 65535 {
		return fmt.Errorf("ui.port out of range: %d", c.UI.Port)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	return nil
}
