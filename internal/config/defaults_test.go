package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyClientDefaults(t *testing.T) {
	c := &ClientConfig{}
	ApplyClientDefaults(c)
	assert.Equal(t, DefaultBaseURL, c.BaseURL)
	assert.Zero(t, c.Timeout)

	c = &ClientConfig{BaseURL: "https://analytics.example.com/api"}
	ApplyClientDefaults(c)
	assert.Equal(t, "https://analytics.example.com/api", c.BaseURL)

	assert.NotPanics(t, func() { ApplyClientDefaults(nil) })
}
