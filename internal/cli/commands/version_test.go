package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVersionCommand(t *testing.T) {
	tests := []struct {
		name    string
		version string
		commit  string
		wantOut []string
	}{
		{
			name:    "default version",
			version: "0.1.0",
			commit:  "unknown",
			wantOut: []string{"eqviz v0.1.0", "commit unknown"},
		},
		{
			name:    "custom version",
			version: "1.2.3",
			commit:  "abc1234",
			wantOut: []string{"eqviz v1.2.3", "commit abc1234"},
		},
		{
			name:    "dev version",
			version: "dev",
			wantOut: []string{"eqviz vdev"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewVersionCommand(tt.version, tt.commit, "2026-01-01")
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs([]string{})

			require.NoError(t, cmd.Execute())

			for _, want := range tt.wantOut {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestVersionCommandMetadata(t *testing.T) {
	cmd := NewVersionCommand("test", "", "")

	assert.Equal(t, "version", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
}
