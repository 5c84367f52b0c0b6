package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	intconfig "github.com/leapstack-labs/eqviz/internal/config"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	p := filepath.Join(dir, "eqviz.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("config", "", "")
	fs.String("base-url", "", "")
	fs.String("state", "", "")
	fs.String("report-dir", "", "")
	fs.StringP("output", "o", "", "")
	fs.BoolP("verbose", "v", false, "")
	fs.Duration("timeout", 0, "")
	fs.Int("port", 0, "")
	fs.StringP("username", "u", "", "")
	return fs
}

func TestLoadConfig_Defaults(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	t.Chdir(dir)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, intconfig.DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, filepath.Join(dir, ".eqviz", "state.db"), cfg.StatePath)
	assert.Equal(t, dir, cfg.ReportDir)
	assert.Equal(t, "auto", cfg.OutputFormat)
	assert.Equal(t, time.Duration(0), cfg.Timeout)
	assert.Equal(t, intconfig.DefaultUIPort, cfg.UI.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, intconfig.DefaultActivityKeep, cfg.ActivityKeep)
	assert.Empty(t, GetConfigFileUsed())
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_File(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, `
base_url: https://analytics.example.com/api
state_path: state/session.db
output: json
timeout: 15s
ui:
  port: 9000
  session_secret: s3cret
watch:
  dir: incoming
  debounce: 1s
`)

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	assert.Equal(t, cfgPath, GetConfigFileUsed())
	assert.Equal(t, "https://analytics.example.com/api", cfg.BaseURL)
	assert.Equal(t, filepath.Join(dir, "state", "session.db"), cfg.StatePath, "relative to the config file")
	assert.Equal(t, "json", cfg.OutputFormat)
	assert.Equal(t, 15*time.Second, cfg.Timeout)
	assert.Equal(t, 9000, cfg.UI.Port)
	assert.Equal(t, "s3cret", cfg.UI.SessionSecret)
	assert.Equal(t, filepath.Join(dir, "incoming"), cfg.Watch.Dir)
	assert.Equal(t, time.Second, cfg.Watch.Debounce)
}

func TestLoadConfig_FindsConfigUpward(t *testing.T) {
	ResetConfig()
	root := t.TempDir()
	writeConfig(t, root, "output: yaml\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o750))
	t.Chdir(nested)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "yaml", cfg.OutputFormat)
	assert.Equal(t, root, cfg.ProjectRoot)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "base_url: http://from-file:8000/api\nui:\n  port: 9000\n")

	t.Setenv("EQVIZ_BASE_URL", "http://from-env:8000/api")
	t.Setenv("EQVIZ_UI_PORT", "9100")
	t.Setenv("EQVIZ_WATCH_DEBOUNCE", "2s")

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://from-env:8000/api", cfg.BaseURL)
	assert.Equal(t, 9100, cfg.UI.Port)
	assert.Equal(t, 2*time.Second, cfg.Watch.Debounce)
}

func TestLoadConfig_FlagPrecedence(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "base_url: http://from-file:8000/api\noutput: json\n")
	t.Setenv("EQVIZ_BASE_URL", "http://from-env:8000/api")

	flags := testFlags()
	require.NoError(t, flags.Parse([]string{"--base-url", "http://from-flag:8000/api", "--timeout", "3s", "-u", "ada", "--port", "9200"}))

	cfg, err := LoadConfig(cfgPath, flags)
	require.NoError(t, err)
	assert.Equal(t, "http://from-flag:8000/api", cfg.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, "json", cfg.OutputFormat, "unset flags keep lower layers")
	assert.Equal(t, 9200, cfg.UI.Port)
}

func TestLoadConfig_FlagNotSetUsesEnv(t *testing.T) {
	ResetConfig()
	t.Chdir(t.TempDir())
	t.Setenv("EQVIZ_OUTPUT", "markdown")

	flags := testFlags()
	require.NoError(t, flags.Parse(nil))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)
	assert.Equal(t, "markdown", cfg.OutputFormat)
}

func TestLoadConfig_StateFlagRelativeToCWD(t *testing.T) {
	ResetConfig()
	root := t.TempDir()
	cfgPath := writeConfig(t, root, "state_path: from-file.db\n")
	cwd := t.TempDir()
	t.Chdir(cwd)

	flags := testFlags()
	require.NoError(t, flags.Parse([]string{"--state", "local.db"}))

	cfg, err := LoadConfig(cfgPath, flags)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, "local.db"), cfg.StatePath)
}

func TestLoadConfig_ExpandsBaseURL(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "base_url: http://${EQVIZ_TEST_HOST}/api\n")
	t.Setenv("EQVIZ_TEST_HOST", "analytics.internal:8000")

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://analytics.internal:8000/api", cfg.BaseURL)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		errSubstr string
	}{
		{name: "relative base url", body: "base_url: /api\n", errSubstr: "absolute URL"},
		{name: "bad scheme", body: "base_url: ftp://host/api\n", errSubstr: "http or https"},
		{name: "negative timeout", body: "timeout: -1s\n", errSubstr: "timeout must not be negative"},
		{name: "bad output", body: "output: xml\n", errSubstr: "invalid output mode"},
		{name: "bad duration", body: "timeout: soon\n", errSubstr: "unable to decode config"},
		{name: "broken yaml", body: "base_url: [\n", errSubstr: "error reading config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetConfig()
			cfgPath := writeConfig(t, t.TempDir(), tt.body)

			_, err := LoadConfig(cfgPath, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errSubstr string
	}{
		{name: "default is valid"},
		{name: "empty base url", mutate: func(c *Config) { c.BaseURL = "" }, errSubstr: "base_url is required"},
		{name: "no host", mutate: func(c *Config) { c.BaseURL = "http:///api" }, errSubstr: "absolute URL"},
		{name: "empty state", mutate: func(c *Config) { c.StatePath = "" }, errSubstr: "state_path is required"},
		{name: "port range", mutate: func(c *Config) { c.UI.Port = 70000 }, errSubstr: "ui.port out of range"},
		{name: "negative debounce", mutate: func(c *Config) { c.Watch.Debounce = -time.Second }, errSubstr: "watch.debounce"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			if tt.mutate != nil {
				tt.mutate(c)
			}
			err := c.Validate()
			if tt.errSubstr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "base_url", envKey("EQVIZ_BASE_URL"))
	assert.Equal(t, "ui.session_secret", envKey("EQVIZ_UI_SESSION_SECRET"))
	assert.Equal(t, "watch.dir", envKey("EQVIZ_WATCH_DIR"))
	assert.Equal(t, "state_path", envKey("EQVIZ_STATE_PATH"))
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("EQVIZ_TEST_ONE", "one")

	assert.Equal(t, "x-one-y", expandEnvVars("x-${EQVIZ_TEST_ONE}-y"))
	assert.Equal(t, "${EQVIZ_TEST_MISSING}", expandEnvVars("${EQVIZ_TEST_MISSING}"))
	assert.Equal(t, "plain", expandEnvVars("plain"))
}

func TestConfig_ClientConfig(t *testing.T) {
	c := &Config{Timeout: time.Second}
	cc := c.ClientConfig()
	assert.Equal(t, intconfig.DefaultBaseURL, cc.BaseURL)
	assert.Equal(t, time.Second, cc.Timeout)
}
