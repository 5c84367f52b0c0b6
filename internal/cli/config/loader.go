package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	intconfig "github.com/leapstack-labs/eqviz/internal/config"
	"github.com/spf13/pflag"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// EnvPrefix is the prefix of environment variables read by the loader.
const EnvPrefix = "EQVIZ_"

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

var configNames = []string{"eqviz.yaml", "eqviz.yml"}

// flagKeys maps flag names to config keys. Flags not listed never reach the
// configuration.
var flagKeys = map[string]string{
	"base-url":   "base_url",
	"state":      "state_path",
	"report-dir": "report_dir",
	"output":     "output",
	"verbose":    "verbose",
	"timeout":    "timeout",
	"port":       "ui.port",
	"debounce":   "watch.debounce",
}

// nestedPrefixes are env key prefixes that map to nested sections.
var nestedPrefixes = []string{"ui_", "watch_"}

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config
)

func configExistsIn(dir string) string {
	for _, name := range configNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// findConfigUpward searches upward from startDir for an eqviz config file.
func findConfigUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if p := configExistsIn(dir); p != "" {
			return p
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// envKey turns EQVIZ_UI_SESSION_SECRET into ui.session_secret.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, p := range nestedPrefixes {
		if strings.HasPrefix(key, p) {
			return strings.TrimSuffix(p, "_") + "." + strings.TrimPrefix(key, p)
		}
	}
	return key
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
// Relative paths are resolved against the config file's directory, or the
// working directory when there is no config file.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")
	configFileUsed = ""

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	// 1. Defaults
	def := Default()
	if err := k.Load(confmap.Provider(map[string]any{
		"base_url":       def.BaseURL,
		"state_path":     def.StatePath,
		"report_dir":     def.ReportDir,
		"output":         def.OutputFormat,
		"verbose":        false,
		"timeout":        "0s",
		"activity_keep":  def.ActivityKeep,
		"ui.port":        def.UI.Port,
		"watch.debounce": def.Watch.Debounce.String(),
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if cfgFile != "" {
		configFileUsed = cfgFile
	} else {
		configFileUsed = findConfigUpward(cwd)
	}
	projectRoot := cwd
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
		if abs, err := filepath.Abs(configFileUsed); err == nil {
			projectRoot = filepath.Dir(abs)
		}
	}

	// 3. Environment (EQVIZ_BASE_URL -> base_url, EQVIZ_UI_PORT -> ui.port)
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags that were explicitly set. Paths given as flags are relative
	// to the working directory, not the project root.
	var flagStatePath, flagReportDir string
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
		flagStatePath = absFlag(flags, "state")
		flagReportDir = absFlag(flags, "report-dir")
	}

	// 5. Decode
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			Result:           &cfg,
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.ProjectRoot = projectRoot
	cfg.BaseURL = expandEnvVars(cfg.BaseURL)

	if flagStatePath != "" {
		cfg.StatePath = flagStatePath
	} else {
		cfg.StatePath = resolvePathRelativeTo(cfg.StatePath, projectRoot)
	}
	if flagReportDir != "" {
		cfg.ReportDir = flagReportDir
	} else {
		cfg.ReportDir = resolvePathRelativeTo(cfg.ReportDir, projectRoot)
	}
	if cfg.Watch.Dir != "" {
		cfg.Watch.Dir = resolvePathRelativeTo(cfg.Watch.Dir, projectRoot)
	}
	if cfg.UI.Port == 0 {
		cfg.UI.Port = intconfig.DefaultUIPort
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	currentConfig = &cfg
	return &cfg, nil
}

func absFlag(flags *pflag.FlagSet, name string) string {
	f := flags.Lookup(name)
	if f == nil || !f.Changed || f.Value.String() == "" {
		return ""
	}
	v := f.Value.String()
	if v == ":memory:" {
		return v
	}
	abs, err := filepath.Abs(v)
	if err != nil {
		return v
	}
	return abs
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the configuration loaded last, or nil.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() any {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns with environment variable values.
// Unknown variables are left as written.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})
}
