// Package config manages relic preferences
package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/harshul/relic/internal/launcher"
	"github.com/harshul/relic/internal/platform"
	"github.com/spf13/viper"
)

// launchCommandPlaceholder is replaced by the title's launch command in
// provider paths, argv entries and browser URLs.
const launchCommandPlaceholder = "{launch_command}"

// Config holds the relic configuration
type Config struct {
	Root          string                  `mapstructure:"root"`
	Proxy         string                  `mapstructure:"proxy"`
	EnvPath       string                  `mapstructure:"env_path"`
	Native        bool                    `mapstructure:"native"`
	ExecMappings  string                  `mapstructure:"exec_mappings"`
	Catalog       string                  `mapstructure:"catalog"`
	Services      string                  `mapstructure:"services"`
	PathOverrides []launcher.PathOverride `mapstructure:"path_overrides"`
	Browser       BrowserConfig           `mapstructure:"browser"`
	Providers     []ProviderConfig        `mapstructure:"providers"`
	Log           LogConfig               `mapstructure:"log"`
	Metrics       MetricsConfig           `mapstructure:"metrics"`
}

// BrowserConfig holds the embedded browser runner configuration
type BrowserConfig struct {
	Executable string   `mapstructure:"executable"`
	Args       []string `mapstructure:"args"`
	StripEnv   []string `mapstructure:"strip_env"`
}

// ProviderConfig declares a static provider. Exactly one of Path, Argv and
// Browser is set.
type ProviderConfig struct {
	Name     string         `mapstructure:"name"`
	Provides []string       `mapstructure:"provides"`
	Path     string         `mapstructure:"path"`
	Argv     []string       `mapstructure:"argv"`
	Browser  *BrowserTarget `mapstructure:"browser"`
}

// BrowserTarget is what a browser provider opens
type BrowserTarget struct {
	URL   string `mapstructure:"url"`
	Proxy string `mapstructure:"proxy"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig holds the metrics endpoint configuration
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load loads configuration from path, or from relic.yaml in $HOME/.relic
// or the working directory when path is empty. RELIC_* environment
// variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set config name and paths
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("relic")
		v.AddConfigPath("$HOME/.relic")
		v.AddConfigPath(".")
	}
	v.SetConfigType("yaml")

	// Environment variable overrides
	v.SetEnvPrefix("RELIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("root", ".")
	v.SetDefault("proxy", "")
	v.SetDefault("env_path", "")
	v.SetDefault("native", false)
	v.SetDefault("exec_mappings", "execs.yaml")
	v.SetDefault("catalog", "catalog.yaml")
	v.SetDefault("services", "services.yaml")
	v.SetDefault("browser.executable", "")
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.strip_env", launcher.DefaultStripEnv)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("metrics.addr", "")

	// Read config file (ignore if not found - use defaults)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	cfg.Root = root

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	for i, p := range c.Providers {
		set := 0
		if p.Path != "" {
			set++
		}
		if len(p.Argv) > 0 {
			set++
		}
		if p.Browser != nil {
			set++
		}
		if set != 1 {
			return fmt.Errorf("invalid configuration: provider %d (%q) must set exactly one of path, argv and browser", i, p.Name)
		}
		if p.Browser != nil && p.Browser.URL == "" {
			return fmt.Errorf("invalid configuration: provider %q has no browser url", p.Name)
		}
		if len(p.Provides) == 0 {
			return fmt.Errorf("invalid configuration: provider %q provides nothing", p.Name)
		}
	}
	return nil
}

// ResolvePath makes a configured file path absolute against the root.
func (c *Config) ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Root, path)
}

// Preferences builds the launcher preferences.
func (c *Config) Preferences(mappings []platform.ExecMapping) launcher.Preferences {
	return launcher.Preferences{
		Root:         c.Root,
		Proxy:        c.Proxy,
		EnvPath:      c.EnvPath,
		Native:       c.Native,
		ExecMappings: mappings,
		Overrides:    c.PathOverrides,
		Browser: launcher.BrowserPreferences{
			Executable: c.Browser.Executable,
			Args:       c.Browser.Args,
			StripEnv:   c.Browser.StripEnv,
		},
	}
}

// ProviderList builds launcher providers from the configured ones.
func (c *Config) ProviderList() launcher.ProviderList {
	var out launcher.ProviderList
	for _, p := range c.Providers {
		out = append(out, launcher.Provider{
			Name:     p.Name,
			Provides: p.Provides,
			Resolve:  staticResolver(p),
		})
	}
	return out
}

func staticResolver(p ProviderConfig) func(context.Context, launcher.Title, string) (launcher.Resolution, error) {
	return func(ctx context.Context, title launcher.Title, launchCommand string) (launcher.Resolution, error) {
		expand := func(s string) string {
			return strings.ReplaceAll(s, launchCommandPlaceholder, launchCommand)
		}
		switch {
		case p.Browser != nil:
			return launcher.BrowserResolution{URL: expand(p.Browser.URL), Proxy: p.Browser.Proxy}, nil
		case len(p.Argv) > 0:
			argv := make(launcher.ResolvedArgv, len(p.Argv))
			for i, a := range p.Argv {
				argv[i] = expand(a)
			}
			return argv, nil
		default:
			return launcher.ResolvedPath(expand(p.Path)), nil
		}
	}
}
