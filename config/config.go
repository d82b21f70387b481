// Package config loads the application configuration of stringlate.
//
// Values come from, in increasing priority: built-in defaults, the config
// file ($XDG_CONFIG_HOME/stringlate/config.yaml or --config), STRINGLATE_*
// environment variables and command-line flags. A missing config file is
// not an error.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/minios-linux/stringlate/android"
)

const (
	appName    = "stringlate"
	fileName   = "config"
	envPrefix  = "STRINGLATE"
	defaultAPI = "https://api.github.com/"
)

// Config is the resolved application configuration.
type Config struct {
	// DataDir holds one directory per project.
	DataDir string `mapstructure:"data_dir"`
	// CacheDir holds temporary sync work directories.
	CacheDir string `mapstructure:"cache_dir"`

	GitHubAPI      string `mapstructure:"github_api"`
	GitHubClientID string `mapstructure:"github_client_id"`
	GitBinary      string `mapstructure:"git_binary"`

	// IconDensity is the preferred density of the project icon.
	IconDensity string `mapstructure:"icon_density"`

	// ForkWait bounds how long to wait for a new fork to become usable.
	ForkWait    time.Duration `mapstructure:"fork_wait"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	HTTPRetries int           `mapstructure:"http_retries"`

	LogLevel string `mapstructure:"log_level"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"data-dir":   "data_dir",
	"cache-dir":  "cache_dir",
	"github-api": "github_api",
	"git":        "git_binary",
	"log-level":  "log_level",
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load resolves the configuration. path overrides the config file location;
// flags, if not nil, are bound for the keys they define.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(fileName)
		v.SetConfigType("yaml")
		if dir, err := configDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config read '%s': %w", v.ConfigFileUsed(), err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag --%s: %w", name, err)
				}
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	if _, err := os.Stat(cfg.File); err != nil {
		cfg.File = ""
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("cache_dir", defaultCacheDir())
	v.SetDefault("github_api", defaultAPI)
	v.SetDefault("github_client_id", "")
	v.SetDefault("git_binary", "git")
	v.SetDefault("icon_density", "xxhdpi")
	v.SetDefault("fork_wait", 2*time.Minute)
	v.SetDefault("http_timeout", 30*time.Second)
	v.SetDefault("http_retries", 3)
	v.SetDefault("log_level", "info")
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// Validate checks that every value is usable.
func (c *Config) Validate() error {
	var errs []string

	if c.DataDir == "" {
		errs = append(errs, "data_dir is required")
	}
	if c.CacheDir == "" {
		errs = append(errs, "cache_dir is required")
	}
	if u, err := url.Parse(c.GitHubAPI); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("github_api %q is not an absolute URL", c.GitHubAPI))
	}
	if c.GitBinary == "" {
		errs = append(errs, "git_binary is required")
	}
	if android.DensityIndex(c.IconDensity) < 0 {
		errs = append(errs, fmt.Sprintf("icon_density %q is not one of %s",
			c.IconDensity, strings.Join(android.Densities, ", ")))
	}
	if c.ForkWait <= 0 {
		errs = append(errs, "fork_wait must be positive")
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, "http_timeout must be positive")
	}
	if c.HTTPRetries < 0 {
		errs = append(errs, "http_retries must not be negative")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ParseLevel converts a log_level value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log_level %q is not one of debug, info, warn, error", s)
	}
	return lvl, nil
}

// Level returns the configured log level, defaulting to info.
func (c *Config) Level() slog.Level {
	lvl, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// ---------------------------------------------------------------------------
// Directories
// ---------------------------------------------------------------------------

// configDir returns $XDG_CONFIG_HOME/stringlate.
func configDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName), nil
}

// DefaultFile returns the path of the config file used when --config is
// not given.
func DefaultFile() string {
	dir, err := configDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, fileName+".yaml")
}

func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName, "repos")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", appName, "repos")
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), appName)
	}
	return filepath.Join(dir, appName)
}
