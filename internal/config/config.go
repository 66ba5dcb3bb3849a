// Package config loads distroshift configuration.
//
// Configuration is read once at startup from, in increasing precedence:
//  1. built-in defaults
//  2. /etc/distroshift/config.toml (optional) or the file named by --config
//  3. DISTROSHIFT_* environment variables (log.level -> DISTROSHIFT_LOG_LEVEL)
//
// The resulting *Config is passed to every component that needs it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultDir holds the system-wide configuration file and mapping overrides.
const DefaultDir = "/etc/distroshift"

// Config is the root configuration structure.
type Config struct {
	DataDir       string `mapstructure:"data_dir"`
	SnapshotDir   string `mapstructure:"snapshot_dir"`
	CacheDir      string `mapstructure:"cache_dir"`
	ProfilesDir   string `mapstructure:"profiles_dir"`
	RepositoryURL string `mapstructure:"repository_url"`
	MappingsFile  string `mapstructure:"mappings_file"`

	Log         LogConfig         `mapstructure:"log"`
	Timeouts    TimeoutConfig     `mapstructure:"timeouts"`
	Lock        LockConfig        `mapstructure:"lock"`
	Translation TranslationConfig `mapstructure:"translation"`

	// File is the configuration file that was read, if any.
	File string `mapstructure:"-"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// TimeoutConfig bounds external commands.
type TimeoutConfig struct {
	Command        time.Duration `mapstructure:"command"`
	PackageManager time.Duration `mapstructure:"package_manager"`
	Rsync          time.Duration `mapstructure:"rsync"`
	Hook           time.Duration `mapstructure:"hook"`
	Fetch          time.Duration `mapstructure:"fetch"`
}

// LockConfig controls the single-writer lock.
type LockConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// TranslationConfig controls automatic package installation.
type TranslationConfig struct {
	// MinConfidence is exclusive: only mappings above it are installed.
	MinConfidence float64 `mapstructure:"min_confidence"`
	BatchSize     int     `mapstructure:"batch_size"`
}

// Load reads configuration. An empty path searches DefaultDir for
// config.toml and tolerates its absence; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(DefaultDir)
	}

	v.SetEnvPrefix("DISTROSHIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	cfg.fillDerived()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "/var/lib/distroshift")
	v.SetDefault("snapshot_dir", "")
	v.SetDefault("cache_dir", "/var/cache/distroshift")
	v.SetDefault("profiles_dir", filepath.Join(DefaultDir, "profiles"))
	v.SetDefault("repository_url", "")
	v.SetDefault("mappings_file", filepath.Join(DefaultDir, "mappings"))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")

	v.SetDefault("timeouts.command", "2m")
	v.SetDefault("timeouts.package_manager", "30m")
	v.SetDefault("timeouts.rsync", "6h")
	v.SetDefault("timeouts.hook", "10m")
	v.SetDefault("timeouts.fetch", "30s")

	v.SetDefault("lock.timeout", "10s")

	v.SetDefault("translation.min_confidence", 0.5)
	v.SetDefault("translation.batch_size", 50)
}

// fillDerived resolves paths that default relative to DataDir.
func (c *Config) fillDerived() {
	if c.SnapshotDir == "" {
		c.SnapshotDir = filepath.Join(c.DataDir, "snapshots")
	}
	if c.Log.File == "" {
		c.Log.File = filepath.Join(c.DataDir, "distroshift.log")
	}
}

// Validate checks for configuration errors that would break a migration.
func (c *Config) Validate() error {
	for key, dir := range map[string]string{
		"data_dir":     c.DataDir,
		"snapshot_dir": c.SnapshotDir,
		"cache_dir":    c.CacheDir,
	} {
		if strings.TrimSpace(dir) == "" {
			return fmt.Errorf("%s must not be empty", key)
		}
		if !filepath.IsAbs(dir) {
			return fmt.Errorf("%s must be an absolute path, got %q", key, dir)
		}
	}
	if c.Translation.MinConfidence < 0 || c.Translation.MinConfidence > 1 {
		return fmt.Errorf("translation.min_confidence must be within [0,1], got %v", c.Translation.MinConfidence)
	}
	if c.Translation.BatchSize < 1 {
		return fmt.Errorf("translation.batch_size must be at least 1, got %d", c.Translation.BatchSize)
	}
	for key, d := range map[string]time.Duration{
		"timeouts.command":         c.Timeouts.Command,
		"timeouts.package_manager": c.Timeouts.PackageManager,
		"timeouts.rsync":           c.Timeouts.Rsync,
		"timeouts.hook":            c.Timeouts.Hook,
		"timeouts.fetch":           c.Timeouts.Fetch,
		"lock.timeout":             c.Lock.Timeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", key, d)
		}
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}

func (c *Config) MappingDBPath() string   { return filepath.Join(c.DataDir, "package_mappings.db") }
func (c *Config) HistoryPath() string     { return filepath.Join(c.DataDir, "history.json") }
func (c *Config) StatePath() string       { return filepath.Join(c.DataDir, "current_state.json") }
func (c *Config) ConfigBackupDir() string { return filepath.Join(c.DataDir, "config_backup") }
func (c *Config) ConfigStageDir() string  { return filepath.Join(c.DataDir, "config_stage") }
func (c *Config) UserBackupDir() string   { return filepath.Join(c.DataDir, "user_backup") }

// EnsureDirs creates the data, snapshot and cache directories.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.DataDir, c.SnapshotDir, c.CacheDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}
