package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/core"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
	searchDirs []string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return NewLoaderWithViper(viper.New())
}

// NewLoaderWithViper creates a loader using an existing viper instance.
// This allows integration with CLI flag bindings.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:          v,
		envPrefix:  "SWDIAG",
		searchDirs: DefaultSearchDirs(),
	}
}

// DefaultSearchDirs lists the directories searched for probes.yaml, highest
// precedence first.
func DefaultSearchDirs() []string {
	dirs := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".config", "swdiag"))
	}
	return append(dirs, "/etc/swdiag")
}

// WithConfigFile sets an explicit config file path. The file must exist.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithSearchDirs replaces the directories searched for probes.yaml.
func (l *Loader) WithSearchDirs(dirs ...string) *Loader {
	l.searchDirs = dirs
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
// 1. CLI flags (set via viper.BindPFlag)
// 2. Environment variables (SWDIAG_*)
// 3. Config file (explicit, or probes.yaml in ., ~/.config/swdiag, /etc/swdiag)
// 4. Defaults
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName("probes")
		l.v.SetConfigType("yaml")
		for _, dir := range l.searchDirs {
			l.v.AddConfigPath(dir)
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
			// Defaults apply.
		case errors.Is(err, os.ErrNotExist):
			return nil, core.ErrConfig(core.CodeMissingConfig, fmt.Sprintf("config file %s not found", l.configFile)).WithCause(err)
		default:
			return nil, core.ErrConfig(core.CodeInvalidConfig, "reading config").WithCause(err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, core.ErrConfig(core.CodeInvalidConfig, "unmarshaling config").WithCause(err)
	}

	return &cfg, nil
}

// setDefaults configures default values. Thresholds match the values the
// diagnostics host shipped with.
func (l *Loader) setDefaults() {
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")
	l.v.SetDefault("log.file", "")

	l.v.SetDefault("state.backend", "file")
	l.v.SetDefault("state.dir", "/var/tmp")
	l.v.SetDefault("state.postgres_file", "diag_pg_proc.snap")
	l.v.SetDefault("state.sqlite_file", "swdiag_probes.db")

	l.v.SetDefault("output.format", "json")

	l.v.SetDefault("postgres.command_prefix", "postgres:")
	l.v.SetDefault("postgres.idle_marker", "idle in transaction")
	l.v.SetDefault("postgres.idle_n", 5)
	l.v.SetDefault("postgres.warning_idle_count", 10)
	l.v.SetDefault("postgres.critical_idle_count", 20)
	l.v.SetDefault("postgres.warning_count", 90)
	l.v.SetDefault("postgres.critical_count", 120)
	l.v.SetDefault("postgres.critical_health", 800)
	l.v.SetDefault("postgres.health_time_n", 3)
	l.v.SetDefault("postgres.notify_to", "")

	l.v.SetDefault("memory.meminfo_path", "/proc/meminfo")
	l.v.SetDefault("memory.free_percent_threshold", 10)
	l.v.SetDefault("memory.free_percent_n", 3)
	l.v.SetDefault("memory.free_percent_m", 5)
	l.v.SetDefault("memory.swap_inuse_threshold", 500000)
	l.v.SetDefault("memory.swap_inuse_n", 10)
	l.v.SetDefault("memory.swap_inuse_m", 15)
	l.v.SetDefault("memory.notify_to", "")
}

// ConfigFile returns the config file path if one was used.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// Default returns the built-in configuration without reading files or the
// environment.
func Default() *Config {
	l := NewLoaderWithViper(viper.New())
	l.setDefaults()
	var cfg Config
	// Defaults always decode.
	_ = l.v.Unmarshal(&cfg)
	return &cfg
}
