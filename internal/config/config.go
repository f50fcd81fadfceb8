package config

import (
	"path/filepath"
)

// Config holds all probe configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	State    StateConfig    `mapstructure:"state"`
	Output   OutputConfig   `mapstructure:"output"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Memory   MemoryConfig   `mapstructure:"memory"`
}

// LogConfig configures logging behavior. Logs never go to stdout, which is
// reserved for the host protocol.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// File appends logs to a file instead of stderr.
	File string `mapstructure:"file"`
}

// StateConfig configures where process snapshots are persisted between polls.
type StateConfig struct {
	// Backend is "file" or "sqlite".
	Backend string `mapstructure:"backend"`
	// Dir anchors relative file names below.
	Dir          string `mapstructure:"dir"`
	PostgresFile string `mapstructure:"postgres_file"`
	SQLiteFile   string `mapstructure:"sqlite_file"`
}

// Resolve returns name joined to Dir unless name is already absolute.
func (s StateConfig) Resolve(name string) string {
	if name == "" || filepath.IsAbs(name) || s.Dir == "" {
		return name
	}
	return filepath.Join(s.Dir, name)
}

// PostgresPath is the snapshot file of the postgres module.
func (s StateConfig) PostgresPath() string {
	return s.Resolve(s.PostgresFile)
}

// SQLitePath is the shared snapshot database.
func (s StateConfig) SQLitePath() string {
	return s.Resolve(s.SQLiteFile)
}

// OutputConfig configures how documents are written to the host.
type OutputConfig struct {
	// Format is "json" (what the host parses) or "yaml".
	Format string `mapstructure:"format"`
}

// PostgresConfig holds the postgres module thresholds.
type PostgresConfig struct {
	CommandPrefix string `mapstructure:"command_prefix"`
	IdleMarker    string `mapstructure:"idle_marker"`
	// IdleN is how many consecutive idle-in-transaction polls raise an alert.
	IdleN             int64 `mapstructure:"idle_n"`
	WarningIdleCount  int64 `mapstructure:"warning_idle_count"`
	CriticalIdleCount int64 `mapstructure:"critical_idle_count"`
	WarningCount      int64 `mapstructure:"warning_count"`
	CriticalCount     int64 `mapstructure:"critical_count"`
	// CriticalHealth is in tenths of a percent.
	CriticalHealth int64  `mapstructure:"critical_health"`
	HealthTimeN    int64  `mapstructure:"health_time_n"`
	NotifyTo       string `mapstructure:"notify_to"`
}

// MemoryConfig holds the memory module thresholds.
type MemoryConfig struct {
	MeminfoPath          string `mapstructure:"meminfo_path"`
	FreePercentThreshold int64  `mapstructure:"free_percent_threshold"`
	FreePercentN         int64  `mapstructure:"free_percent_n"`
	FreePercentM         int64  `mapstructure:"free_percent_m"`
	// SwapInuseThreshold is in kB.
	SwapInuseThreshold int64  `mapstructure:"swap_inuse_threshold"`
	SwapInuseN         int64  `mapstructure:"swap_inuse_n"`
	SwapInuseM         int64  `mapstructure:"swap_inuse_m"`
	NotifyTo           string `mapstructure:"notify_to"`
}
