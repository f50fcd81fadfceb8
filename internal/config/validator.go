package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/core"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.validateLog(&cfg.Log)
	v.validateState(&cfg.State)
	v.validateOutput(&cfg.Output)
	v.validatePostgres(&cfg.Postgres)
	v.validateMemory(&cfg.Memory)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

// Errors returns the collected validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

func (v *Validator) addError(field string, value interface{}, msg string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: msg,
	})
}

func (v *Validator) validateLog(cfg *LogConfig) {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[cfg.Level] {
		v.addError("log.level", cfg.Level, "must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"auto": true, "text": true, "json": true,
	}
	if !validFormats[cfg.Format] {
		v.addError("log.format", cfg.Format, "must be one of: auto, text, json")
	}

	if cfg.File != "" && !isValidPath(cfg.File) {
		v.addError("log.file", cfg.File, "invalid file path")
	}
}

func (v *Validator) validateState(cfg *StateConfig) {
	switch cfg.Backend {
	case "file":
		if cfg.PostgresFile == "" {
			v.addError("state.postgres_file", cfg.PostgresFile, "path required for file backend")
		}
	case "sqlite":
		if cfg.SQLiteFile == "" {
			v.addError("state.sqlite_file", cfg.SQLiteFile, "path required for sqlite backend")
		}
	default:
		v.addError("state.backend", cfg.Backend, "must be one of: file, sqlite")
	}

	if cfg.Dir != "" && !filepath.IsAbs(cfg.Dir) {
		v.addError("state.dir", cfg.Dir, "must be an absolute path")
	}
}

func (v *Validator) validateOutput(cfg *OutputConfig) {
	if cfg.Format != "json" && cfg.Format != "yaml" {
		v.addError("output.format", cfg.Format, "must be one of: json, yaml")
	}
}

func (v *Validator) validatePostgres(cfg *PostgresConfig) {
	if strings.TrimSpace(cfg.CommandPrefix) == "" {
		v.addError("postgres.command_prefix", cfg.CommandPrefix, "must not be empty")
	}
	if strings.TrimSpace(cfg.IdleMarker) == "" {
		v.addError("postgres.idle_marker", cfg.IdleMarker, "must not be empty")
	}

	v.positive("postgres.idle_n", cfg.IdleN)
	v.positive("postgres.warning_idle_count", cfg.WarningIdleCount)
	v.positive("postgres.critical_idle_count", cfg.CriticalIdleCount)
	v.positive("postgres.warning_count", cfg.WarningCount)
	v.positive("postgres.critical_count", cfg.CriticalCount)
	v.positive("postgres.health_time_n", cfg.HealthTimeN)

	if cfg.WarningIdleCount >= cfg.CriticalIdleCount {
		v.addError("postgres.warning_idle_count", cfg.WarningIdleCount, "must be below critical_idle_count")
	}
	if cfg.WarningCount >= cfg.CriticalCount {
		v.addError("postgres.warning_count", cfg.WarningCount, "must be below critical_count")
	}
	if cfg.CriticalHealth <= 0 || cfg.CriticalHealth > 1000 {
		v.addError("postgres.critical_health", cfg.CriticalHealth, "must be between 1 and 1000")
	}
}

func (v *Validator) validateMemory(cfg *MemoryConfig) {
	if cfg.MeminfoPath == "" {
		v.addError("memory.meminfo_path", cfg.MeminfoPath, "path required")
	}
	if cfg.FreePercentThreshold <= 0 || cfg.FreePercentThreshold >= 100 {
		v.addError("memory.free_percent_threshold", cfg.FreePercentThreshold, "must be between 1 and 99")
	}
	v.positive("memory.swap_inuse_threshold", cfg.SwapInuseThreshold)
	v.nInM("memory.free_percent", cfg.FreePercentN, cfg.FreePercentM)
	v.nInM("memory.swap_inuse", cfg.SwapInuseN, cfg.SwapInuseM)
}

func (v *Validator) positive(field string, value int64) {
	if value <= 0 {
		v.addError(field, value, "must be positive")
	}
}

func (v *Validator) nInM(prefix string, n, m int64) {
	v.positive(prefix+"_n", n)
	v.positive(prefix+"_m", m)
	if n > m {
		v.addError(prefix+"_n", n, fmt.Sprintf("must not exceed %s_m (%d)", prefix, m))
	}
}

func isValidPath(path string) bool {
	dir := filepath.Dir(path)
	_, err := os.Stat(dir)
	return err == nil || os.IsNotExist(err)
}

// ValidateConfig is a convenience function that creates a validator and
// validates config. Failures come back as a config error wrapping the
// collected ValidationErrors.
func ValidateConfig(cfg *Config) error {
	v := NewValidator()
	if err := v.Validate(cfg); err != nil {
		return core.ErrConfig(core.CodeInvalidConfig, "invalid configuration").WithCause(err)
	}
	return nil
}
