package snapshot

import (
	"fmt"
	"strings"

	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/core"
)

// Backend selects where snapshots are kept.
type Backend string

const (
	BackendFile   Backend = "file"
	BackendSQLite Backend = "sqlite"
)

// Config describes the store a module should use.
type Config struct {
	Backend Backend
	// FilePath is the snapshot file for the file backend.
	FilePath string
	// SQLitePath is the shared database for the sqlite backend.
	SQLitePath string
	// Module scopes rows in the shared database.
	Module string
}

// New creates the store described by cfg.
func New(cfg Config, opts ...Option) (Store, error) {
	switch Backend(strings.ToLower(string(cfg.Backend))) {
	case BackendFile, "":
		if strings.TrimSpace(cfg.FilePath) == "" {
			return nil, core.ErrConfig(core.CodeMissingConfig, "snapshot file path is empty")
		}
		return NewFileStore(cfg.FilePath, opts...), nil
	case BackendSQLite:
		if strings.TrimSpace(cfg.SQLitePath) == "" {
			return nil, core.ErrConfig(core.CodeMissingConfig, "snapshot database path is empty")
		}
		if cfg.Module == "" {
			return nil, core.ErrConfig(core.CodeMissingConfig, "sqlite snapshot store needs a module name")
		}
		return NewSQLiteStore(cfg.SQLitePath, cfg.Module, opts...), nil
	default:
		return nil, core.ErrConfig(core.CodeInvalidConfig, fmt.Sprintf("unknown snapshot backend %q", cfg.Backend))
	}
}
