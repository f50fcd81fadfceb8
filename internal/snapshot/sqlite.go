package snapshot

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/core"
)

//go:embed migrations/001_snapshot_schema.sql
var migrationV1 string

// SQLiteStore keeps the snapshots of every module in one SQLite database,
// one row set per module.
//
// The database is opened on first use. A database that cannot be opened or
// migrated behaves like an empty store on Load and fails Save with a state
// error, so a broken file never aborts an invocation.
type SQLiteStore struct {
	dbPath string
	module string
	opts   options

	mu      sync.Mutex
	db      *sql.DB
	openErr error
}

// NewSQLiteStore returns a store for module backed by the database at dbPath.
func NewSQLiteStore(dbPath, module string, opts ...Option) *SQLiteStore {
	return &SQLiteStore{dbPath: dbPath, module: module, opts: applyOptions(opts)}
}

// Path returns the database file.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

func (s *SQLiteStore) open() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil || s.openErr != nil {
		return s.db, s.openErr
	}

	if err := os.MkdirAll(filepath.Dir(s.dbPath), 0o750); err != nil {
		s.openErr = fmt.Errorf("creating state directory: %w", err)
		return nil, s.openErr
	}

	// busy_timeout lets overlapping invocations of different modules wait
	// for each other instead of failing on SQLITE_BUSY.
	db, err := sql.Open("sqlite", s.dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		s.openErr = fmt.Errorf("opening database: %w", err)
		return nil, s.openErr
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		s.openErr = fmt.Errorf("running migrations: %w", err)
		return nil, s.openErr
	}

	s.db = db
	return db, nil
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		// Table doesn't exist yet.
		version = 0
	}
	if version < 1 {
		if _, err := db.Exec(migrationV1); err != nil {
			return fmt.Errorf("applying migration v1: %w", err)
		}
	}
	return nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context) core.Snapshot {
	db, err := s.open()
	if err != nil {
		s.opts.logger.Warn("snapshot database unavailable, starting empty", "path", s.dbPath, "error", err)
		return core.NewSnapshot()
	}

	snap, err := s.load(ctx, db)
	if err != nil {
		s.opts.logger.Warn("previous snapshot unreadable, starting empty",
			"path", s.dbPath, "module", s.module, "error", err)
		return core.NewSnapshot()
	}
	s.opts.logger.Debug("loaded snapshot", "path", s.dbPath, "module", s.module, "entities", snap.Len())
	return snap
}

func (s *SQLiteStore) load(ctx context.Context, db *sql.DB) (core.Snapshot, error) {
	var version int
	err := db.QueryRowContext(ctx, "SELECT version FROM snapshots WHERE module = ?", s.module).Scan(&version)
	if err == sql.ErrNoRows {
		return core.NewSnapshot(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot header: %w", err)
	}
	if version != CodecVersion {
		return nil, corrupted(fmt.Sprintf("unsupported version %d", version), nil)
	}

	rows, err := db.QueryContext(ctx,
		"SELECT pid, signature FROM snapshot_entries WHERE module = ? ORDER BY pid", s.module)
	if err != nil {
		return nil, fmt.Errorf("querying snapshot entries: %w", err)
	}
	defer rows.Close()

	snap := core.NewSnapshot()
	for rows.Next() {
		var pid int
		var sig string
		if err := rows.Scan(&pid, &sig); err != nil {
			return nil, fmt.Errorf("scanning snapshot entry: %w", err)
		}
		snap[pid] = sig
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshot entries: %w", err)
	}
	return snap, nil
}

// Save implements Store. The previous row set is replaced in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, snap core.Snapshot) error {
	db, err := s.open()
	if err != nil {
		return core.ErrState(core.CodeStateWrite, "snapshot database unavailable").WithCause(err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return core.ErrState(core.CodeStateWrite, "beginning transaction").WithCause(err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM snapshots WHERE module = ?", s.module); err != nil {
		return core.ErrState(core.CodeStateWrite, "clearing snapshot").WithCause(err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO snapshots (module, version, saved_at) VALUES (?, ?, ?)",
		s.module, CodecVersion, s.opts.clock.Now().Unix()); err != nil {
		return core.ErrState(core.CodeStateWrite, "writing snapshot header").WithCause(err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO snapshot_entries (module, pid, signature) VALUES (?, ?, ?)")
	if err != nil {
		return core.ErrState(core.CodeStateWrite, "preparing snapshot insert").WithCause(err)
	}
	defer stmt.Close()

	for _, pid := range snap.SortedPIDs() {
		if _, err := stmt.ExecContext(ctx, s.module, pid, snap[pid]); err != nil {
			return core.ErrState(core.CodeStateWrite, fmt.Sprintf("writing entry for pid %d", pid)).WithCause(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.ErrState(core.CodeStateWrite, "committing snapshot").WithCause(err)
	}
	return nil
}

// Reset implements Store.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	db, err := s.open()
	if err != nil {
		return core.ErrState(core.CodeStateWrite, "snapshot database unavailable").WithCause(err)
	}
	// Entries go with the header through the cascading foreign key.
	if _, err := db.ExecContext(ctx, "DELETE FROM snapshots WHERE module = ?", s.module); err != nil {
		return core.ErrState(core.CodeStateWrite, "removing snapshot").WithCause(err)
	}
	return nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}
