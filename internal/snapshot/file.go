package snapshot

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/core"
	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/fsutil"
)

// maxFileSize bounds how much of a snapshot file is read.
const maxFileSize = 32 << 20

// FileStore keeps one module's snapshot in a single file.
type FileStore struct {
	path string
	opts options
}

// NewFileStore returns a store backed by path. Nothing is touched on disk
// until the first Load or Save.
func NewFileStore(path string, opts ...Option) *FileStore {
	return &FileStore{path: path, opts: applyOptions(opts)}
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Load implements Store.
func (s *FileStore) Load(_ context.Context) core.Snapshot {
	data, err := fsutil.ReadFileLimited(s.path, maxFileSize)
	if errors.Is(err, fs.ErrNotExist) {
		s.opts.logger.Debug("no previous snapshot", "path", s.path)
		return core.NewSnapshot()
	}
	if err != nil {
		s.opts.logger.Warn("previous snapshot unreadable, starting empty", "path", s.path, "error", err)
		return core.NewSnapshot()
	}

	snap, savedAt, err := Decode(data)
	if err != nil {
		s.opts.logger.Warn("previous snapshot corrupt, starting empty", "path", s.path, "error", err)
		return core.NewSnapshot()
	}
	s.opts.logger.Debug("loaded snapshot",
		"path", s.path,
		"entities", snap.Len(),
		"age", s.opts.clock.Now().Sub(savedAt).Round(time.Second).String())
	return snap
}

// Save implements Store.
func (s *FileStore) Save(_ context.Context, snap core.Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return core.ErrState(core.CodeStateWrite, "creating snapshot directory").WithCause(err)
	}
	if err := atomicWriteFile(s.path, Encode(snap, s.opts.clock.Now()), 0o600); err != nil {
		return core.ErrState(core.CodeStateWrite, "writing snapshot").WithCause(err)
	}
	return nil
}

// Reset implements Store.
func (s *FileStore) Reset(_ context.Context) error {
	if err := fsutil.RemoveIfExists(s.path); err != nil {
		return core.ErrState(core.CodeStateWrite, "removing snapshot").WithCause(err)
	}
	return nil
}
