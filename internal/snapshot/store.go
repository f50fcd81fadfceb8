// Package snapshot persists the set of monitored processes observed by one
// probe invocation so the next invocation can diff against it.
//
// Every backend degrades the same way: a missing, unreadable or corrupt
// record loads as an empty snapshot, and a failed save is reported as a
// state error that callers log and absorb.
package snapshot

import (
	"context"
	"io"
	"log/slog"

	"github.com/juju/clock"

	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/core"
)

// Store loads and saves the previous snapshot for a single probe module.
type Store interface {
	// Load returns the persisted snapshot, or an empty one when nothing
	// usable is stored. It never fails.
	Load(ctx context.Context) core.Snapshot
	// Save replaces the persisted snapshot.
	Save(ctx context.Context, s core.Snapshot) error
	// Reset discards the persisted snapshot. A store with nothing
	// persisted resets successfully.
	Reset(ctx context.Context) error
}

// Option configures a store.
type Option func(*options)

type options struct {
	clock  clock.Clock
	logger *slog.Logger
}

func defaultOptions() options {
	return options{
		clock:  clock.WallClock,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock sets the clock used to stamp saved snapshots.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger sets the logger that receives load degradation warnings.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Closeable is implemented by stores that hold resources.
type Closeable interface {
	Close() error
}

// Close releases the store if it holds resources.
func Close(s Store) error {
	if c, ok := s.(Closeable); ok {
		return c.Close()
	}
	return nil
}
