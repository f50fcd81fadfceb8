// Package probe discovers the processes a module monitors by walking the
// host process table and matching each command line against a prefix.
package probe

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/core"
)

// DefaultPrefix matches the process titles postgres backends set for themselves.
const DefaultPrefix = "postgres:"

// ProcessTable is the read-only view of the host process table a Prober needs.
type ProcessTable interface {
	// PIDs lists every process currently known to the kernel.
	PIDs(ctx context.Context) ([]int32, error)
	// Cmdline returns the command line of pid. It fails when the process
	// has exited or cannot be inspected.
	Cmdline(ctx context.Context, pid int32) (string, error)
}

// Prober builds snapshots of the processes whose command line starts with
// a prefix.
type Prober struct {
	table  ProcessTable
	prefix string
	logger *slog.Logger
}

// NewProber creates a prober. An empty prefix falls back to DefaultPrefix
// and a nil logger discards output.
func NewProber(table ProcessTable, prefix string, logger *slog.Logger) *Prober {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Prober{table: table, prefix: prefix, logger: logger}
}

// Prefix returns the command line prefix this prober matches.
func (p *Prober) Prefix() string {
	return p.prefix
}

// Gather enumerates the process table and returns the matching processes.
// Processes that vanish between enumeration and inspection are skipped.
func (p *Prober) Gather(ctx context.Context) (core.Snapshot, error) {
	pids, err := p.table.PIDs(ctx)
	if err != nil {
		return nil, core.ErrFacts(core.CodeProcTable, "enumerating process table").WithCause(err)
	}

	snap := core.NewSnapshot()
	skipped := 0
	for _, pid := range pids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cmdline, err := p.table.Cmdline(ctx, pid)
		if err != nil {
			skipped++
			continue
		}
		if strings.HasPrefix(cmdline, p.prefix) {
			snap[int(pid)] = cmdline
		}
	}

	p.logger.Debug("process table scanned",
		"prefix", p.prefix,
		"processes", len(pids),
		"matched", snap.Len(),
		"skipped", skipped)
	return snap, nil
}
