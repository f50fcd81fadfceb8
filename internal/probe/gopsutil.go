package probe

import (
	"context"

	"github.com/shirou/gopsutil/v3/process"
)

// HostTable reads the live process table through gopsutil.
type HostTable struct{}

// NewHostTable returns the production process table.
func NewHostTable() HostTable {
	return HostTable{}
}

// PIDs implements ProcessTable.
func (HostTable) PIDs(ctx context.Context) ([]int32, error) {
	return process.PidsWithContext(ctx)
}

// Cmdline implements ProcessTable. Arguments are joined with single spaces.
func (HostTable) Cmdline(ctx context.Context, pid int32) (string, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return "", err
	}
	return p.CmdlineWithContext(ctx)
}
