package testutil

import (
	"fmt"
	"strings"
)

// MeminfoSample is a trimmed /proc/meminfo from a 16 GiB host with 2 GiB swap,
// 512 MiB of it in use. ActualFree is 4096000 kB, ActualFreePercent 25.
const MeminfoSample = `MemTotal:       16384000 kB
MemFree:         2048000 kB
MemAvailable:    5000000 kB
Buffers:          512000 kB
Cached:          1536000 kB
SwapCached:        10240 kB
Active:          8000000 kB
Inactive:        4000000 kB
SwapTotal:       2097152 kB
SwapFree:        1572864 kB
Dirty:               128 kB
HugePages_Total:       0
HugePages_Free:        0
Hugepagesize:       2048 kB
`

// Meminfo renders a minimal /proc/meminfo body from the given kB values.
func Meminfo(total, free, buffers, cached, swapTotal, swapFree int64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "MemTotal:       %d kB\n", total)
	fmt.Fprintf(&b, "MemFree:        %d kB\n", free)
	fmt.Fprintf(&b, "Buffers:        %d kB\n", buffers)
	fmt.Fprintf(&b, "Cached:         %d kB\n", cached)
	fmt.Fprintf(&b, "SwapTotal:      %d kB\n", swapTotal)
	fmt.Fprintf(&b, "SwapFree:       %d kB\n", swapFree)
	return b.String()
}

// PostgresBackend returns a postgres process title for a client backend.
func PostgresBackend(user, db, state string) string {
	return fmt.Sprintf("postgres: %s %s 127.0.0.1(5432) %s", user, db, state)
}
