// Package meminfo parses the kernel memory accounting table exposed at
// /proc/meminfo.
package meminfo

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/core"
	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/fsutil"
)

// DefaultPath is where Linux exposes the table.
const DefaultPath = "/proc/meminfo"

// maxSize bounds the bytes read from the table.
const maxSize = 1 << 20

// requiredFields must all be present for a table to be usable.
var requiredFields = []string{"MemTotal", "MemFree", "Buffers", "Cached", "SwapTotal", "SwapFree"}

// Info holds the fields the memory module reports on, in kB, plus every
// labelled line of the table.
type Info struct {
	MemTotal  int64
	MemFree   int64
	Buffers   int64
	Cached    int64
	SwapTotal int64
	SwapFree  int64

	// Fields keeps every "Label: value" line, keyed by label.
	Fields map[string]int64
}

// ActualFree is memory that can be handed to applications without swapping.
func (i Info) ActualFree() int64 {
	return i.MemFree + i.Buffers + i.Cached
}

// SwapUsed is the swap in use, in kB.
func (i Info) SwapUsed() int64 {
	return i.SwapTotal - i.SwapFree
}

// ActualFreePercent is ActualFree as a whole percentage of MemTotal,
// rounded down.
func (i Info) ActualFreePercent() int64 {
	if i.MemTotal <= 0 {
		return 0
	}
	return i.ActualFree() * 100 / i.MemTotal
}

// Parse reads a meminfo table. Only lines whose first token ends in a colon
// are considered, and a non-numeric value is an error only for a required
// field. Missing required fields or a non-positive MemTotal yield
// a facts error.
func Parse(r io.Reader) (Info, error) {
	info := Info{Fields: make(map[string]int64)}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		tokens := strings.Fields(sc.Text())
		if len(tokens) < 2 || !strings.HasSuffix(tokens[0], ":") {
			continue
		}
		label := strings.TrimSuffix(tokens[0], ":")
		v, err := strconv.ParseInt(tokens[1], 10, 64)
		if err != nil && !slices.Contains(requiredFields, label) {
			continue
		}
		if err != nil {
			return Info{}, core.ErrFacts(core.CodeInvalidField, fmt.Sprintf("meminfo field %s has non-numeric value %q", label, tokens[1])).
				WithCause(err)
		}
		info.Fields[label] = v
	}
	if err := sc.Err(); err != nil {
		return Info{}, core.ErrFacts(core.CodeInvalidField, "reading meminfo").WithCause(err)
	}

	for _, name := range requiredFields {
		if _, ok := info.Fields[name]; !ok {
			return Info{}, core.ErrFacts(core.CodeMissingField, fmt.Sprintf("meminfo field %s missing", name)).
				WithDetail("field", name)
		}
	}

	info.MemTotal = info.Fields["MemTotal"]
	info.MemFree = info.Fields["MemFree"]
	info.Buffers = info.Fields["Buffers"]
	info.Cached = info.Fields["Cached"]
	info.SwapTotal = info.Fields["SwapTotal"]
	info.SwapFree = info.Fields["SwapFree"]

	if info.MemTotal <= 0 {
		return Info{}, core.ErrFacts(core.CodeInvalidField, fmt.Sprintf("meminfo MemTotal must be positive, got %d", info.MemTotal))
	}
	return info, nil
}

// Read parses the table at path.
func Read(path string) (Info, error) {
	data, err := fsutil.ReadFileLimited(path, maxSize)
	if err != nil {
		return Info{}, core.ErrFacts(core.CodeMissingField, "reading "+path).WithCause(err)
	}
	return Parse(bytes.NewReader(data))
}
