package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/core"
)

// ErrProcessGone is returned by FakeProcessTable for processes that exited
// between enumeration and inspection.
var ErrProcessGone = fmt.Errorf("process does not exist")

// FakeProcessTable is an in-memory process table for probe tests.
type FakeProcessTable struct {
	mu        sync.Mutex
	cmdlines  map[int32]string
	vanishing map[int32]bool
	listErr   error
	calls     []MockCall
}

// MockCall records a call to a fake.
type MockCall struct {
	Method string
	Args   interface{}
}

// NewFakeProcessTable creates a table holding the given pid → command line entries.
func NewFakeProcessTable(procs map[int32]string) *FakeProcessTable {
	f := &FakeProcessTable{
		cmdlines:  make(map[int32]string, len(procs)),
		vanishing: make(map[int32]bool),
	}
	for pid, cmd := range procs {
		f.cmdlines[pid] = cmd
	}
	return f
}

// Spawn adds or replaces a process.
func (f *FakeProcessTable) Spawn(pid int32, cmdline string) *FakeProcessTable {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmdlines[pid] = cmdline
	delete(f.vanishing, pid)
	return f
}

// Kill removes a process.
func (f *FakeProcessTable) Kill(pid int32) *FakeProcessTable {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.cmdlines, pid)
	delete(f.vanishing, pid)
	return f
}

// Vanish keeps pid in the listing but fails its command line lookup.
func (f *FakeProcessTable) Vanish(pid int32) *FakeProcessTable {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vanishing[pid] = true
	return f
}

// WithListError makes PIDs fail.
func (f *FakeProcessTable) WithListError(err error) *FakeProcessTable {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
	return f
}

// PIDs returns every known pid in ascending order.
func (f *FakeProcessTable) PIDs(_ context.Context) ([]int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, MockCall{Method: "PIDs"})
	if f.listErr != nil {
		return nil, f.listErr
	}
	pids := make([]int32, 0, len(f.cmdlines)+len(f.vanishing))
	for pid := range f.cmdlines {
		pids = append(pids, pid)
	}
	for pid := range f.vanishing {
		if _, ok := f.cmdlines[pid]; !ok {
			pids = append(pids, pid)
		}
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
	return pids, nil
}

// Cmdline returns the command line of pid.
func (f *FakeProcessTable) Cmdline(_ context.Context, pid int32) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, MockCall{Method: "Cmdline", Args: pid})
	if f.vanishing[pid] {
		return "", ErrProcessGone
	}
	cmd, ok := f.cmdlines[pid]
	if !ok {
		return "", ErrProcessGone
	}
	return cmd, nil
}

// CallCount returns how many times method was called.
func (f *FakeProcessTable) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// MemStore is an in-memory snapshot store.
type MemStore struct {
	mu      sync.Mutex
	snap    core.Snapshot
	saveErr error
	saves   int
	resets  int
}

// NewMemStore creates a store preloaded with snap (nil means nothing persisted).
func NewMemStore(snap core.Snapshot) *MemStore {
	m := &MemStore{}
	if snap != nil {
		m.snap = snap.Clone()
	}
	return m
}

// WithSaveError makes Save fail.
func (m *MemStore) WithSaveError(err error) *MemStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
	return m
}

// Load returns a copy of the stored snapshot, or an empty one.
func (m *MemStore) Load(_ context.Context) core.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return core.NewSnapshot()
	}
	return m.snap.Clone()
}

// Save replaces the stored snapshot.
func (m *MemStore) Save(_ context.Context, s core.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.snap = s.Clone()
	return nil
}

// Reset discards the stored snapshot.
func (m *MemStore) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
	m.snap = nil
	return nil
}

// Stored returns the persisted snapshot and whether one exists.
func (m *MemStore) Stored() (core.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return nil, false
	}
	return m.snap.Clone(), true
}

// Saves returns the number of successful saves.
func (m *MemStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Resets returns the number of resets.
func (m *MemStore) Resets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}
