package core

import (
	"fmt"

	"github.com/juju/collections/set"
)

// Snapshot maps the process identifier of every monitored entity observed at
// one instant to its classification signature (the command-line text).
type Snapshot map[int]string

// NewSnapshot returns an empty snapshot.
func NewSnapshot() Snapshot {
	return make(Snapshot)
}

// PIDs returns the identity set of the snapshot.
func (s Snapshot) PIDs() set.Ints {
	pids := set.NewInts()
	for pid := range s {
		pids.Add(pid)
	}
	return pids
}

// SortedPIDs returns the identities in ascending order.
func (s Snapshot) SortedPIDs() []int {
	return s.PIDs().SortedValues()
}

// Len returns the number of entities in the snapshot.
func (s Snapshot) Len() int {
	return len(s)
}

// Equal reports whether both snapshots hold the same identities and signatures.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s) != len(other) {
		return false
	}
	for pid, sig := range s {
		if osig, ok := other[pid]; !ok || osig != sig {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for pid, sig := range s {
		out[pid] = sig
	}
	return out
}

// InstanceName is the host-side instance name for a process identity.
func InstanceName(pid int) string {
	return fmt.Sprintf("pid_%d", pid)
}
