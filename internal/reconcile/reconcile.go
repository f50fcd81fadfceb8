// Package reconcile computes the instance directives that keep the host's
// monitoring graph in step with the processes observed between two polls.
//
// Everything here is a pure function of its inputs; loading and persisting
// snapshots is the caller's business.
package reconcile

import (
	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/core"
)

// Delta is the difference between the previous and current snapshot.
type Delta struct {
	// Added holds identities present now but unknown at the previous poll, ascending.
	Added []int
	// Removed holds identities known at the previous poll that are gone, ascending.
	Removed []int
}

// Empty reports whether nothing changed between the two snapshots.
func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// Diff compares the identity sets of previous and current. Signatures are
// not compared: a reused PID counts as the same entity.
func Diff(previous, current core.Snapshot) Delta {
	prev := previous.PIDs()
	cur := current.PIDs()
	return Delta{
		Added:   cur.Difference(prev).SortedValues(),
		Removed: prev.Difference(cur).SortedValues(),
	}
}

// Plan names the per-instance objects that exist for every monitored entity.
type Plan struct {
	// Objects are created and deleted together, in this order.
	Objects []string
	// InstanceName maps an identity to its host-side instance name.
	// core.InstanceName is used when nil.
	InstanceName func(pid int) string
}

// Directives expands a delta into one directive per object per identity:
// creates for every added identity first, then deletes for every removed one.
func (p Plan) Directives(d Delta) []core.Directive {
	name := p.InstanceName
	if name == nil {
		name = core.InstanceName
	}

	out := make([]core.Directive, 0, (len(d.Added)+len(d.Removed))*len(p.Objects))
	for _, pid := range d.Added {
		for _, obj := range p.Objects {
			out = append(out, core.Directive{
				Object:   obj,
				Instance: name(pid),
				PID:      pid,
				Action:   core.DirectiveCreate,
			})
		}
	}
	for _, pid := range d.Removed {
		for _, obj := range p.Objects {
			out = append(out, core.Directive{
				Object:   obj,
				Instance: name(pid),
				PID:      pid,
				Action:   core.DirectiveDelete,
			})
		}
	}
	return out
}

// Reconcile diffs the snapshots and expands the result in one step.
func (p Plan) Reconcile(previous, current core.Snapshot) (Delta, []core.Directive) {
	d := Diff(previous, current)
	return d, p.Directives(d)
}
