// Package memory watches free memory and swap usage. A host that starts
// swapping slows down every other monitored service, so other components
// tend to depend on this one.
package memory

import (
	"context"
	"fmt"

	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/config"
	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/core"
	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/meminfo"
	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/module"
	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/protocol"
)

// Name is the module name.
const Name = "memory"

// Graph object names.
const (
	Component = "Memory"

	TestPoll        = "memory_poll_meminfo"
	TestFreePercent = "memory_free_percent"
	TestSwapInuse   = "memory_swap_inuse"

	RuleFreePercent     = "memory_free_percent_thresh"
	RuleFreePercentTime = "memory_free_percent_thresh_time"
	RuleSwapInuse       = "memory_swap_inuse_thresh"
	RuleSwapInuseTime   = "memory_swap_inuse_thresh_time"

	NotifyFree = "memory_free_notification"
	NotifySwap = "memory_swap_inuse_notification"
)

// Reader returns the current memory counters.
type Reader func() (meminfo.Info, error)

// Module is the memory probe module.
type Module struct {
	cfg  config.MemoryConfig
	read Reader
}

var _ module.Module = (*Module)(nil)

// New creates the module. A nil reader parses cfg.MeminfoPath.
func New(cfg config.MemoryConfig, read Reader) *Module {
	if read == nil {
		path := cfg.MeminfoPath
		if path == "" {
			path = meminfo.DefaultPath
		}
		read = func() (meminfo.Info, error) { return meminfo.Read(path) }
	}
	return &Module{cfg: cfg, read: read}
}

// Name implements module.Module.
func (m *Module) Name() string { return Name }

// Tests implements module.Module.
func (m *Module) Tests() []string { return []string{TestPoll} }

// Describe emits the manifest and the ready list.
func (m *Module) Describe(_ context.Context, inv *module.Invocation) error {
	doc := m.Manifest().Ready(TestPoll, TestFreePercent, TestSwapInuse)
	return inv.Emitter.Emit(doc)
}

// Execute runs the poll test.
func (m *Module) Execute(ctx context.Context, inv *module.Invocation, test string) error {
	if test != TestPoll {
		return core.ErrUnknownTest(Name, test)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := m.read()
	if err != nil {
		return err
	}

	doc := protocol.NewDocument().Results(Evaluate(info))
	if err := inv.Emitter.Emit(doc); err != nil {
		return err
	}
	inv.Logger.Debug("polled meminfo",
		"actual_free_kb", info.ActualFree(),
		"free_percent", info.ActualFreePercent(),
		"swap_used_kb", info.SwapUsed())
	return nil
}

// Evaluate turns one meminfo sample into the poll results.
func Evaluate(info meminfo.Info) []core.TestResult {
	return []core.TestResult{
		core.ValueResult(TestFreePercent, info.ActualFreePercent()),
		core.ValueResult(TestSwapInuse, info.SwapUsed()),
		core.IgnoreResult(TestPoll),
	}
}

// Manifest returns the module's graph without the ready list.
func (m *Module) Manifest() *protocol.Document {
	cfg := m.cfg
	doc := protocol.NewDocument()
	doc.Comp(protocol.Comp{Name: Component})
	doc.Test(protocol.Test{Name: TestPoll, Polled: true, Interval: protocol.IntervalFast, Comp: Component})

	doc.Test(protocol.Test{Name: TestFreePercent, Comp: Component})
	doc.Rule(protocol.Rule{
		Name:     RuleFreePercent,
		Input:    TestFreePercent,
		Operator: protocol.OperatorLessThanN,
		N:        cfg.FreePercentThreshold,
		Comp:     Component,
	})
	doc.Rule(protocol.Rule{
		Name:     RuleFreePercentTime,
		Input:    RuleFreePercent,
		Action:   NotifyFree,
		Operator: protocol.OperatorNInM,
		N:        cfg.FreePercentN,
		M:        cfg.FreePercentM,
		Comp:     Component,
	})
	doc.Email(protocol.Email{
		Name:    NotifyFree,
		Subject: fmt.Sprintf("Free memory has dropped under %d %%. Performance will be impacted.", cfg.FreePercentThreshold),
		To:      cfg.NotifyTo,
	})

	doc.Test(protocol.Test{Name: TestSwapInuse, Comp: Component})
	doc.Rule(protocol.Rule{
		Name:     RuleSwapInuse,
		Input:    TestSwapInuse,
		Operator: protocol.OperatorGreaterThanN,
		N:        cfg.SwapInuseThreshold,
		Comp:     Component,
	})
	doc.Rule(protocol.Rule{
		Name:     RuleSwapInuseTime,
		Input:    RuleSwapInuse,
		Action:   NotifySwap,
		Operator: protocol.OperatorNInM,
		N:        cfg.SwapInuseN,
		M:        cfg.SwapInuseM,
		Comp:     Component,
	})
	doc.Email(protocol.Email{
		Name:    NotifySwap,
		Subject: fmt.Sprintf("Swap is now consistently greater than %d Kb .", cfg.SwapInuseThreshold),
		To:      cfg.NotifyTo,
	})

	return doc
}
