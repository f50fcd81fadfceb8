// Package postgres monitors postgres backend processes.
//
// Every backend gets its own instance of the idle-in-transaction test and
// rule. Processes come and go between polls, so each poll diffs the backends
// it sees against the ones persisted by the previous poll and tells the host
// which instances to create or delete.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/config"
	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/core"
	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/module"
	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/protocol"
	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/reconcile"
	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/snapshot"
)

// Name is the module name.
const Name = "postgres"

// Graph object names.
const (
	Component = "Postgres"

	TestPoll          = "pg_poll_processes"
	TestIdleInTrans   = "pg_idle_in_trans"
	TestIdleProcCount = "pg_idle_proc_count"
	TestProcCount     = "pg_proc_count"
	TestHealth        = "pg_health_test"

	RuleIdleInTrans          = "pg_idle_in_trans_rule"
	RuleIdleProcCountWarning = "pg_idle_proc_count_w_rule"
	RuleIdleProcCountCrit    = "pg_idle_proc_count_c_rule"
	RuleProcCountWarning     = "pg_proc_count_1_rule"
	RuleProcCountCrit        = "pg_proc_count_2_rule"
	RuleHealthThreshold      = "pg_health_threshold"
	RuleHealthThresholdTime  = "pg_health_threshold_time"

	NotifyIdleInTrans   = "pg_idle_in_trans_notification"
	NotifyIdleProcCount = "pg_idle_proc_count_notification"
	NotifyProcCount     = "pg_proc_count_notification"
	NotifyHealth        = "pg_health_notification"
)

// Gatherer returns the backends currently running.
type Gatherer interface {
	Gather(ctx context.Context) (core.Snapshot, error)
}

// Module is the postgres probe module.
type Module struct {
	cfg      config.PostgresConfig
	gatherer Gatherer
	store    snapshot.Store
	plan     reconcile.Plan
}

var _ module.Module = (*Module)(nil)

// New creates the module.
func New(cfg config.PostgresConfig, gatherer Gatherer, store snapshot.Store) *Module {
	return &Module{
		cfg:      cfg,
		gatherer: gatherer,
		store:    store,
		plan:     reconcile.Plan{Objects: []string{TestIdleInTrans, RuleIdleInTrans}},
	}
}

// Name implements module.Module.
func (m *Module) Name() string { return Name }

// Tests implements module.Module.
func (m *Module) Tests() []string { return []string{TestPoll} }

// Describe resets the persisted backends, emits the manifest with an
// instance pair for every running backend and the ready list, then persists
// the backends it announced.
func (m *Module) Describe(ctx context.Context, inv *module.Invocation) error {
	if err := m.store.Reset(ctx); err != nil {
		inv.Logger.Warn("failed to reset process snapshot", "error", err)
	}

	current, err := m.gatherer.Gather(ctx)
	if err != nil {
		return err
	}

	doc := m.Manifest()
	doc.Directives(m.plan.Directives(reconcile.Diff(core.NewSnapshot(), current)))
	doc.Ready(TestPoll, TestIdleInTrans, TestProcCount, TestIdleProcCount, TestHealth)
	if err := inv.Emitter.Emit(doc); err != nil {
		return err
	}

	inv.Logger.Info("described module", "backends", current.Len())
	m.persist(ctx, inv, current)
	return nil
}

// Execute runs the poll test.
func (m *Module) Execute(ctx context.Context, inv *module.Invocation, test string) error {
	if test != TestPoll {
		return core.ErrUnknownTest(Name, test)
	}

	current, err := m.gatherer.Gather(ctx)
	if err != nil {
		return err
	}
	previous := m.store.Load(ctx)
	delta, directives := m.plan.Reconcile(previous, current)

	doc := protocol.NewDocument().
		Directives(directives).
		Results(m.Evaluate(current))
	if err := inv.Emitter.Emit(doc); err != nil {
		return err
	}

	inv.Logger.Info("polled backends",
		"backends", current.Len(),
		"added", len(delta.Added),
		"removed", len(delta.Removed))
	m.persist(ctx, inv, current)
	return nil
}

// Evaluate computes the poll results for the given backends: a verdict per
// backend, the idle and total counts, and the poll test's own outcome.
func (m *Module) Evaluate(current core.Snapshot) []core.TestResult {
	pids := current.SortedPIDs()
	results := make([]core.TestResult, 0, len(pids)+3)

	var idle int64
	for _, pid := range pids {
		isIdle := strings.Contains(current[pid], m.cfg.IdleMarker)
		if isIdle {
			idle++
		}
		results = append(results, core.VerdictResult(TestIdleInTrans, core.InstanceName(pid), !isIdle))
	}

	return append(results,
		core.ValueResult(TestIdleProcCount, idle),
		core.ValueResult(TestProcCount, int64(current.Len())),
		core.IgnoreResult(TestPoll),
	)
}

func (m *Module) persist(ctx context.Context, inv *module.Invocation, current core.Snapshot) {
	if err := m.store.Save(ctx, current); err != nil {
		inv.Logger.Warn("failed to persist process snapshot, next poll may repeat directives", "error", err)
	}
}

// Manifest returns the components, tests, rules and notifications the
// module contributes, without instances or the ready list.
func (m *Module) Manifest() *protocol.Document {
	cfg := m.cfg
	listCommand := fmt.Sprintf("ps -ef | grep '%s'", cfg.CommandPrefix)
	countCommand := fmt.Sprintf("echo -n 'Process Count: ~'; ps -ef | grep ' %s' | wc -l; %s", cfg.CommandPrefix, listCommand)
	idleCountCommand := fmt.Sprintf("echo -n 'Process Count: ~'; ps -ef | grep ' %s' | grep '%s' | wc -l; %s",
		cfg.CommandPrefix, cfg.IdleMarker, listCommand)

	doc := protocol.NewDocument()
	doc.Comp(protocol.Comp{Name: Component})

	doc.Test(protocol.Test{Name: TestPoll, Polled: true, Interval: protocol.IntervalFast, Comp: Component})

	doc.Test(protocol.Test{Name: TestIdleInTrans, Comp: Component})
	doc.Rule(protocol.Rule{
		Name:     RuleIdleInTrans,
		Input:    TestIdleInTrans,
		Action:   NotifyIdleInTrans,
		Severity: protocol.SeverityHigh,
		Operator: protocol.OperatorNInRow,
		N:        cfg.IdleN,
		Comp:     Component,
	})
	doc.Email(protocol.Email{
		Name:    NotifyIdleInTrans,
		Subject: fmt.Sprintf("Postgresql process has been in the state '%s' for a long time", cfg.IdleMarker),
		To:      cfg.NotifyTo,
		Command: listCommand,
	})

	doc.Test(protocol.Test{Name: TestIdleProcCount, Comp: Component})
	doc.Rule(protocol.Rule{
		Name:     RuleIdleProcCountWarning,
		Input:    TestIdleProcCount,
		Severity: protocol.SeverityMedium,
		Operator: protocol.OperatorGreaterThanN,
		N:        cfg.WarningIdleCount,
		Comp:     Component,
	})
	doc.Rule(protocol.Rule{
		Name:     RuleIdleProcCountCrit,
		Input:    TestIdleProcCount,
		Action:   NotifyIdleProcCount,
		Severity: protocol.SeverityHigh,
		Operator: protocol.OperatorGreaterThanN,
		N:        cfg.CriticalIdleCount,
		Comp:     Component,
	})
	doc.Email(protocol.Email{
		Name:    NotifyIdleProcCount,
		Subject: "Postgresql idle process count critical",
		To:      cfg.NotifyTo,
		Command: idleCountCommand,
	})

	doc.Test(protocol.Test{Name: TestProcCount, Comp: Component})
	doc.Rule(protocol.Rule{
		Name:     RuleProcCountWarning,
		Input:    TestProcCount,
		Severity: protocol.SeverityLow,
		Operator: protocol.OperatorGreaterThanN,
		N:        cfg.WarningCount,
		Comp:     Component,
	})
	doc.Rule(protocol.Rule{
		Name:     RuleProcCountCrit,
		Input:    TestProcCount,
		Action:   NotifyProcCount,
		Severity: protocol.SeverityMedium,
		Operator: protocol.OperatorGreaterThanN,
		N:        cfg.CriticalCount,
		Comp:     Component,
	})
	doc.Email(protocol.Email{
		Name:    NotifyProcCount,
		Subject: "Postgresql process count critical",
		To:      cfg.NotifyTo,
		Command: countCommand,
	})

	doc.Test(protocol.Test{Name: TestHealth, Health: Component, Comp: Component})
	doc.Rule(protocol.Rule{
		Name:     RuleHealthThreshold,
		Input:    TestHealth,
		Severity: protocol.SeverityNone,
		Operator: protocol.OperatorLessThanN,
		N:        cfg.CriticalHealth,
		Comp:     Component,
	})
	doc.Rule(protocol.Rule{
		Name:     RuleHealthThresholdTime,
		Input:    RuleHealthThreshold,
		Action:   NotifyHealth,
		Severity: protocol.SeverityNone,
		Operator: protocol.OperatorNInRow,
		N:        cfg.HealthTimeN,
		Comp:     Component,
	})
	// Health is reported in tenths of a percent.
	doc.Email(protocol.Email{
		Name:    NotifyHealth,
		Subject: fmt.Sprintf("Postgresql health consistently under threshold %.1f%%", float64(cfg.CriticalHealth)/10),
		To:      cfg.NotifyTo,
		Command: countCommand,
	})

	return doc
}
