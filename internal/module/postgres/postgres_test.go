package postgres_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/config"
	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/core"
	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/logging"
	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/module"
	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/module/postgres"
	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/probe"
	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/protocol"
	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/snapshot"
	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/testutil"
)

var (
	busy  = testutil.PostgresBackend("app", "orders", "idle")
	stuck = testutil.PostgresBackend("app", "orders", "idle in transaction")
)

func invocation(out *bytes.Buffer) *module.Invocation {
	return module.NewInvocation(logging.NewNop(), protocol.NewEmitter(out, protocol.JSONEncoder{}))
}

func newModule(table *testutil.FakeProcessTable, store snapshot.Store) *postgres.Module {
	cfg := config.Default().Postgres
	return postgres.New(cfg, probe.NewProber(table, cfg.CommandPrefix, nil), store)
}

func parse(t *testing.T, out *bytes.Buffer) *protocol.Document {
	t.Helper()
	doc, err := protocol.Parse(out.Bytes())
	require.NoError(t, err)
	return doc
}

func instances(doc *protocol.Document) []protocol.Instance {
	var out []protocol.Instance
	for _, body := range doc.Find(protocol.KindInstance) {
		out = append(out, body.(protocol.Instance))
	}
	return out
}

func results(doc *protocol.Document) []protocol.Result {
	var out []protocol.Result
	for _, body := range doc.Find(protocol.KindResult) {
		out = append(out, body.(protocol.Result))
	}
	return out
}

func pair(pid string, del bool) []protocol.Instance {
	return []protocol.Instance{
		{Object: postgres.TestIdleInTrans, Name: pid, Delete: del},
		{Object: postgres.RuleIdleInTrans, Name: pid, Delete: del},
	}
}

func TestDescribe_Golden(t *testing.T) {
	t.Parallel()

	table := testutil.NewFakeProcessTable(map[int32]string{
		1:   "/sbin/init",
		101: busy,
		202: stuck,
	})
	var out bytes.Buffer
	m := newModule(table, testutil.NewMemStore(nil))

	require.NoError(t, m.Describe(context.Background(), invocation(&out)))
	testutil.NewGolden(t, "testdata").Assert("describe", out.Bytes())
}

func TestDescribeThenPoll_TracksProcessChurn(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	table := testutil.NewFakeProcessTable(map[int32]string{
		1:   "/sbin/init",
		101: busy,
		202: busy,
	})
	store := snapshot.NewFileStore(filepath.Join(t.TempDir(), "diag_pg_proc.snap"))
	m := newModule(table, store)

	var conf bytes.Buffer
	require.NoError(t, m.Describe(ctx, invocation(&conf)))
	doc := parse(t, &conf)

	assert.Equal(t, append(pair("pid_101", false), pair("pid_202", false)...), instances(doc))
	ready := doc.Find(protocol.KindReady)
	require.Len(t, ready, 1)
	assert.Subset(t, ready[0], []string{
		postgres.TestPoll, postgres.TestIdleInTrans, postgres.TestIdleProcCount, postgres.TestProcCount,
	})
	assert.True(t, store.Load(ctx).Equal(core.Snapshot{101: busy, 202: busy}))

	table.Kill(101).Spawn(303, stuck)

	var poll bytes.Buffer
	require.NoError(t, m.Execute(ctx, invocation(&poll), postgres.TestPoll))
	doc = parse(t, &poll)

	assert.Equal(t, append(pair("pid_303", false), pair("pid_101", true)...), instances(doc))
	assert.Empty(t, doc.Find(protocol.KindReady))
	assert.True(t, store.Load(ctx).Equal(core.Snapshot{202: busy, 303: stuck}))
}

func TestExecute_ResultOrder(t *testing.T) {
	t.Parallel()

	table := testutil.NewFakeProcessTable(map[int32]string{
		30: stuck,
		10: busy,
		20: stuck,
	})
	store := testutil.NewMemStore(core.Snapshot{10: busy, 20: stuck, 30: stuck})
	var out bytes.Buffer

	require.NoError(t, newModule(table, store).Execute(context.Background(), invocation(&out), postgres.TestPoll))
	doc := parse(t, &out)

	assert.Empty(t, instances(doc), "unchanged processes produce no directives")
	idle, total := int64(2), int64(3)
	assert.Equal(t, []protocol.Result{
		{Test: postgres.TestIdleInTrans, Instance: "pid_10", Result: "pass"},
		{Test: postgres.TestIdleInTrans, Instance: "pid_20", Result: "fail"},
		{Test: postgres.TestIdleInTrans, Instance: "pid_30", Result: "fail"},
		{Test: postgres.TestIdleProcCount, Value: &idle},
		{Test: postgres.TestProcCount, Value: &total},
		{Test: postgres.TestPoll, Result: "ignore"},
	}, results(doc))
}

func TestExecute_DirectivesPrecedeResults(t *testing.T) {
	t.Parallel()

	table := testutil.NewFakeProcessTable(map[int32]string{5: busy})
	var out bytes.Buffer
	require.NoError(t, newModule(table, testutil.NewMemStore(nil)).
		Execute(context.Background(), invocation(&out), postgres.TestPoll))

	doc := parse(t, &out)
	require.NotEmpty(t, doc.Statements)
	assert.Equal(t, protocol.KindInstance, doc.Statements[0].Kind)
	assert.Equal(t, protocol.KindInstance, doc.Statements[1].Kind)
	last := doc.Statements[len(doc.Statements)-1]
	assert.Equal(t, protocol.Result{Test: postgres.TestPoll, Result: "ignore"}, last.Body)
}

func TestExecute_NoBackends(t *testing.T) {
	t.Parallel()

	table := testutil.NewFakeProcessTable(map[int32]string{1: "/sbin/init"})
	store := testutil.NewMemStore(core.Snapshot{7: busy})
	var out bytes.Buffer

	require.NoError(t, newModule(table, store).Execute(context.Background(), invocation(&out), postgres.TestPoll))
	doc := parse(t, &out)

	assert.Equal(t, pair("pid_7", true), instances(doc))
	zero := int64(0)
	assert.Equal(t, []protocol.Result{
		{Test: postgres.TestIdleProcCount, Value: &zero},
		{Test: postgres.TestProcCount, Value: &zero},
		{Test: postgres.TestPoll, Result: "ignore"},
	}, results(doc))
	stored, ok := store.Stored()
	require.True(t, ok)
	assert.Equal(t, 0, stored.Len())
}

func TestExecute_CorruptSnapshotStartsOver(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "diag_pg_proc.snap")
	require.NoError(t, os.WriteFile(path, []byte("not a snapshot"), 0o600))
	table := testutil.NewFakeProcessTable(map[int32]string{4: busy})
	var out bytes.Buffer

	require.NoError(t, newModule(table, snapshot.NewFileStore(path)).
		Execute(context.Background(), invocation(&out), postgres.TestPoll))
	assert.Equal(t, pair("pid_4", false), instances(parse(t, &out)))
}

func TestExecute_ProcessTableFailure(t *testing.T) {
	t.Parallel()

	table := testutil.NewFakeProcessTable(nil).WithListError(errors.New("permission denied"))
	store := testutil.NewMemStore(core.Snapshot{1: busy})
	var out bytes.Buffer

	err := newModule(table, store).Execute(context.Background(), invocation(&out), postgres.TestPoll)
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatFacts))
	assert.True(t, core.IsFatal(err))
	assert.Zero(t, out.Len(), "no output on fatal errors")
	assert.Zero(t, store.Saves())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestExecute_EmitFailureSkipsPersist(t *testing.T) {
	t.Parallel()

	table := testutil.NewFakeProcessTable(map[int32]string{2: busy})
	store := testutil.NewMemStore(core.Snapshot{1: busy})
	inv := module.NewInvocation(logging.NewNop(), protocol.NewEmitter(failingWriter{}, nil))

	err := newModule(table, store).Execute(context.Background(), inv, postgres.TestPoll)
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatOutput))
	stored, _ := store.Stored()
	assert.True(t, stored.Equal(core.Snapshot{1: busy}), "previous snapshot must survive a failed emit")
}

func TestExecute_SaveFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	table := testutil.NewFakeProcessTable(map[int32]string{2: busy})
	store := testutil.NewMemStore(nil).WithSaveError(core.ErrState(core.CodeStateWrite, "disk full"))
	var out bytes.Buffer

	require.NoError(t, newModule(table, store).Execute(context.Background(), invocation(&out), postgres.TestPoll))
	assert.Equal(t, pair("pid_2", false), instances(parse(t, &out)))
}

func TestDescribe_ResetsPreviousSnapshot(t *testing.T) {
	t.Parallel()

	table := testutil.NewFakeProcessTable(map[int32]string{8: busy})
	store := testutil.NewMemStore(core.Snapshot{8: busy, 9: busy})
	var out bytes.Buffer

	require.NoError(t, newModule(table, store).Describe(context.Background(), invocation(&out)))
	assert.Equal(t, 1, store.Resets())
	assert.Equal(t, pair("pid_8", false), instances(parse(t, &out)))
	stored, ok := store.Stored()
	require.True(t, ok)
	assert.True(t, stored.Equal(core.Snapshot{8: busy}))
}

func TestExecute_UnknownTest(t *testing.T) {
	t.Parallel()

	table := testutil.NewFakeProcessTable(map[int32]string{8: busy})
	var out bytes.Buffer

	err := newModule(table, testutil.NewMemStore(nil)).
		Execute(context.Background(), invocation(&out), postgres.TestIdleInTrans)
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatValidation))
	assert.Zero(t, table.CallCount("PIDs"))
	assert.Zero(t, out.Len())
}

func TestEvaluate_CustomIdleMarker(t *testing.T) {
	t.Parallel()

	cfg := config.Default().Postgres
	cfg.IdleMarker = "waiting"
	m := postgres.New(cfg, nil, nil)

	got := m.Evaluate(core.Snapshot{
		1: "postgres: app orders [local] waiting",
		2: stuck,
	})
	assert.Equal(t, []core.TestResult{
		core.VerdictResult(postgres.TestIdleInTrans, "pid_1", false),
		core.VerdictResult(postgres.TestIdleInTrans, "pid_2", true),
		core.ValueResult(postgres.TestIdleProcCount, 1),
		core.ValueResult(postgres.TestProcCount, 2),
		core.IgnoreResult(postgres.TestPoll),
	}, got)
}

func TestManifest_UsesConfiguredThresholds(t *testing.T) {
	t.Parallel()

	cfg := config.Default().Postgres
	cfg.IdleN = 9
	cfg.CriticalHealth = 555
	cfg.NotifyTo = "dba@example.com"
	doc := postgres.New(cfg, nil, nil).Manifest()

	rules := map[string]protocol.Rule{}
	for _, body := range doc.Find(protocol.KindRule) {
		r := body.(protocol.Rule)
		rules[r.Name] = r
	}
	assert.Equal(t, int64(9), rules[postgres.RuleIdleInTrans].N)
	assert.Equal(t, int64(555), rules[postgres.RuleHealthThreshold].N)

	for _, body := range doc.Find(protocol.KindEmail) {
		e := body.(protocol.Email)
		assert.Equal(t, "dba@example.com", e.To, e.Name)
		if e.Name == postgres.NotifyHealth {
			assert.Contains(t, e.Subject, "55.5%")
		}
	}
	assert.NoError(t, doc.Validate())
}
