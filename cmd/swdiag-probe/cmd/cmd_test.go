package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/core"
	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/meminfo"
	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/probe"
	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/protocol"
	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/testutil"
)

// resetFlags restores every flag to its default; cobra keeps values between
// Execute calls on the shared command tree.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

type env struct {
	dir    string
	config string
	table  *testutil.FakeProcessTable
}

// newEnv writes a config pointing state and meminfo into a temp dir and
// swaps in a fake process table.
func newEnv(t *testing.T, extra string) *env {
	t.Helper()
	dir := t.TempDir()
	meminfoPath := testutil.TempFile(t, dir, "meminfo", testutil.MeminfoSample)
	cfg := fmt.Sprintf("log:\n  level: debug\nstate:\n  dir: %s\nmemory:\n  meminfo_path: %s\n%s", dir, meminfoPath, extra)

	e := &env{
		dir:    dir,
		config: testutil.TempFile(t, dir, "probes.yaml", cfg),
		table:  testutil.NewFakeProcessTable(map[int32]string{1: "/sbin/init"}),
	}
	prev := newProcessTable
	newProcessTable = func() probe.ProcessTable { return e.table }
	t.Cleanup(func() { newProcessTable = prev })
	return e
}

func (e *env) run(t *testing.T, argv ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	args := append([]string{argv[0]}, argv[1:]...)
	if e != nil {
		args = append(args, "--config", e.config)
	}
	err := Execute(args)
	return stdout.String(), stderr.String(), err
}

func instanceNames(t *testing.T, stdout string) []string {
	t.Helper()
	doc, err := protocol.Parse([]byte(stdout))
	require.NoError(t, err, stdout)
	var names []string
	for _, body := range doc.Find(protocol.KindInstance) {
		inst := body.(protocol.Instance)
		name := inst.Object + "/" + inst.Name
		if inst.Delete {
			name = "-" + name
		}
		names = append(names, name)
	}
	return names
}

func TestInvocationArgs(t *testing.T) {
	tests := []struct {
		argv []string
		want []string
	}{
		{[]string{"swdiag-probe", "postgres", "--conf"}, []string{"postgres", "--conf"}},
		{[]string{"/opt/swdiag/modules/diag_postgres", "--conf"}, []string{"postgres", "--conf"}},
		{[]string{"diag_memory", "-t", "memory_poll_meminfo"}, []string{"memory", "-t", "memory_poll_meminfo"}},
		{[]string{`C:\swdiag\diag_memory.exe`, "-c"}, []string{"memory", "-c"}},
		{[]string{`C:\swdiag\modules\diag_postgres`, "-t", "pg_poll_processes"}, []string{"postgres", "-t", "pg_poll_processes"}},
		{[]string{`C:\swdiag\swdiag-probe.exe`, "memory", "-c"}, []string{"memory", "-c"}},
		{[]string{"diag_disk", "--conf"}, []string{"--conf"}},
		{[]string{"swdiag-probe"}, []string{}},
		{nil, nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InvocationArgs(tt.argv), "%v", tt.argv)
	}
}

func TestPostgres_DescribeThenPoll(t *testing.T) {
	e := newEnv(t, "")
	e.table.Spawn(101, testutil.PostgresBackend("app", "orders", "idle")).
		Spawn(202, testutil.PostgresBackend("app", "orders", "idle"))

	stdout, stderr, err := e.run(t, "swdiag-probe", "postgres", "--conf")
	require.NoError(t, err, stderr)
	assert.Equal(t, []string{
		"pg_idle_in_trans/pid_101", "pg_idle_in_trans_rule/pid_101",
		"pg_idle_in_trans/pid_202", "pg_idle_in_trans_rule/pid_202",
	}, instanceNames(t, stdout))
	assert.FileExists(t, filepath.Join(e.dir, "diag_pg_proc.snap"))

	e.table.Kill(101).Spawn(303, testutil.PostgresBackend("app", "orders", "idle in transaction"))

	stdout, stderr, err = e.run(t, "/usr/lib/swdiag/diag_postgres", "-t", "pg_poll_processes")
	require.NoError(t, err, stderr)
	assert.Equal(t, []string{
		"pg_idle_in_trans/pid_303", "pg_idle_in_trans_rule/pid_303",
		"-pg_idle_in_trans/pid_101", "-pg_idle_in_trans_rule/pid_101",
	}, instanceNames(t, stdout))
	assert.Contains(t, stdout, `{"result":{"test":"pg_idle_in_trans","instance":"pid_303","result":"fail"}}`)
	assert.Contains(t, stdout, `{"result":{"test":"pg_proc_count","value":2}}`)
	assert.Contains(t, stderr, "invocation_id", "logs go to stderr")
	assert.NotContains(t, stdout, "invocation_id")
}

func TestPostgres_SQLiteBackend(t *testing.T) {
	e := newEnv(t, "")
	e.table.Spawn(7, testutil.PostgresBackend("app", "orders", "idle"))

	_, stderr, err := e.run(t, "swdiag-probe", "--state-backend", "sqlite", "postgres", "-c")
	require.NoError(t, err, stderr)
	assert.FileExists(t, filepath.Join(e.dir, "swdiag_probes.db"))

	e.table.Kill(7)
	stdout, stderr, err := e.run(t, "swdiag-probe", "--state-backend", "sqlite", "postgres", "-t", "pg_poll_processes")
	require.NoError(t, err, stderr)
	assert.Equal(t, []string{"-pg_idle_in_trans/pid_7", "-pg_idle_in_trans_rule/pid_7"}, instanceNames(t, stdout))
}

func TestMemory_PollThroughSymlinkName(t *testing.T) {
	e := newEnv(t, "")

	stdout, stderr, err := e.run(t, "diag_memory", "--test", "memory_poll_meminfo")
	require.NoError(t, err, stderr)
	assert.Equal(t, `[
{"result":{"test":"memory_free_percent","value":25}},
{"result":{"test":"memory_swap_inuse","value":524288}},
{"result":{"test":"memory_poll_meminfo","result":"ignore"}}
]
`, stdout)
}

func TestMemory_BrokenMeminfoIsFatal(t *testing.T) {
	e := newEnv(t, "")
	prev := readMeminfo
	readMeminfo = func(string) (meminfo.Info, error) {
		return meminfo.Info{}, core.ErrFacts(core.CodeMissingField, "MemTotal missing")
	}
	t.Cleanup(func() { readMeminfo = prev })

	stdout, _, err := e.run(t, "swdiag-probe", "memory", "-t", "memory_poll_meminfo")
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatFacts))
	assert.Empty(t, stdout)
}

func TestModule_YAMLOutput(t *testing.T) {
	e := newEnv(t, "")

	stdout, stderr, err := e.run(t, "swdiag-probe", "--format", "yaml", "memory", "--conf")
	require.NoError(t, err, stderr)
	assert.True(t, strings.HasPrefix(stdout, "- comp:"), stdout)
	assert.Contains(t, stdout, "memory_swap_inuse")
}

func TestModule_RequestErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown test", []string{"postgres", "-t", "pg_idle_in_trans"}},
		{"no mode", []string{"postgres"}},
		{"conf and test", []string{"memory", "--conf", "--test", "memory_poll_meminfo"}},
		{"positional args", []string{"memory", "extra"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, "")
			stdout, _, err := e.run(t, append([]string{"swdiag-probe"}, tt.args...)...)
			assert.Error(t, err)
			assert.Empty(t, stdout)
			assert.Zero(t, e.table.CallCount("PIDs"), "nothing is probed")
		})
	}
}

func TestModule_InstanceAcknowledged(t *testing.T) {
	e := newEnv(t, "")

	stdout, stderr, err := e.run(t, "swdiag-probe", "postgres", "--instance", "pid_42")
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "instance acknowledged")
	assert.Contains(t, stderr, "pid_42")
}

func TestConfigErrors(t *testing.T) {
	t.Run("missing explicit file", func(t *testing.T) {
		resetFlags(rootCmd)
		rootCmd.SetOut(&bytes.Buffer{})
		t.Cleanup(func() { rootCmd.SetOut(nil) })
		err := Execute([]string{"swdiag-probe", "--config", filepath.Join(t.TempDir(), "absent.yaml"), "memory", "-c"})
		require.Error(t, err)
		assert.True(t, core.IsCategory(err, core.ErrCatConfig))
	})

	t.Run("invalid values", func(t *testing.T) {
		e := newEnv(t, "postgres:\n  warning_count: 500\n")
		stdout, _, err := e.run(t, "swdiag-probe", "postgres", "-c")
		require.Error(t, err)
		assert.True(t, core.IsCategory(err, core.ErrCatConfig))
		assert.Contains(t, err.Error(), "warning_count")
		assert.Empty(t, stdout)
	})
}

func TestLogFile(t *testing.T) {
	e := newEnv(t, "")
	logPath := filepath.Join(e.dir, "logs", "probes.log")

	_, stderr, err := e.run(t, "swdiag-probe", "--log-file", logPath, "--log-format", "json", "memory", "-c")
	require.NoError(t, err)
	assert.Empty(t, stderr)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	logs := testutil.ScrubAll(string(data), e.dir)
	assert.Contains(t, logs, `{"time":"[TIMESTAMP]","level":"DEBUG","msg":"describing module"`)
	assert.Contains(t, logs, `"invocation_id":"[UUID]"`)
	assert.Contains(t, logs, `"module":"memory"`)
}

func TestInitConfig_RootFlagsOverrideFile(t *testing.T) {
	e := newEnv(t, "output:\n  format: json\n")
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	require.NoError(t, rootCmd.PersistentFlags().Set("config", e.config))
	require.NoError(t, rootCmd.PersistentFlags().Set("format", "yaml"))
	require.NoError(t, rootCmd.PersistentFlags().Set("state-backend", "sqlite"))

	require.NoError(t, initConfig(rootCmd))
	assert.Equal(t, "yaml", loadedConfig.Output.Format)
	assert.Equal(t, "sqlite", loadedConfig.State.Backend)
	assert.Equal(t, "debug", loadedConfig.Log.Level, "file values without a flag survive")
	assert.Equal(t, e.config, configFileUsed)
}

func TestModulesCommand(t *testing.T) {
	e := newEnv(t, "")

	stdout, _, err := e.run(t, "swdiag-probe", "modules")
	require.NoError(t, err)
	assert.Contains(t, stdout, "memory     memory_poll_meminfo")
	assert.Contains(t, stdout, "postgres   pg_poll_processes")
}

func TestDoctor(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		e := newEnv(t, "")
		e.table.Spawn(9, testutil.PostgresBackend("app", "orders", "idle"))

		stdout, _, err := e.run(t, "swdiag-probe", "doctor")
		require.NoError(t, err, stdout)
		assert.Contains(t, stdout, e.config)
		assert.Contains(t, stdout, `1 process(es) matching "postgres:"`)
		assert.Contains(t, stdout, "25% free")
		assert.Contains(t, stdout, "All checks passed")
	})

	t.Run("process table unavailable", func(t *testing.T) {
		e := newEnv(t, "")
		e.table.WithListError(fmt.Errorf("permission denied"))

		stdout, _, err := e.run(t, "swdiag-probe", "doctor")
		require.ErrorIs(t, err, errChecksFailed)
		assert.Contains(t, stdout, "✗ process table")
		assert.Contains(t, stdout, "1 check(s) failed")
	})
}

func TestCheckWritable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	require.NoError(t, checkWritable(dir))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch file is removed")
}

func TestInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probes.yaml")

	stdout, _, err := (*env)(nil).run(t, "swdiag-probe", "init", "--path", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Wrote "+path)
	assert.FileExists(t, path)

	_, _, err = (*env)(nil).run(t, "swdiag-probe", "init", "--path", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")

	_, _, err = (*env)(nil).run(t, "swdiag-probe", "init", "--path", path, "--force")
	require.NoError(t, err)

	// The written file loads and validates.
	stdout, _, err = (*env)(nil).run(t, "swdiag-probe", "--config", path, "modules")
	require.NoError(t, err)
	assert.Contains(t, stdout, "postgres")
}

func TestVersionCommand(t *testing.T) {
	SetVersion("v1.2.3", "abc123def", "2026-01-15")
	t.Cleanup(func() { SetVersion("", "", "") })

	stdout, _, err := (*env)(nil).run(t, "swdiag-probe", "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "swdiag-probe v1.2.3")
	assert.Contains(t, stdout, "commit: abc123def")
	assert.Contains(t, stdout, "built:  2026-01-15")
	assert.Equal(t, "v1.2.3", GetVersion())
}
