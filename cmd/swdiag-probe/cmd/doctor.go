package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/config"
	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/probe"
)

var errChecksFailed = errors.New("one or more checks failed")

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the probes can run on this host",
	Long: `Verify the configuration, process table access, /proc/meminfo and the
snapshot directory. Run it as the user the swdiag server runs modules as.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type checkResult struct {
	name   string
	detail string
	err    error
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	cfg := loadedConfig
	out := cmd.OutOrStdout()
	ctx := commandContext(cmd)

	source := configFileUsed
	if source == "" {
		source = "built-in defaults"
	}
	fmt.Fprintln(out, "Configuration:", source)
	if info, err := host.InfoWithContext(ctx); err == nil {
		fmt.Fprintf(out, "Host: %s (%s %s, kernel %s, up %s)\n",
			info.Hostname, info.Platform, info.PlatformVersion, info.KernelVersion,
			(time.Duration(info.Uptime) * time.Second).String())
	}
	fmt.Fprintln(out)

	var results []checkResult

	prober := probe.NewProber(newProcessTable(), cfg.Postgres.CommandPrefix, nil)
	if snap, err := prober.Gather(ctx); err != nil {
		results = append(results, checkResult{name: "process table", err: err})
	} else {
		results = append(results, checkResult{
			name:   "process table",
			detail: fmt.Sprintf("%d process(es) matching %q", snap.Len(), prober.Prefix()),
		})
	}

	if info, err := readMeminfo(cfg.Memory.MeminfoPath); err != nil {
		results = append(results, checkResult{name: "meminfo", err: err})
	} else {
		results = append(results, checkResult{
			name:   "meminfo",
			detail: fmt.Sprintf("%d%% free, %d kB swap in use", info.ActualFreePercent(), info.SwapUsed()),
		})
	}

	statePath := stateFile(cfg.State)
	results = append(results, checkResult{
		name:   "state directory",
		detail: filepath.Dir(statePath),
		err:    checkWritable(filepath.Dir(statePath)),
	})

	return printChecks(out, results)
}

func stateFile(s config.StateConfig) string {
	if s.Backend == "sqlite" {
		return s.SQLitePath()
	}
	return s.PostgresPath()
}

// checkWritable creates and removes a scratch file in dir.
func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".swdiag-doctor-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func printChecks(out io.Writer, results []checkResult) error {
	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			fmt.Fprintf(out, "  ✗ %s: %v\n", r.name, r.err)
			continue
		}
		fmt.Fprintf(out, "  ✓ %s: %s\n", r.name, r.detail)
	}
	fmt.Fprintln(out)

	if failed > 0 {
		fmt.Fprintf(out, "%d check(s) failed\n", failed)
		return errChecksFailed
	}
	fmt.Fprintln(out, "All checks passed")
	return nil
}
