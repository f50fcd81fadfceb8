package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/config"
	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/logging"
	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/meminfo"
	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/module"
	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/module/memory"
	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/module/postgres"
	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/probe"
	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/protocol"
	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/snapshot"
)

// Replaced in tests.
var (
	newProcessTable = func() probe.ProcessTable { return probe.NewHostTable() }
	readMeminfo     = meminfo.Read
)

var moduleDescriptions = []struct {
	name  string
	short string
}{
	{postgres.Name, "Monitor postgres backend processes"},
	{memory.Name, "Monitor free memory and swap usage"},
}

func isModuleName(name string) bool {
	for _, m := range moduleDescriptions {
		if m.name == name {
			return true
		}
	}
	return false
}

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "List the probe modules and their tests",
	Args:  cobra.NoArgs,
	RunE:  runModules,
}

func init() {
	for _, m := range moduleDescriptions {
		rootCmd.AddCommand(newModuleCommand(m.name, m.short))
	}
	rootCmd.AddCommand(modulesCmd)
}

func newModuleCommand(name, short string) *cobra.Command {
	var req module.Request
	c := &cobra.Command{
		Use:   name + " (--conf | --test NAME) [--instance NAME]",
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runModule(cmd, name, req)
		},
	}
	c.Flags().BoolVarP(&req.Conf, "conf", "c", false, "print the module configuration")
	c.Flags().StringVarP(&req.Test, "test", "t", "", "run the named test")
	c.Flags().StringVarP(&req.Instance, "instance", "i", "", "instance the request applies to")
	c.MarkFlagsMutuallyExclusive("conf", "test")
	return c
}

func runModule(cmd *cobra.Command, name string, req module.Request) error {
	cfg := loadedConfig
	logger, logCloser, err := logging.Open(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	}, cfg.Log.File)
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()

	registry, cleanup, err := buildRegistry(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	m, err := registry.Get(name)
	if err != nil {
		return err
	}
	enc, err := protocol.NewEncoder(cfg.Output.Format)
	if err != nil {
		return err
	}

	inv := module.NewInvocation(logger, protocol.NewEmitter(cmd.OutOrStdout(), enc))
	if err := module.Run(commandContext(cmd), m, inv, req); err != nil {
		inv.Logger.Error("invocation failed", "module", name, "error", err)
		return err
	}
	return nil
}

// buildRegistry constructs every module. Stores open lazily, so building
// the modules a run does not use costs nothing.
func buildRegistry(cfg *config.Config, logger *logging.Logger) (*module.Registry, func(), error) {
	store, err := snapshot.New(snapshot.Config{
		Backend:    snapshot.Backend(cfg.State.Backend),
		FilePath:   cfg.State.PostgresPath(),
		SQLitePath: cfg.State.SQLitePath(),
		Module:     postgres.Name,
	}, snapshot.WithLogger(logger.Logger))
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := snapshot.Close(store); err != nil {
			logger.Warn("closing snapshot store", "error", err)
		}
	}

	prober := probe.NewProber(newProcessTable(), cfg.Postgres.CommandPrefix, logger.Logger)
	memPath := cfg.Memory.MeminfoPath

	registry := module.NewRegistry()
	for _, m := range []module.Module{
		postgres.New(cfg.Postgres, prober, store),
		memory.New(cfg.Memory, func() (meminfo.Info, error) { return readMeminfo(memPath) }),
	} {
		if err := registry.Register(m); err != nil {
			cleanup()
			return nil, nil, err
		}
	}
	return registry, cleanup, nil
}

func runModules(cmd *cobra.Command, _ []string) error {
	registry, cleanup, err := buildRegistry(loadedConfig, logging.NewNop())
	if err != nil {
		return err
	}
	defer cleanup()

	out := cmd.OutOrStdout()
	for _, name := range registry.List() {
		m, err := registry.Get(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%-10s %s\n", name, strings.Join(m.Tests(), ", "))
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
