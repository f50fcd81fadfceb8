package cmd

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/config"
)

var (
	cfgFile      string
	logLevel     string
	logFormat    string
	logFile      string
	outputFormat string
	stateBackend string

	// Set by initConfig before any subcommand runs.
	loadedConfig   *config.Config
	configFileUsed string

	// Version info - set via SetVersion()
	appVersion string
	appCommit  string
	appDate    string
)

var rootCmd = &cobra.Command{
	Use:   "swdiag-probe",
	Short: "Diagnostic probe modules for the swdiag monitoring host",
	Long: `swdiag-probe implements the probe modules the swdiag server runs to
monitor a host. Each module either describes the components, tests and rules
it contributes (--conf) or runs one of its polled tests (--test) and prints
the results as JSON on stdout.

Symlink the binary as diag_<module> to drop it into the server's module
directory; the module subcommand is then implied.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(c *cobra.Command, _ []string) error {
		return initConfig(c.Root())
	},
}

// Execute runs the command line in argv, argv[0] included.
func Execute(argv []string) error {
	rootCmd.SetArgs(InvocationArgs(argv))
	return rootCmd.Execute()
}

func SetVersion(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// GetVersion returns the application version string.
func GetVersion() string {
	return appVersion
}

// InvocationArgs drops argv[0] and, when the binary was started through a
// diag_<module> symlink, prepends the module subcommand.
func InvocationArgs(argv []string) []string {
	if len(argv) == 0 {
		return nil
	}
	// Both separators, so a Windows path resolves on any host.
	base := argv[0][strings.LastIndexAny(argv[0], `/\`)+1:]
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if name, ok := strings.CutPrefix(base, "diag_"); ok && isModuleName(name) {
		return append([]string{name}, argv[1:]...)
	}
	return argv[1:]
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: probes.yaml in ., ~/.config/swdiag, /etc/swdiag)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"log format (auto, text, json)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"append logs to this file instead of stderr")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "",
		"output format (json, yaml)")
	rootCmd.PersistentFlags().StringVar(&stateBackend, "state-backend", "",
		"snapshot store (file, sqlite)")
}

// flagKeys maps persistent flags to config keys.
var flagKeys = map[string]string{
	"log-level":     "log.level",
	"log-format":    "log.format",
	"log-file":      "log.file",
	"format":        "output.format",
	"state-backend": "state.backend",
}

// initConfig loads and validates the configuration, with the persistent
// flags of root taking precedence.
func initConfig(root *cobra.Command) error {
	v := viper.New()
	for flag, key := range flagKeys {
		// Errors are nil when the flag exists.
		_ = v.BindPFlag(key, root.PersistentFlags().Lookup(flag))
	}

	loader := config.NewLoaderWithViper(v)
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return err
	}

	loadedConfig = cfg
	configFileUsed = loader.ConfigFile()
	return nil
}
