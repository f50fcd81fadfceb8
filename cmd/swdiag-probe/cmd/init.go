package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default probes.yaml",
	Long: `Write the default configuration, with every setting and its default
value, to probes.yaml in the current directory or to --path.`,
	Args: cobra.NoArgs,
	// An existing broken config must not stop init from replacing it.
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error { return nil },
	RunE:              runInit,
}

var (
	initForce bool
	initPath  string
)

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing configuration")
	initCmd.Flags().StringVar(&initPath, "path", "probes.yaml", "Where to write the configuration")
}

func runInit(cmd *cobra.Command, _ []string) error {
	if err := config.WriteDefault(initPath, initForce); err != nil {
		if errors.Is(err, config.ErrConfigExists) {
			return fmt.Errorf("%w, use --force to overwrite", err)
		}
		return fmt.Errorf("writing config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Wrote", initPath)
	fmt.Fprintln(out, "Run 'swdiag-probe doctor' to verify setup")
	return nil
}
