package main

import (
	"fmt"
	"os"

	"github.com/hugo-lorenzo-mato/swdiag-probes/cmd/swdiag-probe/cmd"
)

// Version information - set by goreleaser at build time
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cmd.SetVersion(version, commit, date)

	// stdout belongs to the host protocol; errors go to stderr only.
	if err := cmd.Execute(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
