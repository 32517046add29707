// Package main is the notebook-server binary: a serve subcommand starting
// the HTTP+SSE server, and an inspect subcommand for local debugging
// without a browser. Grounded on the teacher's cmd/leapsql + internal/cli
// cobra wiring (internal/cli/root.go).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set at build time like the teacher's cmd/leapsql.
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "notebook-server",
		Short:         "Reactive notebook server",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	root.PersistentFlags().String("config", "", "optional YAML config file (none loaded when unset)")
	root.AddCommand(newServeCmd())
	root.AddCommand(newInspectCmd())
	return root
}
