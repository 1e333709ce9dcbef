// Command studymanager drives batches of CFD solver cases: it materializes
// a destination tree from a repository of studies, compiles and runs the
// selected cases in dependency order, compares their results against the
// repository and produces the reports.
package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "studymanager: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "studymanager",
		Short:         "Batch orchestration of CFD solver cases",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newUpdateCmd())
	root.AddCommand(newGraphCmd())
	return root
}
