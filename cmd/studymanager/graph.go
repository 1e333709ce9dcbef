package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cfdops/studymanager/internal/orchestrator"
)

func newGraphCmd() *cobra.Command {
	var (
		file string
		repo string
		dest string
	)
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the case dependency graph by level",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := orchestrator.New(orchestrator.Options{
				File:  file,
				Repo:  repo,
				Dest:  dest,
				Quiet: true,
			}, cmd.OutOrStdout(), nil)
			if err != nil {
				return err
			}
			defer s.Close()

			g := s.Graph()
			out := cmd.OutOrStdout()
			for _, level := range g.Levels() {
				fmt.Fprintf(out, "level %d:\n", level)
				for _, n := range g.AtLevel(level) {
					fmt.Fprintf(out, "  %s (n_procs %d)\n", n.Key(), n.NProcs())
				}
			}
			if edges := g.Dependencies(); len(edges) > 0 {
				fmt.Fprintln(out, "dependencies:")
				for _, e := range edges {
					fmt.Fprintf(out, "  %s -> %s\n", e.Dependent.Key(), e.Dependency.Key())
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "smgr.yaml", "smgr parameter file")
	cmd.Flags().StringVar(&repo, "repo", "", "override the repository directory")
	cmd.Flags().StringVar(&dest, "dest", "", "override the destination directory")
	return cmd
}
