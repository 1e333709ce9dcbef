package main

import (
	"github.com/spf13/cobra"

	"github.com/cfdops/studymanager/internal/orchestrator"
)

func newUpdateCmd() *cobra.Command {
	var (
		file   string
		repo   string
		dest   string
		solver string
		quiet  bool
	)
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update the case setup files in the repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := orchestrator.New(orchestrator.Options{
				File:        file,
				Repo:        repo,
				Dest:        dest,
				UpdateSetup: true,
				SolverExe:   solver,
				Quiet:       quiet,
			}, cmd.OutOrStdout(), nil)
			if err != nil {
				return err
			}
			defer s.Close()
			return s.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "smgr.yaml", "smgr parameter file")
	cmd.Flags().StringVar(&repo, "repo", "", "override the repository directory")
	cmd.Flags().StringVar(&dest, "dest", "", "override the destination directory")
	cmd.Flags().StringVar(&solver, "solver", "code_saturne", "solver executable")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress console output")
	return cmd
}
