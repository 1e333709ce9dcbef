package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cfdops/studymanager/internal/model"
	"github.com/cfdops/studymanager/internal/yamlio"
)

// discoverStudies scans a repository for study directories: any
// subdirectory holding at least one case, a case being a subdirectory with
// a DATA directory.
func discoverStudies(repo string) ([]model.Study, error) {
	entries, err := os.ReadDir(repo)
	if err != nil {
		return nil, fmt.Errorf("read repository %s: %w", repo, err)
	}

	var studies []model.Study
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		st := model.Study{Label: e.Name(), Status: model.FlagOn}

		caseEntries, err := os.ReadDir(filepath.Join(repo, e.Name()))
		if err != nil {
			continue
		}
		for _, ce := range caseEntries {
			if !ce.IsDir() {
				continue
			}
			data := filepath.Join(repo, e.Name(), ce.Name(), "DATA")
			if info, err := os.Stat(data); err != nil || !info.IsDir() {
				continue
			}
			st.Cases = append(st.Cases, model.Case{
				Label:   ce.Name(),
				Status:  model.FlagOn,
				Compute: model.FlagOn,
				Post:    model.FlagOn,
				Compare: model.FlagOn,
			})
		}

		if len(st.Cases) > 0 {
			studies = append(studies, st)
		}
	}
	return studies, nil
}

func newInitCmd() *cobra.Command {
	var (
		file string
		repo string
		dest string
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a starter smgr file from a repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(file); err == nil {
				return fmt.Errorf("%s exists already, not overwriting", file)
			}

			studies, err := discoverStudies(repo)
			if err != nil {
				return err
			}
			if len(studies) == 0 {
				return fmt.Errorf("no study with cases found under %s", repo)
			}

			cfg := &model.Config{
				Repository:  repo,
				Destination: dest,
				Studies:     studies,
			}
			if err := yamlio.AtomicWrite(file, cfg); err != nil {
				return err
			}

			total := 0
			for _, st := range studies {
				total += len(st.Cases)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %d studies, %d cases\n",
				file, len(studies), total)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "smgr.yaml", "smgr parameter file to create")
	cmd.Flags().StringVar(&repo, "repo", ".", "repository directory to scan")
	cmd.Flags().StringVar(&dest, "dest", "", "destination directory to record")
	return cmd
}
