package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/cfdops/studymanager/internal/orchestrator"
)

// runFlags holds everything the run command collects from the command
// line before handing over to the orchestrator.
type runFlags struct {
	file string
	repo string
	dest string

	update  bool
	compile bool
	run     bool
	compare bool
	post    bool

	rm  bool
	dow bool

	withTags     []string
	withoutTags  []string
	filterLevel  int
	filterNProcs int

	nProcs      int
	nIterations int
	jobs        int
	resource    string
	reference   string

	solver string
	diff   string

	quiet bool
}

func (f *runFlags) options() orchestrator.Options {
	opts := orchestrator.Options{
		File:            f.file,
		Repo:            f.repo,
		Dest:            f.dest,
		UpdateSetup:     f.update,
		TestCompilation: f.compile,
		RunCases:        f.run,
		Compare:         f.compare,
		PostPro:         f.post,
		Report:          true,
		RemoveExisting:  f.rm,
		DontOverwrite:   f.dow,
		WithTags:        f.withTags,
		WithoutTags:     f.withoutTags,
		NProcs:          f.nProcs,
		NIterations:     f.nIterations,
		Jobs:            f.jobs,
		Resource:        f.resource,
		Reference:       f.reference,
		Quiet:           f.quiet,
		SolverExe:       f.solver,
		DiffArgv:        strings.Fields(f.diff),
	}

	// With no phase selected, run the full batch.
	if !f.update && !f.compile && !f.run && !f.compare && !f.post {
		opts.TestCompilation = true
		opts.RunCases = true
		opts.Compare = true
		opts.PostPro = true
	}

	if f.filterLevel >= 0 {
		l := f.filterLevel
		opts.FilterLevel = &l
	}
	if f.filterNProcs >= 0 {
		n := f.filterNProcs
		opts.FilterNProcs = &n
	}
	return opts
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.file, "file", "f", "smgr.yaml", "smgr parameter file")
	cmd.Flags().StringVar(&f.repo, "repo", "", "override the repository directory")
	cmd.Flags().StringVar(&f.dest, "dest", "", "override the destination directory")

	cmd.Flags().BoolVarP(&f.update, "update", "u", false, "update setup files in the repository")
	cmd.Flags().BoolVarP(&f.compile, "test-compilation", "t", false, "compile the case user sources")
	cmd.Flags().BoolVarP(&f.run, "run", "r", false, "run the cases")
	cmd.Flags().BoolVar(&f.compare, "compare", false, "compare checkpoints against the repository")
	cmd.Flags().BoolVar(&f.post, "post", false, "run scripts and post-processing")

	cmd.Flags().BoolVar(&f.rm, "rm", false, "purge pre-existing case results in the destination")
	cmd.Flags().BoolVar(&f.dow, "dow", false, "do not overwrite DATA and SRC of pre-existing cases")

	cmd.Flags().StringSliceVar(&f.withTags, "with-tags", nil, "only select cases carrying all of these tags")
	cmd.Flags().StringSliceVar(&f.withoutTags, "without-tags", nil, "drop cases carrying one of these tags")
	cmd.Flags().IntVar(&f.filterLevel, "filter-level", -1, "only run cases at this dependency level")
	cmd.Flags().IntVar(&f.filterNProcs, "filter-n-procs", -1, "only run cases with this process count")

	cmd.Flags().IntVar(&f.nProcs, "n-procs", 0, "override the per-case process count")
	cmd.Flags().IntVarP(&f.nIterations, "n-iterations", "n", 0, "cap the number of time steps per run")
	cmd.Flags().IntVarP(&f.jobs, "jobs", "j", 1, "concurrent cases per dependency level")
	cmd.Flags().StringVar(&f.resource, "resource", "", "run with this solver resource")
	cmd.Flags().StringVar(&f.reference, "reference", "", "alternate repository for comparisons")

	cmd.Flags().StringVar(&f.solver, "solver", "code_saturne", "solver executable")
	cmd.Flags().StringVar(&f.diff, "diff", "cs_io_dump --diff", "checkpoint diff command")

	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "suppress console output")
}

func newRunCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the selected phases of the batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := orchestrator.New(flags.options(), cmd.OutOrStdout(), nil)
			if err != nil {
				return err
			}
			defer s.Close()
			return s.Run(cmd.Context())
		},
	}
	flags.register(cmd)
	return cmd
}
