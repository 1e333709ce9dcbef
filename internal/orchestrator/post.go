package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/cfdops/studymanager/internal/fsutil"
	"github.com/cfdops/studymanager/internal/model"
	"github.com/cfdops/studymanager/internal/solver"
	"github.com/cfdops/studymanager/internal/study"
)

// wantsCompare reports whether the case participates in the comparison
// phase.
func wantsCompare(c *study.Case) bool {
	return !c.Disabled && c.Compare.OrDefault(model.FlagOn).IsOn() && c.IsRun != model.StateKO
}

// checkCompare validates the result directories of every comparison before
// any diff tool runs. An unresolvable directory disables the whole case
// rather than aborting the batch: the remaining cases still complete.
func (s *Studies) checkCompare() {
	for _, st := range s.studies {
		for _, c := range st.Cases {
			if !wantsCompare(c) {
				continue
			}

			if len(c.Node.Compares) == 0 {
				// Whole-case comparison with defaults; nothing to back-fill.
				var repo, dest string
				if err := c.CheckDirs(&repo, &dest, s.opts.Reference); err != nil {
					s.sink.Warnf("    Warning: %v", err)
					s.sink.Failuref("%s", c.Disable())
				}
				continue
			}

			for i := range c.Node.Compares {
				d := &c.Node.Compares[i]
				if !d.Status.OrDefault(model.FlagOn).IsOn() {
					continue
				}
				if err := c.CheckDirs(&d.Repo, &d.Dest, s.opts.Reference); err != nil {
					s.sink.Warnf("    Warning: %v", err)
					s.sink.Failuref("%s", c.Disable())
					break
				}
			}
		}
	}
}

// compareCases diffs the destination checkpoints against the repository
// ones. A case without explicit compare directives is compared whole with
// default settings.
func (s *Studies) compareCases(ctx context.Context) {
	s.sink.ActionLocation("Comparison of the results", true)

	for _, st := range s.studies {
		s.sink.Reportf("  o Study: %s", st.Label)
		for _, c := range st.Cases {
			if !wantsCompare(c) {
				continue
			}

			directives := c.Node.Compares
			if len(directives) == 0 {
				directives = []model.CompareDirective{{}}
			}

			for _, d := range directives {
				if !d.Status.OrDefault(model.FlagOn).IsOn() {
					continue
				}
				res, err := c.RunCompare(ctx, s.sink, d.Repo, d.Dest, d.Threshold, d.Args, s.opts.Reference)
				if err != nil {
					s.sink.Failuref("    - compare %s --> FAILED", c.Title())
					continue
				}
				c.IsCompare = model.CompareDone
				c.Diffs = append(c.Diffs, res.Diffs...)
				if !res.MeshSizesEqual {
					c.MeshSizesEqual = false
				}

				switch {
				case !res.MeshSizesEqual:
					s.sink.Failuref("    - compare %s --> mesh sizes differ", c.Title())
				case len(res.Diffs) > 0:
					s.sink.Warnf("    - compare %s --> %d field difference(s)", c.Title(), len(res.Diffs))
				default:
					s.sink.Successf("    - compare %s --> OK", c.Title())
				}
			}
		}
	}
	s.sink.Blank()
}

// checkScripts verifies the post-run scripts exist before anything runs.
// A missing script disables its directive, not the case.
func (s *Studies) checkScripts() {
	for _, st := range s.studies {
		for _, c := range st.EnabledCases() {
			for i := range c.Node.Scripts {
				sc := &c.Node.Scripts[i]
				if !sc.Status.IsOn() {
					continue
				}
				if _, err := os.Stat(filepath.Join(st.DestDir(), "POST", sc.Name)); err != nil {
					s.sink.Warnf("    Warning: script %s not found in POST of study %s, disabled", sc.Name, st.Label)
					sc.Status = model.FlagOff
				}
			}
		}
	}
}

// runScripts executes the per-case post-run scripts from the study POST
// directory, handing them the resolved repository and destination result
// directories.
func (s *Studies) runScripts(ctx context.Context) {
	s.sink.ActionLocation("Script execution", true)

	for _, st := range s.studies {
		ran := false
		for _, c := range st.EnabledCases() {
			for i := range c.Node.Scripts {
				sc := &c.Node.Scripts[i]
				if !sc.Status.IsOn() {
					continue
				}
				if !ran {
					s.sink.Reportf("  o Study: %s", st.Label)
					ran = true
				}

				script := filepath.Join(st.DestDir(), "POST", sc.Name)
				if err := fsutil.MakeExecutable(script); err != nil {
					s.sink.Warnf("    Warning: cannot make %s executable: %v", script, err)
					continue
				}

				argv := append([]string{script}, strings.Fields(sc.Args)...)
				if name, err := c.CheckDir("dest", sc.Dest, ""); err == nil {
					argv = append(argv, "-d",
						filepath.Join(st.DestDir(), c.Label, c.Resu(), name))
				}
				if name, err := c.CheckDir("repo", sc.Repo, s.opts.Reference); err == nil {
					argv = append(argv, "-r",
						filepath.Join(st.RepoDir(), c.Label, c.Resu(), name))
				}

				code, _, err := solver.Execute(ctx, st.DestDir(), s.logFile, argv...)
				if err != nil || code != 0 {
					s.sink.Failuref("    - script %s for case %s --> FAILED", sc.Name, c.Title())
				} else {
					s.sink.Successf("    - script %s for case %s --> OK", sc.Name, c.Title())
				}
			}
		}
	}
	s.sink.Blank()
}

// postPro runs the study-level post-processing scripts over the run
// directories of the study. Cases that were not run in this invocation get
// their run directory resolved first, so post-processing works on
// pre-existing results too.
func (s *Studies) postPro(ctx context.Context) {
	s.sink.ActionLocation("Post-processing", true)

	for _, st := range s.studies {
		active := false
		for _, p := range st.PostPro {
			if p.Status.IsOn() {
				active = true
				break
			}
		}
		if !active {
			continue
		}

		for _, c := range st.EnabledCases() {
			if c.RunDir != "" || c.IsRun == model.StateKO {
				continue
			}
			if name, err := c.CheckDir("dest", "", ""); err == nil {
				c.RunDir = filepath.Join(st.DestDir(), c.Label, c.Resu(), name)
			} else {
				s.sink.Warnf("    Warning: %v", err)
				s.sink.Failuref("%s", c.Disable())
			}
		}

		for _, p := range st.PostPro {
			if !p.Status.IsOn() {
				continue
			}

			script := filepath.Join(st.DestDir(), "POST", p.Name)
			if _, err := os.Stat(script); err != nil {
				s.sink.Warnf("    Warning: postpro script %s not found in POST of study %s", p.Name, st.Label)
				continue
			}
			if err := fsutil.MakeExecutable(script); err != nil {
				s.sink.Warnf("    Warning: cannot make %s executable: %v", script, err)
				continue
			}

			argv := append([]string{script}, strings.Fields(p.Args)...)
			argv = append(argv, "-s", st.Label)
			for _, dir := range st.RunDirectories() {
				argv = append(argv, "-d", dir)
			}

			code, _, err := solver.Execute(ctx, st.DestDir(), s.logFile, argv...)
			if err != nil || code != 0 {
				s.sink.Failuref("    - postpro %s of study %s --> FAILED", p.Name, st.Label)
			} else {
				s.sink.Successf("    - postpro %s of study %s --> OK", p.Name, st.Label)
			}
		}
	}
	s.sink.Blank()
}

// plotStudies renders the configured figures of each study through the
// optional plotting component.
func (s *Studies) plotStudies() {
	if s.plotter == nil {
		return
	}

	for _, st := range s.studies {
		wanted := false
		for _, c := range st.EnabledCases() {
			if c.Plot.OrDefault(model.FlagOn).IsOn() {
				wanted = true
				break
			}
		}
		if !wanted {
			continue
		}

		figs, err := s.plotter.PlotStudy(st.Label, s.dest)
		if err != nil {
			s.sink.Warnf("    Warning: plotting study %s failed: %v", st.Label, err)
			continue
		}
		st.Figures = figs
	}
}
