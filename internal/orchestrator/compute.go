package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/cfdops/studymanager/internal/fsutil"
	"github.com/cfdops/studymanager/internal/model"
	"github.com/cfdops/studymanager/internal/solver"
	"github.com/cfdops/studymanager/internal/study"
)

// testCompilation compiles the user sources of every case in the
// destination. All cases are attempted; a single failure makes the whole
// invocation fail afterwards.
func (s *Studies) testCompilation(ctx context.Context) error {
	s.sink.ActionLocation("Compilation test", true)
	for _, st := range s.studies {
		s.sink.Reportf("  o Study: %s", st.Label)
		for _, c := range st.EnabledCases() {
			if !c.Compute.OrDefault(model.FlagOn).IsOn() {
				continue
			}
			switch c.TestCompilation(ctx, st.DestDir(), s.logFile) {
			case model.StateOK:
				s.sink.Successf("    - compile %s --> OK", c.Title())
			case model.StateKO:
				s.sink.Failuref("    - compile %s --> FAILED", c.Title())
				s.compileFailures = append(s.compileFailures, c.Title())
			default:
				s.sink.Reportf("    - compile %s --> no source file", c.Title())
			}
		}
	}
	s.sink.Blank()

	if len(s.compileFailures) > 0 {
		return fmt.Errorf("compilation failed for %d case(s): %s",
			len(s.compileFailures), strings.Join(s.compileFailures, ", "))
	}
	return nil
}

// runCases executes every computable case level by level: a level only
// starts once the previous one is complete, so a dependent always finds
// its dependency's results. Within a level up to Jobs cases run at once.
func (s *Studies) runCases(ctx context.Context) error {
	s.sink.ActionLocation("Run cases", true)

	for _, level := range s.graph.Levels() {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.opts.Jobs)
		for _, n := range s.graph.AtLevel(level) {
			c := n.(*study.Case)
			if c.Disabled {
				continue
			}
			g.Go(func() error {
				s.runCase(gctx, c)
				return gctx.Err()
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	s.sink.Blank()
	return nil
}

func (s *Studies) runCase(ctx context.Context, c *study.Case) {
	st := s.byCase[c]

	s.runPrepro(ctx, st, c)

	if !c.Compute.OrDefault(model.FlagOn).IsOn() ||
		c.IsRun == model.StateKO || c.IsCompiled == model.StateKO {
		return
	}

	if s.opts.NIterations > 0 {
		s.capIterations(st, c)
	}

	if err := c.Run(ctx, s.opts.Resource, s.logFile); err != nil {
		s.sink.Failuref("    - run %s --> FAILED (%v)", c.Title(), err)
		return
	}

	switch c.IsRun {
	case model.StateOK:
		if c.RunTime != nil {
			s.sink.Successf("    - run %s --> OK (%.0f s)", c.Title(), c.RunTime.Seconds())
		} else {
			s.sink.Reportf("    - run %s --> results exist already", c.Title())
		}
		// A finished run is not recomputed next time, and its id becomes
		// part of the configuration.
		c.Node.Compute = model.FlagOff
		c.Node.RunID = c.RunID
		backfillDest(c.Node, c.RunID)
	case model.StateKO:
		s.sink.Failuref("    - run %s --> FAILED", c.Title())
	}
}

// backfillDest records the resolved run id on every result-reference
// directive that left its destination unset, so later phases and the next
// invocation address the directory that was actually produced.
func backfillDest(node *model.Case, runID string) {
	for i := range node.Compares {
		if node.Compares[i].Dest == "" {
			node.Compares[i].Dest = runID
		}
	}
	for i := range node.Scripts {
		if node.Scripts[i].Dest == "" {
			node.Scripts[i].Dest = runID
		}
	}
	for i := range node.Inputs {
		if node.Inputs[i].Dest == "" {
			node.Inputs[i].Dest = runID
		}
	}
}

// runPrepro executes the case's preprocessing scripts. Scripts live in the
// repository study, conventionally under MESH, and receive the destination
// case directory after their configured arguments.
func (s *Studies) runPrepro(ctx context.Context, st *study.Study, c *study.Case) {
	for _, p := range c.Node.Prepro {
		if !p.Status.IsOn() {
			continue
		}

		script := filepath.Join(st.RepoDir(), "MESH", p.Name)
		if _, err := os.Stat(script); err != nil {
			if dir := fsutil.FindFile(st.RepoDir(), p.Name); dir != "" {
				script = filepath.Join(dir, p.Name)
			} else {
				s.sink.Warnf("    Warning: prepro script %s not found in study %s", p.Name, st.Label)
				continue
			}
		}
		if err := fsutil.MakeExecutable(script); err != nil {
			s.sink.Warnf("    Warning: cannot make %s executable: %v", script, err)
			continue
		}

		argv := append([]string{script}, strings.Fields(p.Args)...)
		argv = append(argv, "-c", filepath.Join(st.DestDir(), c.Label))
		code, _, err := solver.Execute(ctx, st.DestDir(), s.logFile, argv...)
		if err != nil || code != 0 {
			s.sink.Warnf("    Warning: prepro %s of case %s failed", p.Name, c.Title())
		}
	}
}

// capIterations drops a control file limiting the time step count into the
// case DATA directory. An existing control file is left alone: the case
// setup outranks the command line.
func (s *Studies) capIterations(st *study.Study, c *study.Case) {
	dataDirs := []string{filepath.Join(st.DestDir(), c.Label, "DATA")}
	if len(c.Subdomains) > 0 {
		dataDirs = dataDirs[:0]
		for _, sd := range c.Subdomains {
			dataDirs = append(dataDirs, filepath.Join(st.DestDir(), c.Label, sd, "DATA"))
		}
	}

	for _, dir := range dataDirs {
		path := filepath.Join(dir, "control_file")
		if _, err := os.Stat(path); err == nil {
			continue
		}
		content := fmt.Sprintf("time_step_limit %d\n", s.opts.NIterations)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			s.sink.Warnf("    Warning: cannot write %s: %v", path, err)
		}
	}
}
