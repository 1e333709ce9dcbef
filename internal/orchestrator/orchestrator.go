// Package orchestrator drives a full studymanager batch: loading the smgr
// parameter file, materializing the destination tree, compiling, running
// and comparing every selected case in dependency order, then producing
// the reports and persisting the updated parameter file.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cfdops/studymanager/internal/compare"
	"github.com/cfdops/studymanager/internal/fsutil"
	"github.com/cfdops/studymanager/internal/graph"
	"github.com/cfdops/studymanager/internal/lock"
	"github.com/cfdops/studymanager/internal/model"
	"github.com/cfdops/studymanager/internal/plot"
	"github.com/cfdops/studymanager/internal/report"
	"github.com/cfdops/studymanager/internal/solver"
	"github.com/cfdops/studymanager/internal/study"
	"github.com/cfdops/studymanager/internal/yamlio"
)

// LogFileName is the per-run log collecting all subprocess output.
const LogFileName = "studymanager.log"

// LockFileName marks a destination tree owned by a running invocation.
const LockFileName = ".smgr.lock"

// Options selects the phases and scope of one invocation.
type Options struct {
	// File is the path of the smgr parameter file.
	File string
	// Repo and Dest override the paths recorded in the parameter file.
	Repo string
	Dest string

	// Phase switches.
	UpdateSetup     bool
	TestCompilation bool
	RunCases        bool
	Compare         bool
	PostPro         bool
	Report          bool

	// Destination handling.
	RemoveExisting bool // purge pre-existing case results
	DontOverwrite  bool // keep pre-existing DATA and SRC directories

	// Case selection.
	WithTags     []string
	WithoutTags  []string
	FilterLevel  *int
	FilterNProcs *int

	// Run tuning.
	NProcs      int // overrides the per-case process count when > 0
	NIterations int // caps the time step count when > 0
	Jobs        int // concurrent cases per dependency level, minimum 1
	Resource    string
	Reference   string // alternate repository for comparisons

	// Executables.
	SolverExe string
	DiffArgv  []string

	Quiet bool
}

// Studies is one loaded and filtered batch, ready to run.
type Studies struct {
	opts Options

	cfg     *model.Config
	cfgPath string
	repo    string
	dest    string

	studies []*study.Study
	byCase  map[*study.Case]*study.Study
	graph   *graph.Graph

	launcher *solver.Launcher
	diff     *compare.Tool
	plotter  plot.Plotter
	sink     *report.Sink
	logFile  *os.File
	destLock *lock.DestinationLock

	compileFailures []string
}

// New loads the parameter file, applies overrides and filters, locks the
// destination and builds the dependency graph. The caller must Close the
// returned value.
func New(opts Options, console io.Writer, plotter plot.Plotter) (*Studies, error) {
	if opts.Jobs < 1 {
		opts.Jobs = 1
	}

	cfg, err := model.Load(opts.File)
	if err != nil {
		return nil, err
	}

	repo := cfg.Repository
	if opts.Repo != "" {
		repo = opts.Repo
	}
	dest := cfg.Destination
	if opts.Dest != "" {
		dest = opts.Dest
	}
	if repo == "" {
		return nil, fmt.Errorf("no repository directory given")
	}
	if info, err := os.Stat(repo); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("repository %s is not a directory", repo)
	}
	if dest == "" {
		return nil, fmt.Errorf("no destination directory given")
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return nil, fmt.Errorf("create destination %s: %w", dest, err)
	}

	destLock := lock.New(filepath.Join(dest, LockFileName))
	if err := destLock.TryLock(); err != nil {
		return nil, err
	}

	logFile, err := os.Create(filepath.Join(dest, LogFileName))
	if err != nil {
		destLock.Unlock()
		return nil, fmt.Errorf("create run log: %w", err)
	}

	s := &Studies{
		opts:     opts,
		cfg:      cfg,
		cfgPath:  opts.File,
		repo:     repo,
		dest:     dest,
		byCase:   make(map[*study.Case]*study.Study),
		launcher: solver.NewLauncher(opts.SolverExe),
		diff:     compare.NewTool(opts.DiffArgv...),
		plotter:  plotter,
		sink:     report.NewSink(console, logFile, opts.Quiet),
		logFile:  logFile,
		destLock: destLock,
	}

	filter := study.Filter{
		WithTags:    opts.WithTags,
		WithoutTags: opts.WithoutTags,
		NProcs:      opts.NProcs,
	}
	for _, node := range cfg.StudiesOn() {
		st, err := study.NewStudy(s.launcher, s.diff, node, repo, dest, filter)
		if err != nil {
			s.Close()
			return nil, err
		}
		if len(st.Cases) == 0 {
			continue
		}
		s.studies = append(s.studies, st)
		for _, c := range st.Cases {
			s.byCase[c] = st
		}
	}

	if err := s.buildGraph(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// buildGraph inserts every selected case in configuration order, then
// narrows to the requested sub-graph. Dependencies must precede their
// dependents in the parameter file.
func (s *Studies) buildGraph() error {
	g := graph.New()
	for _, st := range s.studies {
		for _, c := range st.Cases {
			if err := g.AddNode(c); err != nil {
				return err
			}
		}
	}

	if s.opts.FilterLevel != nil || s.opts.FilterNProcs != nil {
		sub, err := g.ExtractSubGraph(s.opts.FilterLevel, s.opts.FilterNProcs)
		if err != nil {
			return err
		}
		g = sub
		kept := make(map[*study.Case]bool, g.Len())
		for _, n := range g.Nodes() {
			kept[n.(*study.Case)] = true
		}
		for _, st := range s.studies {
			for _, c := range st.Cases {
				if !kept[c] {
					c.Disabled = true
				}
			}
		}
	}

	s.graph = g
	return nil
}

// Graph exposes the dependency graph, for the graph dump subcommand.
func (s *Studies) Graph() *graph.Graph { return s.graph }

// LogWriter is the destination of all subprocess output.
func (s *Studies) LogWriter() io.Writer { return s.logFile }

// Close releases the destination lock and the run log.
func (s *Studies) Close() {
	if s.logFile != nil {
		s.logFile.Close()
		s.logFile = nil
	}
	if s.destLock != nil {
		s.destLock.Unlock()
		s.destLock = nil
	}
}

// Run executes the selected phases in their fixed order. The parameter
// file is rewritten at the end so run-id back-fills and compute-flag flips
// survive for the next invocation.
func (s *Studies) Run(ctx context.Context) error {
	s.sink.Reportf("Studymanager: %d studies, %d cases", len(s.studies), s.graph.Len())

	if s.opts.UpdateSetup {
		s.updateSetup(ctx)
	}

	if s.opts.RunCases || s.opts.TestCompilation || s.opts.Compare || s.opts.PostPro {
		if err := s.createStudies(ctx); err != nil {
			return err
		}
	}

	if s.opts.TestCompilation {
		if err := s.testCompilation(ctx); err != nil {
			return err
		}
	}

	if s.opts.RunCases {
		if err := s.runCases(ctx); err != nil {
			return err
		}
	}

	if s.opts.Compare {
		s.checkCompare()
		s.compareCases(ctx)
	}

	if s.opts.PostPro {
		s.checkScripts()
		s.runScripts(ctx)
		s.postPro(ctx)
		s.plotStudies()
	}

	if s.opts.Report {
		if err := s.buildReports(); err != nil {
			return err
		}
	}

	if err := yamlio.AtomicWrite(s.cfgPath, s.cfg); err != nil {
		return fmt.Errorf("save parameter file: %w", err)
	}
	// Best effort: keep a copy of the parameter file next to the results.
	_ = fsutil.CopyFile(s.cfgPath, filepath.Join(s.dest, filepath.Base(s.cfgPath)))
	return nil
}
