// Package study implements the per-case lifecycle (create, update, compile,
// run, compare, disable) and the tag-filtered case collections forming a
// study.
package study

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cfdops/studymanager/internal/compare"
	"github.com/cfdops/studymanager/internal/fsutil"
	"github.com/cfdops/studymanager/internal/graph"
	"github.com/cfdops/studymanager/internal/model"
	"github.com/cfdops/studymanager/internal/report"
	"github.com/cfdops/studymanager/internal/resultdir"
	"github.com/cfdops/studymanager/internal/runcfg"
	"github.com/cfdops/studymanager/internal/solver"
)

// Results directory names. Coupled multi-domain cases collect their
// results under a combined root.
const (
	ResuSingle  = "RESU"
	ResuCoupled = "RESU_COUPLING"
)

// Case is one solver invocation unit, possibly spanning several coupled
// subdomains. Configuration is fixed at construction; status fields mutate
// as the case moves through the phases.
type Case struct {
	// Identity.
	StudyLabel string
	Label      string
	RunID      string // empty until user-specified or solver-suggested

	// Configuration.
	Node       *model.Case // live configuration node, mutated for back-fills
	Compute    model.Flag
	Plot       model.Flag
	Compare    model.Flag
	Parametric string
	Notebook   string
	KwArgs     string
	Depends    string
	Tags       []string
	Subdomains []string // coupled subdomain names, nil for single-domain

	// Status.
	IsCompiled     model.State
	IsRun          model.State
	IsCompare      model.CompareState
	RunTime        *time.Duration // nil when the solver was not invoked
	Diffs          []compare.FieldDiff
	MeshSizesEqual bool
	Disabled       bool
	RunDir         string

	launcher *solver.Launcher
	diff     *compare.Tool
	repo     string // repository study directory
	dest     string // destination study directory
	resu     string
	nProcs   int
	level    int
}

// NewCase builds a case from its configuration node. The repository-side
// run.cfg is consulted to detect coupled multi-domain cases.
func NewCase(launcher *solver.Launcher, diff *compare.Tool, studyLabel string,
	node *model.Case, repoStudyDir, destStudyDir string) (*Case, error) {

	c := &Case{
		StudyLabel: studyLabel,
		Label:      node.Label,
		RunID:      node.RunID,
		Node:       node,
		Compute:    node.Compute,
		Plot:       node.Post,
		Compare:    node.Compare,
		Parametric: node.Parametric,
		Notebook:   node.Notebook,
		KwArgs:     node.KwArgs,
		Depends:    node.Depends,
		Tags:       node.Tags,

		IsCompiled:     model.StateNotDone,
		IsRun:          model.StateNotDone,
		IsCompare:      model.CompareNotDone,
		MeshSizesEqual: true,

		launcher: launcher,
		diff:     diff,
		repo:     repoStudyDir,
		dest:     destStudyDir,
		resu:     ResuSingle,
		nProcs:   node.NProcs,
		level:    graph.LevelUnset,
	}

	rc, err := runcfg.LoadIfExists(filepath.Join(repoStudyDir, node.Label, runcfg.FileName))
	if err != nil {
		return nil, fmt.Errorf("case %s: %w", c.Title(), err)
	}
	if rc != nil && rc.IsCoupled() {
		c.resu = ResuCoupled
		c.Subdomains = rc.SubdomainNames()
	}
	return c, nil
}

// Title identifies the case in reports: study/label, plus the result
// subdirectory when a run id is fixed.
func (c *Case) Title() string {
	title := c.StudyLabel + "/" + c.Label
	if c.RunID != "" {
		title += "/" + c.resu + "/" + c.RunID
	}
	return title
}

// Resu returns the name of the case's results root (RESU or RESU_COUPLING).
func (c *Case) Resu() string {
	return c.resu
}

// Key implements graph.Node: the reference other cases use to depend on
// this one.
func (c *Case) Key() string {
	return c.StudyLabel + "/" + c.Label + "/" + c.RunID
}

// DependsOn implements graph.Node.
func (c *Case) DependsOn() string { return c.Depends }

// NProcs implements graph.Node.
func (c *Case) NProcs() int { return c.nProcs }

// SetNProcs overrides the configured process count (command-line override).
func (c *Case) SetNProcs(n int) { c.nProcs = n }

// Level implements graph.Node.
func (c *Case) Level() int { return c.level }

// SetLevel implements graph.Node.
func (c *Case) SetLevel(l int) { c.level = l }

// Create materializes the case working tree in the destination study
// directory and returns the report lines describing the outcome.
//
// Single-domain cases delegate entirely to the solver's create subcommand.
// Coupled cases are assembled entry by entry: subdomains go through the
// solver, other directories are deep-copied, files are copied, and a
// combined results directory is created when the copied run.cfg declares
// coupled domains.
func (c *Case) Create(ctx context.Context, logW io.Writer) ([]string, error) {
	refDir := filepath.Join(c.repo, c.Label)

	var code int
	if c.Subdomains == nil {
		var err error
		code, err = c.launcher.CreateCase(ctx, c.dest, c.Label, refDir, logW)
		if err != nil {
			return []string{createLine(c.Label, false)}, err
		}
	} else {
		var err error
		code, err = c.createCoupled(ctx, refDir, logW)
		if err != nil {
			return []string{createLine(c.Label, false)}, err
		}
	}

	return []string{createLine(c.Label, code == 0)}, nil
}

func createLine(label string, ok bool) string {
	if ok {
		return "      * create case: " + label
	}
	return fmt.Sprintf("      * create case: %s --> FAILED", label)
}

func (c *Case) createCoupled(ctx context.Context, refDir string, logW io.Writer) (int, error) {
	caseDir := filepath.Join(c.dest, c.Label)
	if err := os.Mkdir(caseDir, 0755); err != nil {
		return -1, fmt.Errorf("create case directory %s: %w", caseDir, err)
	}

	subdomain := make(map[string]bool, len(c.Subdomains))
	for _, s := range c.Subdomains {
		subdomain[s] = true
	}

	entries, err := os.ReadDir(refDir)
	if err != nil {
		return -1, fmt.Errorf("read reference case %s: %w", refDir, err)
	}

	// The minimum return code across subdomain creations is kept so any
	// failure stays visible in the aggregate.
	overall := 1
	needCouplingResu := false
	for _, e := range entries {
		ref := filepath.Join(refDir, e.Name())
		switch {
		case subdomain[e.Name()]:
			code, err := c.launcher.CreateCase(ctx, caseDir, e.Name(), ref, logW)
			if err != nil {
				return -1, err
			}
			overall = min(overall, code)
		case e.IsDir():
			if err := fsutil.CopyTree(ref, filepath.Join(caseDir, e.Name())); err != nil {
				return -1, err
			}
		default:
			dst := filepath.Join(caseDir, e.Name())
			if err := fsutil.CopyFile(ref, dst); err != nil {
				return -1, err
			}
			if e.Name() == runcfg.FileName {
				rc, err := runcfg.Load(dst)
				if err == nil && rc.IsCoupled() {
					needCouplingResu = true
				}
			}
		}
	}

	if needCouplingResu {
		resu := filepath.Join(caseDir, ResuCoupled)
		if _, err := os.Stat(resu); os.IsNotExist(err) {
			if err := os.Mkdir(resu, 0755); err != nil {
				return -1, fmt.Errorf("create %s: %w", resu, err)
			}
		}
	}
	return overall, nil
}

// setupDirs lists the repository-side directories whose DATA files hold the
// case's setup.
func (c *Case) setupDirs() []string {
	if c.Subdomains == nil {
		return []string{filepath.Join(c.repo, c.Label)}
	}
	dirs := make([]string, 0, len(c.Subdomains))
	for _, d := range c.Subdomains {
		dirs = append(dirs, filepath.Join(c.repo, c.Label, d))
	}
	return dirs
}

// Update applies backward-compatibility normalization to the repository
// copy of the case setup files. The solver variant is detected from each
// parameter file's first-line marker; files of an unknown variant are
// skipped with a warning rather than failing the run.
func (c *Case) Update(ctx context.Context, sink *report.Sink, logW io.Writer) {
	for _, dir := range c.setupDirs() {
		dataDir := filepath.Join(dir, "DATA")
		entries, err := os.ReadDir(dataDir)
		if err != nil {
			sink.Warnf("  Warning: no DATA directory in %s", dir)
			continue
		}

		supported := false
		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != ".xml" {
				continue
			}
			path := filepath.Join(dataDir, e.Name())
			variant, err := solver.DetectVariant(path)
			if err != nil {
				sink.Warnf("  Warning: cannot read parameter file %s: %v", path, err)
				continue
			}
			if variant == solver.VariantUnknown {
				sink.Warnf("  Warning: unrecognized parameter file %s, skipped", path)
				continue
			}
			supported = true
		}

		if supported {
			if err := c.launcher.UpdateCase(ctx, dir, logW); err != nil {
				sink.Warnf("  Warning: update of %s failed: %v", dir, err)
			}
		}
	}
}

// TestCompilation compiles the user sources of every subdomain found under
// studyPath. The state stays StateNone when no compilable sources exist
// anywhere; one failing subdomain makes the whole case KO.
func (c *Case) TestCompilation(ctx context.Context, studyPath string, logW io.Writer) model.State {
	var srcDirs []string
	if c.Subdomains == nil {
		srcDirs = []string{filepath.Join(studyPath, c.Label, "SRC")}
	} else {
		for _, sd := range c.Subdomains {
			srcDirs = append(srcDirs, filepath.Join(studyPath, c.Label, sd, "SRC"))
		}
	}

	c.IsCompiled = model.StateNone
	failed := false
	for _, dir := range srcDirs {
		if len(solver.SourcesToCompile(dir)) == 0 {
			continue
		}
		c.IsCompiled = model.StateOK
		code, err := c.launcher.CompileAndLink(ctx, dir, logW)
		if err != nil || code != 0 {
			failed = true
		}
	}
	if failed {
		c.IsCompiled = model.StateKO
	}
	return c.IsCompiled
}

// Run executes the solver for this case.
//
// A case whose run id is fixed and whose result directory already exists is
// not re-run: the outcome is read from the error marker alone and RunTime
// stays nil. Otherwise a fresh run id is requested from the solver,
// repeatedly if needed, until one without a pre-existing directory is
// found.
func (c *Case) Run(ctx context.Context, resource string, logW io.Writer) error {
	caseDir := filepath.Join(c.dest, c.Label)

	runID := c.RunID
	var runDir string

	if runID != "" {
		runDir = filepath.Join(caseDir, c.resu, runID)
		if info, err := os.Stat(runDir); err == nil && info.IsDir() {
			if _, err := os.Stat(filepath.Join(runDir, "error")); err == nil {
				c.IsRun = model.StateKO
			} else {
				c.IsRun = model.StateOK
			}
			c.RunDir = runDir
			return nil
		}
	} else {
		for {
			id, err := c.launcher.SuggestRunID(ctx, caseDir)
			if err != nil {
				c.IsRun = model.StateKO
				return fmt.Errorf("case %s: %w", c.Title(), err)
			}
			if id == "" {
				c.IsRun = model.StateKO
				return fmt.Errorf("case %s: run id not read from the solver", c.Title())
			}
			runID = id
			runDir = filepath.Join(caseDir, c.resu, runID)
			if _, err := os.Stat(runDir); os.IsNotExist(err) {
				break
			}
		}
	}

	c.RunID = runID
	c.RunDir = filepath.Join(caseDir, c.resu, runID)

	code, elapsed, err := c.launcher.Run(ctx, caseDir, solver.RunOptions{
		RunID:      c.RunID,
		Notebook:   c.Notebook,
		Parametric: c.Parametric,
		KwArgs:     c.KwArgs,
		NProcs:     c.nProcs,
		Resource:   resource,
	}, logW)
	c.RunTime = &elapsed

	if err != nil || code != 0 {
		c.IsRun = model.StateKO
		if err != nil {
			return fmt.Errorf("case %s: %w", c.Title(), err)
		}
		return nil
	}
	c.IsRun = model.StateOK
	return nil
}

// resultRoot builds the path of a results root on the repository or
// destination side. reference, when non-empty, replaces the repository
// study directory.
func (c *Case) resultRoot(side string, reference string) string {
	base := c.dest
	if side == "repo" {
		base = c.repo
		if reference != "" {
			base = reference
		}
	}
	return filepath.Join(base, c.Label, c.resu)
}

// CheckDir resolves one result directory under the given side's results
// root, applying the case run id for disambiguation.
func (c *Case) CheckDir(side, explicit, reference string) (string, error) {
	name, err := resultdir.Resolve(c.resultRoot(side, reference), explicit, c.RunID)
	if err != nil {
		return "", fmt.Errorf("case %s: %w", c.Title(), err)
	}
	return name, nil
}

// CheckDirs validates the repository and/or destination result directories
// of one directive. A nil pointer skips that side. Auto-discovered names
// are written back through the pointers so later phases reuse them without
// re-resolving.
func (c *Case) CheckDirs(repoID, destID *string, reference string) error {
	if repoID != nil {
		name, err := c.CheckDir("repo", *repoID, reference)
		if err != nil {
			return err
		}
		if *repoID == "" {
			*repoID = name
		}
	}
	if destID != nil {
		name, err := c.CheckDir("dest", *destID, "")
		if err != nil {
			return err
		}
		if *destID == "" {
			*destID = name
		}
	}
	return nil
}

// RunCompare locates the repository and destination checkpoint files and
// runs the external diff tool on them. The repository checkpoint defaults
// to the coupling-aware name, falling back to the alternate extension when
// absent.
func (c *Case) RunCompare(ctx context.Context, sink *report.Sink,
	repoID, destID, threshold, args, reference string) (compare.Result, error) {

	none := compare.Result{MeshSizesEqual: true}

	repoName, err := c.CheckDir("repo", repoID, reference)
	if err != nil {
		sink.Warnf("Warning: %v", err)
		return none, err
	}
	repoCkpt := filepath.Join(c.resultRoot("repo", reference), repoName, "checkpoint", "main")
	if _, err := os.Stat(repoCkpt); err != nil {
		repoCkpt += ".csc"
	}

	destName, err := c.CheckDir("dest", destID, "")
	if err != nil {
		sink.Warnf("Warning: %v", err)
		return none, err
	}
	destCkpt := filepath.Join(c.resultRoot("dest", ""), destName, "checkpoint", "main.csc")

	runner := func(ctx context.Context, argv []string) (string, error) {
		return solver.Capture(ctx, "", argv...)
	}
	return c.diff.Run(ctx, runner, repoCkpt, destCkpt, threshold, args)
}

// OverwriteDirectories replaces the given case subdirectories in the
// destination with fresh copies from the repository.
func (c *Case) OverwriteDirectories(sink *report.Sink, dirs []string) {
	for _, dir := range dirs {
		ref := filepath.Join(c.repo, c.Label, dir)
		if info, err := os.Stat(ref); err != nil || !info.IsDir() {
			continue
		}
		dest := filepath.Join(c.dest, c.Label, dir)
		if err := os.RemoveAll(dest); err != nil {
			sink.Warnf("      Error when overwriting folder %s: %v", dest, err)
			continue
		}
		if err := fsutil.CopyTree(ref, dest); err != nil {
			sink.Warnf("      Error when overwriting folder %s: %v", dest, err)
		}
	}
}

// Disable idempotently excludes the case from all later phases and returns
// the report line.
func (c *Case) Disable() string {
	c.Disabled = true
	return fmt.Sprintf("    - Case %s --> DISABLED", c.Title())
}
