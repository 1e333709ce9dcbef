package solver

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Launcher assembles and executes subcommands of one solver executable.
type Launcher struct {
	// Exe is the path or name of the solver executable.
	Exe string
}

func NewLauncher(exe string) *Launcher {
	return &Launcher{Exe: exe}
}

// CreateCase materializes a case named label in dir, copying its definition
// from copyFrom. Exit code 0 means success.
func (l *Launcher) CreateCase(ctx context.Context, dir, label, copyFrom string, logW io.Writer) (int, error) {
	code, _, err := Execute(ctx, dir, logW,
		l.Exe, "create", "--case", label, "--quiet", "--noref", "--copy-from", copyFrom)
	return code, err
}

// SuggestRunID asks the solver for a fresh run identifier. The solver
// prints it on stdout, possibly with surrounding whitespace.
func (l *Launcher) SuggestRunID(ctx context.Context, dir string) (string, error) {
	out, err := Capture(ctx, dir, l.Exe, "run", "--suggest-id")
	if err != nil {
		return "", fmt.Errorf("suggest run id: %w", err)
	}
	return strings.Join(strings.Fields(out), " "), nil
}

// RunOptions carries the per-case flags of a solver run.
type RunOptions struct {
	RunID      string
	Notebook   string // whitespace-separated notebook variable assignments
	Parametric string // passed as one argument
	KwArgs     string // passed as one argument
	NProcs     int
	Resource   string
}

// Run launches the solver in dir with the assembled flags and returns the
// exit code and the elapsed wall time.
func (l *Launcher) Run(ctx context.Context, dir string, opts RunOptions, logW io.Writer) (int, time.Duration, error) {
	argv := []string{l.Exe, "run", "--id=" + opts.RunID}

	if opts.Notebook != "" {
		argv = append(argv, "--notebook-args")
		argv = append(argv, strings.Fields(opts.Notebook)...)
	}
	if opts.Parametric != "" {
		argv = append(argv, "--parametric-args", opts.Parametric)
	}
	if opts.KwArgs != "" {
		kw := opts.KwArgs
		if !strings.Contains(kw, " ") {
			kw += " " // workaround for the solver's argument parser
		}
		argv = append(argv, "--kw-args", kw)
	}
	if opts.NProcs > 0 {
		argv = append(argv, "-n", strconv.Itoa(opts.NProcs))
	}
	if opts.Resource != "" {
		argv = append(argv, "--with-resource="+opts.Resource)
	}

	return Execute(ctx, dir, logW, argv...)
}

// UpdateCase runs the solver's own update tooling on a case directory,
// applying backward-compatibility normalization to its setup files.
func (l *Launcher) UpdateCase(ctx context.Context, caseDir string, logW io.Writer) error {
	code, _, err := Execute(ctx, caseDir, logW, l.Exe, "update", "--quiet")
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("update %s: solver exited with code %d", caseDir, code)
	}
	return nil
}
