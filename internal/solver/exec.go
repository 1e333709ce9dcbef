// Package solver drives the external CFD solver executable: case creation,
// run-id suggestion, runs, setup updates and source compilation. Every
// invocation is a blocking subprocess with its output redirected to the
// run log.
package solver

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"
)

// Execute runs argv in dir, streaming combined output to logW, and returns
// the exit code and elapsed wall time. A process that could not be started
// reports exit code -1 so aggregation by minimum keeps the failure visible.
func Execute(ctx context.Context, dir string, logW io.Writer, argv ...string) (int, time.Duration, error) {
	if len(argv) == 0 {
		return -1, 0, fmt.Errorf("empty command")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Stdout = logW
	cmd.Stderr = logW

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err == nil {
		return 0, elapsed, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), elapsed, nil
	}
	return -1, elapsed, fmt.Errorf("run %s: %w", argv[0], err)
}

// Capture runs argv in dir and returns its standard output.
func Capture(ctx context.Context, dir string, argv ...string) (string, error) {
	if len(argv) == 0 {
		return "", fmt.Errorf("empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("run %s: %w", argv[0], err)
	}
	return string(out), nil
}
