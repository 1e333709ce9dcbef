package solver

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// compilableExts are the user-source extensions the solver's compile step
// understands.
var compilableExts = map[string]bool{
	".c":   true,
	".cxx": true,
	".cpp": true,
	".f90": true,
}

// SourcesToCompile lists the compilable user sources directly under srcDir.
// A missing SRC directory yields an empty list.
func SourcesToCompile(srcDir string) []string {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return nil
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if compilableExts[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, e.Name())
		}
	}
	return files
}

// CompileAndLink test-compiles the user sources of srcDir with the solver's
// compile subcommand and returns its exit code.
func (l *Launcher) CompileAndLink(ctx context.Context, srcDir string, logW io.Writer) (int, error) {
	code, _, err := Execute(ctx, srcDir, logW, l.Exe, "compile", "--test")
	return code, err
}
