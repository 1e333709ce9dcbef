// Package resultdir locates and validates solver result directories.
//
// A results root (RESU or RESU_COUPLING) may hold several run
// subdirectories. Exactly one of them is authoritative for a case: the one
// named explicitly in the smgr file, the one matching the case run id, or
// the sole entry when neither is configured. A result directory is complete
// only if the solver left a summary marker and no error marker.
package resultdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	errorMarker   = "error"
	summaryMarker = "summary"
)

var (
	// ErrAmbiguous means several result directories exist and no run id
	// narrows the choice down.
	ErrAmbiguous = errors.New("several result directories and no run id specified")
	// ErrIncomplete means the chosen directory failed the completeness check.
	ErrIncomplete = errors.New("incomplete result directory")
	// ErrMissing means the root or the chosen subdirectory does not exist.
	ErrMissing = errors.New("missing result directory")
)

// Check validates completeness of one result directory: it must contain no
// "error" marker file and must contain a "summary" marker file. Both
// violations are reported distinctly.
func Check(dir string) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s does not exist", ErrMissing, dir)
	}

	if _, err := os.Stat(filepath.Join(dir, errorMarker)); err == nil {
		return fmt.Errorf("%w: %s contains an error file", ErrIncomplete, dir)
	}
	if _, err := os.Stat(filepath.Join(dir, summaryMarker)); err != nil {
		return fmt.Errorf("%w: %s does not contain any summary file", ErrIncomplete, dir)
	}
	return nil
}

// Resolve returns the name of the single valid result subdirectory of root.
//
// When explicit is non-empty, that subdirectory must exist and pass the
// completeness check. Otherwise the root must hold at least one non-hidden
// entry; with more than one entry the case run id must disambiguate, else
// resolution fails with ErrAmbiguous.
func Resolve(root, explicit, runID string) (string, error) {
	if _, err := os.Stat(root); err != nil {
		return "", fmt.Errorf("%w: the directory %s does not exist", ErrMissing, root)
	}

	if explicit != "" {
		dir := filepath.Join(root, explicit)
		if err := Check(dir); err != nil {
			return "", err
		}
		return explicit, nil
	}

	entries, err := listVisible(root)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("%w: there is no result directory in %s", ErrMissing, root)
	}
	if len(entries) > 1 && runID == "" {
		return "", fmt.Errorf("%w: in %s", ErrAmbiguous, root)
	}

	name := runID
	if name == "" {
		name = entries[0]
	}
	if err := Check(filepath.Join(root, name)); err != nil {
		return "", err
	}
	return name, nil
}

// listVisible returns the non-hidden entries of root in directory order.
func listVisible(root string) ([]string, error) {
	all, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read results root %s: %w", root, err)
	}
	var names []string
	for _, e := range all {
		if e.Name()[0] == '.' {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}
