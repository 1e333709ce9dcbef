// Package compare invokes the external checkpoint diff tool and parses its
// textual report into per-field differences.
//
// The tool emits semicolon-delimited lines. A header line carries a quoted
// field name followed by key:value pairs including a location and a value
// type tag; only real-valued fields (r4, r8) are retained. The line after a
// header either carries the two compared magnitudes, or a size tag
// (Taille/Size) meaning the two meshes differ in size, which takes
// precedence over any field-level difference.
package compare

import (
	"context"
	"fmt"
	"strings"
)

// DefaultThreshold is reported when no explicit threshold reached the tool.
const DefaultThreshold = "default"

// FieldDiff is one per-field numeric difference.
type FieldDiff struct {
	// Name is the field name with underscores escaped for report embedding.
	Name string
	// Repo and Dest are the reported difference magnitudes.
	Repo string
	Dest string
	// Threshold is the threshold in effect for this comparison.
	Threshold string
}

// Result is the outcome of one checkpoint comparison.
type Result struct {
	Diffs          []FieldDiff
	MeshSizesEqual bool
}

// Tool wraps the external diff executable, e.g. "cs_io_dump -d".
type Tool struct {
	Argv []string
}

func NewTool(argv ...string) *Tool {
	return &Tool{Argv: argv}
}

// Invocation assembles the argument vector for one comparison and the
// threshold value in effect. Extra args may themselves carry a
// --threshold, which wins for reporting purposes.
func (t *Tool) Invocation(repoCkpt, destCkpt, threshold, extraArgs string) (argv []string, effective string) {
	argv = append(argv, t.Argv...)
	argv = append(argv, repoCkpt, destCkpt)
	effective = DefaultThreshold

	if threshold != "" {
		argv = append(argv, "--threshold", threshold)
		effective = threshold
	}
	if extraArgs != "" {
		fields := strings.Fields(extraArgs)
		argv = append(argv, fields...)
		for i, f := range fields {
			if f == "--threshold" && i+1 < len(fields) {
				effective = fields[i+1]
			}
		}
	}
	return argv, effective
}

// Run executes the diff tool and parses its output. A nonzero diff-tool
// exit is not an error: the tool reports differences through its output.
func (t *Tool) Run(ctx context.Context, runner func(ctx context.Context, argv []string) (string, error),
	repoCkpt, destCkpt, threshold, extraArgs string) (Result, error) {

	argv, effective := t.Invocation(repoCkpt, destCkpt, threshold, extraArgs)
	out, err := runner(ctx, argv)
	if err != nil {
		return Result{MeshSizesEqual: true}, fmt.Errorf("diff tool: %w", err)
	}
	return ParseOutput(out, effective), nil
}

// ParseOutput parses the diff tool's report. Parsing is a pure function of
// the text, so identical input always yields an identical result.
func ParseOutput(text, threshold string) Result {
	res := Result{MeshSizesEqual: true}
	lines := strings.Split(text, "\n")

	for i := 0; i < len(lines); i++ {
		// Header lines are the only ones carrying both a Type tag and
		// semicolon separators.
		if !strings.Contains(lines[i], "Type") || !strings.Contains(lines[i], ";") {
			continue
		}

		name, info := splitHeader(lines[i])
		// A real-valued section has at least location and type after the
		// name, with a floating type tag.
		if len(info) < 2 || (info[1].value != "r4" && info[1].value != "r8") {
			continue
		}
		if i+1 >= len(lines) {
			break
		}

		next := lines[i+1]
		if strings.Contains(next, "Taille") || strings.Contains(next, "Size") {
			// Mesh sizes differ; further field parsing is meaningless and
			// the mismatch outranks any field-level difference.
			res.MeshSizesEqual = false
			return res
		}

		vals := splitPairs(next)
		if len(vals) < 3 {
			continue
		}
		res.Diffs = append(res.Diffs, FieldDiff{
			Name:      strings.ReplaceAll(name, "_", `\_`),
			Repo:      vals[1].value,
			Dest:      vals[2].value,
			Threshold: threshold,
		})
	}
	return res
}

type pair struct {
	key   string
	value string
}

// splitHeader splits a header line into the field name and its key:value
// descriptors, stripping the quoting around the name.
func splitHeader(line string) (string, []pair) {
	cells := strings.Split(line, ";")
	for i, c := range cells {
		cells[i] = strings.TrimSpace(strings.ReplaceAll(c, `"`, " "))
	}
	name := strings.TrimSpace(cells[0])
	var info []pair
	for _, c := range cells[1:] {
		if k, v, ok := strings.Cut(c, ":"); ok {
			info = append(info, pair{key: strings.TrimSpace(k), value: strings.TrimSpace(v)})
		}
	}
	return name, info
}

// splitPairs splits a value line into its key:value cells.
func splitPairs(line string) []pair {
	var out []pair
	for _, c := range strings.Split(line, ";") {
		c = strings.TrimSpace(c)
		if k, v, ok := strings.Cut(c, ":"); ok {
			out = append(out, pair{key: strings.TrimSpace(k), value: strings.TrimSpace(v)})
		} else {
			out = append(out, pair{key: c})
		}
	}
	return out
}
