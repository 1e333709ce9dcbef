package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/cfdops/studymanager/internal/compare"
)

// SummaryRow is one line of the global report: the final status of every
// phase for one case.
type SummaryRow struct {
	Study    string
	Case     string
	Compiled string
	Run      string
	Time     string
	Compare  string
	Diff     string
}

// Summary is the global report document, one row per case.
type Summary struct {
	path string
	rows []SummaryRow
}

func NewSummary(dir, name string) *Summary {
	return &Summary{path: filepath.Join(dir, name)}
}

func (s *Summary) AddRow(row SummaryRow) {
	s.rows = append(s.rows, row)
}

// Close writes the document and returns its path.
func (s *Summary) Close() (string, error) {
	f, err := os.Create(s.path)
	if err != nil {
		return "", fmt.Errorf("create summary report: %w", err)
	}
	defer f.Close()

	fmt.Fprintln(f, "# Studymanager summary")
	fmt.Fprintln(f)

	w := tabwriter.NewWriter(f, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STUDY\tCASE\tCOMPILE\tRUN\tTIME\tCOMPARE\tDIFF")
	for _, r := range s.rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Study, r.Case, orDash(r.Compiled), orDash(r.Run),
			orDash(r.Time), orDash(r.Compare), orDash(r.Diff))
	}
	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("write summary report: %w", err)
	}
	return s.path, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Detailed is the detailed report document: per-study figures, per-case
// difference tables and input attachments.
type Detailed struct {
	path string
	b    strings.Builder
}

func NewDetailed(dir, name string) *Detailed {
	d := &Detailed{path: filepath.Join(dir, name)}
	d.b.WriteString("# Studymanager detailed report\n")
	return d
}

func (d *Detailed) Section(title string) {
	fmt.Fprintf(&d.b, "\n## %s\n", title)
}

func (d *Detailed) Subsection(title string) {
	fmt.Fprintf(&d.b, "\n### %s\n", title)
}

func (d *Detailed) Line(text string) {
	fmt.Fprintf(&d.b, "%s\n", text)
}

// Figure attaches a figure file by path.
func (d *Detailed) Figure(path string) {
	fmt.Fprintf(&d.b, "![figure](%s)\n", path)
}

// Attachment embeds a non-figure result file by path.
func (d *Detailed) Attachment(path string) {
	fmt.Fprintf(&d.b, "attachment: %s\n", path)
}

// DiffTable renders the per-field difference table of one comparison.
func (d *Detailed) DiffTable(diffs []compare.FieldDiff) {
	d.b.WriteString("\nFIELD | REPO | DEST | THRESHOLD\n")
	d.b.WriteString("----- | ---- | ---- | ---------\n")
	for _, df := range diffs {
		fmt.Fprintf(&d.b, "%s | %s | %s | %s\n", df.Name, df.Repo, df.Dest, df.Threshold)
	}
}

// Close writes the document and returns its path.
func (d *Detailed) Close() (string, error) {
	if err := os.WriteFile(d.path, []byte(d.b.String()), 0644); err != nil {
		return "", fmt.Errorf("write detailed report: %w", err)
	}
	return d.path, nil
}
