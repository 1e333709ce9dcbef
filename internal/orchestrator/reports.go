package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cfdops/studymanager/internal/model"
	"github.com/cfdops/studymanager/internal/report"
	"github.com/cfdops/studymanager/internal/study"
)

// Report file names, created at the destination root.
const (
	SummaryReportName  = "report_global.txt"
	DetailedReportName = "report_detailed.md"
)

// buildReports writes the global summary table and, when any study
// produced figures, differences or attachments, the detailed report.
func (s *Studies) buildReports() error {
	summary := report.NewSummary(s.dest, SummaryReportName)
	for _, st := range s.studies {
		for _, c := range st.Cases {
			summary.AddRow(s.summaryRow(st, c))
		}
	}
	path, err := summary.Close()
	if err != nil {
		return err
	}
	s.sink.Reportf("Global report: %s", path)

	detailed := false
	for _, st := range s.studies {
		if st.NeedsDetailedReport() {
			detailed = true
			break
		}
	}
	if !detailed {
		return nil
	}

	doc := report.NewDetailed(s.dest, DetailedReportName)
	for _, st := range s.studies {
		if !st.NeedsDetailedReport() {
			continue
		}
		s.detailStudy(doc, st)
	}
	path, err = doc.Close()
	if err != nil {
		return err
	}
	s.sink.Reportf("Detailed report: %s", path)
	return nil
}

func (s *Studies) summaryRow(st *study.Study, c *study.Case) report.SummaryRow {
	row := report.SummaryRow{
		Study: st.Label,
		Case:  c.Label,
	}
	if c.RunID != "" {
		row.Case = c.Label + "/" + c.RunID
	}
	if c.Disabled {
		row.Run = "DISABLED"
		return row
	}

	if c.IsCompiled == model.StateOK || c.IsCompiled == model.StateKO {
		row.Compiled = string(c.IsCompiled)
	}
	if c.IsRun == model.StateOK || c.IsRun == model.StateKO {
		row.Run = string(c.IsRun)
		if c.RunTime != nil {
			row.Time = fmt.Sprintf("%.0f s", c.RunTime.Seconds())
		} else {
			row.Time = "existed already"
		}
	}
	if c.IsCompare == model.CompareDone {
		row.Compare = "done"
		switch {
		case !c.MeshSizesEqual:
			row.Diff = "mesh sizes differ"
		case len(c.Diffs) > 0:
			row.Diff = fmt.Sprintf("%d field(s)", len(c.Diffs))
		default:
			row.Diff = "none"
		}
	}
	return row
}

func (s *Studies) detailStudy(doc *report.Detailed, st *study.Study) {
	doc.Section(st.Label)

	for _, fig := range st.Figures {
		doc.Figure(fig)
	}

	for _, c := range st.Cases {
		if c.Disabled {
			continue
		}
		if len(c.Diffs) == 0 && c.MeshSizesEqual && len(c.Node.Inputs) == 0 {
			continue
		}

		doc.Subsection(c.Title())
		if !c.MeshSizesEqual {
			doc.Line("The meshes of the repository and destination checkpoints differ in size.")
		}
		if len(c.Diffs) > 0 {
			doc.DiffTable(c.Diffs)
		}
		for _, in := range c.Node.Inputs {
			doc.Attachment(s.attachmentPath(st, c, in))
		}
	}
}

// attachmentPath locates an input file, preferring the destination result
// directory over the repository one, falling back to the bare name.
func (s *Studies) attachmentPath(st *study.Study, c *study.Case, in model.Input) string {
	if c.RunDir != "" {
		p := filepath.Join(c.RunDir, in.File)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if name, err := c.CheckDir("repo", in.Repo, s.opts.Reference); err == nil {
		p := filepath.Join(st.RepoDir(), c.Label, c.Resu(), name, in.File)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return in.File
}
