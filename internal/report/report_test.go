package report

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfdops/studymanager/internal/compare"
)

func TestSink_Routing(t *testing.T) {
	var console, file bytes.Buffer
	s := NewSink(&console, &file, false)

	s.Reportf("both %d", 1)
	s.Warnf("warned")

	assert.Contains(t, console.String(), "both 1")
	assert.Contains(t, console.String(), "warned")
	assert.Contains(t, file.String(), "both 1")
	assert.Contains(t, file.String(), "warned")
}

func TestSink_ColorNeverReachesFile(t *testing.T) {
	var console, file bytes.Buffer
	s := NewSink(&console, &file, false)

	s.Failuref("run KO")
	assert.Equal(t, "run KO\n", file.String(), "the report file stays plain text")
}

func TestSink_Quiet(t *testing.T) {
	var console, file bytes.Buffer
	s := NewSink(&console, &file, true)

	s.Reportf("message")
	assert.Empty(t, console.String())
	assert.Contains(t, file.String(), "message")
}

func TestSink_ActionLocation(t *testing.T) {
	var file bytes.Buffer
	s := NewSink(nil, &file, true)

	s.ActionLocation("Run cases", true)
	s.ActionLocation("Update setup files", false)

	assert.Contains(t, file.String(), "Run cases (in destination)")
	assert.Contains(t, file.String(), "Update setup files (in repository)")
}

func TestSummary(t *testing.T) {
	dir := t.TempDir()
	sum := NewSummary(dir, "report_global.txt")
	sum.AddRow(SummaryRow{
		Study: "HEATING", Case: "FLOW",
		Compiled: "OK", Run: "OK", Time: "12 s", Compare: "done", Diff: "none",
	})
	sum.AddRow(SummaryRow{Study: "HEATING", Case: "RESTART"})

	path, err := sum.Close()
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(content)

	assert.Contains(t, text, "STUDY")
	assert.Contains(t, text, "HEATING")
	assert.Contains(t, text, "12 s")

	// Empty cells render as dashes so the table stays aligned.
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, "RESTART") {
			assert.Contains(t, line, "-")
		}
	}
}

func TestDetailed(t *testing.T) {
	dir := t.TempDir()
	doc := NewDetailed(dir, "report_detailed.md")
	doc.Section("HEATING")
	doc.Figure("POST/profile.png")
	doc.Subsection("HEATING/FLOW")
	doc.DiffTable([]compare.FieldDiff{
		{Name: `pressure\_drop`, Repo: "1e-3", Dest: "2e-4", Threshold: "default"},
	})
	doc.Attachment("run1/listing")

	path, err := doc.Close()
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(content)

	assert.Contains(t, text, "## HEATING")
	assert.Contains(t, text, "### HEATING/FLOW")
	assert.Contains(t, text, "![figure](POST/profile.png)")
	assert.Contains(t, text, `pressure\_drop | 1e-3 | 2e-4 | default`)
	assert.Contains(t, text, "attachment: run1/listing")
}
