package compare

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const diffOutput = `Comparing checkpoints
"Velocity"; Faces : 1200; Type : r8
  Diff; Max : 1.23e-05; Mean : 4.6e-07
"pressure_drop"; Cells : 800; Type : r4
  Diff; Max : 3.1e-04; Mean : 9.9e-06
"FaceFamily"; Faces : 1200; Type : i4
  Diff; Max : 2; Mean : 1
`

func TestParseOutput(t *testing.T) {
	res := ParseOutput(diffOutput, DefaultThreshold)

	assert.True(t, res.MeshSizesEqual)
	require.Len(t, res.Diffs, 2, "integer-typed sections must be skipped")

	assert.Equal(t, "Velocity", res.Diffs[0].Name)
	assert.Equal(t, "1.23e-05", res.Diffs[0].Repo)
	assert.Equal(t, "4.6e-07", res.Diffs[0].Dest)
	assert.Equal(t, DefaultThreshold, res.Diffs[0].Threshold)

	assert.Equal(t, `pressure\_drop`, res.Diffs[1].Name, "underscores are escaped for report embedding")
}

func TestParseOutput_Idempotent(t *testing.T) {
	first := ParseOutput(diffOutput, "1e-8")
	second := ParseOutput(diffOutput, "1e-8")
	assert.Equal(t, first, second)
}

func TestParseOutput_MeshSizeMismatch(t *testing.T) {
	text := `"Velocity"; Faces : 1200; Type : r8
  Diff; Max : 1.23e-05; Mean : 4.6e-07
"Pressure"; Cells : 800; Type : r8
  Taille avant : 800; Taille apres : 900
"Energy"; Cells : 800; Type : r8
  Diff; Max : 5e-02; Mean : 1e-03
`
	res := ParseOutput(text, DefaultThreshold)

	assert.False(t, res.MeshSizesEqual)
	// The mismatch ends parsing; fields seen before it are kept, the rest
	// is not reached.
	require.Len(t, res.Diffs, 1)
	assert.Equal(t, "Velocity", res.Diffs[0].Name)
}

func TestParseOutput_NoDifferences(t *testing.T) {
	res := ParseOutput("Comparing checkpoints\nno differences found\n", DefaultThreshold)
	assert.True(t, res.MeshSizesEqual)
	assert.Empty(t, res.Diffs)
}

func TestInvocation(t *testing.T) {
	tool := NewTool("cs_io_dump", "--diff")

	argv, effective := tool.Invocation("/repo/main", "/dest/main.csc", "", "")
	assert.Equal(t, []string{"cs_io_dump", "--diff", "/repo/main", "/dest/main.csc"}, argv)
	assert.Equal(t, DefaultThreshold, effective)

	argv, effective = tool.Invocation("/repo/main", "/dest/main.csc", "1e-6", "")
	assert.Contains(t, argv, "--threshold")
	assert.Equal(t, "1e-6", effective)

	// A threshold inside the extra arguments wins for reporting.
	_, effective = tool.Invocation("/repo/main", "/dest/main.csc", "1e-6", "--section velocity --threshold 1e-3")
	assert.Equal(t, "1e-3", effective)
}
