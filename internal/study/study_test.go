package study

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfdops/studymanager/internal/compare"
	"github.com/cfdops/studymanager/internal/model"
)

func newStudyFixture(t *testing.T, node *model.Study, filter Filter) (*Study, error) {
	t.Helper()
	f := newCaseFixture(t, node.Label)
	for i := range node.Cases {
		require.NoError(t, os.MkdirAll(filepath.Join(f.repo, node.Cases[i].Label), 0755))
	}
	repoRoot := filepath.Dir(f.repo)
	destRoot := filepath.Dir(f.dest)
	return NewStudy(f.launcher, compare.NewTool("true"), node, repoRoot, destRoot, filter)
}

func TestNewStudy_MissingRepositoryDirectory(t *testing.T) {
	f := newCaseFixture(t, "PRESENT")
	_, err := NewStudy(f.launcher, compare.NewTool("true"),
		&model.Study{Label: "ABSENT"}, filepath.Dir(f.repo), filepath.Dir(f.dest), Filter{})
	assert.ErrorContains(t, err, "ABSENT")
}

func TestNewStudy_StatusAndTagFilter(t *testing.T) {
	node := &model.Study{
		Label: "STUDY",
		Cases: []model.Case{
			{Label: "A", Tags: []string{"nightly"}},
			{Label: "B", Tags: []string{"weekly"}},
			{Label: "C", Status: model.FlagOff},
			{Label: "D"},
		},
	}

	s, err := newStudyFixture(t, node, Filter{WithTags: []string{"nightly"}})
	require.NoError(t, err)
	require.Len(t, s.Cases, 1)
	assert.Equal(t, "A", s.Cases[0].Label)

	s, err = newStudyFixture(t, node, Filter{WithoutTags: []string{"weekly"}})
	require.NoError(t, err)
	require.Len(t, s.Cases, 2)
	assert.Equal(t, "A", s.Cases[0].Label)
	assert.Equal(t, "D", s.Cases[1].Label)
}

func TestNewStudy_WithTagsRequiresAll(t *testing.T) {
	node := &model.Study{
		Label: "STUDY",
		Cases: []model.Case{
			{Label: "A", Tags: []string{"nightly"}},
			{Label: "B", Tags: []string{"nightly", "coupled"}},
		},
	}

	// Every requested tag must be present, not just one of them.
	s, err := newStudyFixture(t, node, Filter{WithTags: []string{"nightly", "coupled"}})
	require.NoError(t, err)
	require.Len(t, s.Cases, 1)
	assert.Equal(t, "B", s.Cases[0].Label)
}

func TestNewStudy_NProcsOverride(t *testing.T) {
	node := &model.Study{
		Label: "STUDY",
		Cases: []model.Case{{Label: "A", NProcs: 2}},
	}

	s, err := newStudyFixture(t, node, Filter{NProcs: 8})
	require.NoError(t, err)
	assert.Equal(t, 8, s.Cases[0].NProcs())

	s, err = newStudyFixture(t, node, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Cases[0].NProcs())
}

func TestRunDirectories(t *testing.T) {
	node := &model.Study{
		Label: "STUDY",
		Cases: []model.Case{{Label: "A"}, {Label: "B"}, {Label: "C"}},
	}
	s, err := newStudyFixture(t, node, Filter{})
	require.NoError(t, err)

	s.Cases[0].RunDir = "/dest/STUDY/A/RESU/run1"
	s.Cases[1].IsRun = model.StateKO
	s.Cases[1].RunDir = "/dest/STUDY/B/RESU/run1"
	s.Cases[2].Disable()

	assert.Equal(t, []string{"/dest/STUDY/A/RESU/run1"}, s.RunDirectories())
}

func TestEnabledCases(t *testing.T) {
	node := &model.Study{
		Label: "STUDY",
		Cases: []model.Case{{Label: "A"}, {Label: "B"}},
	}
	s, err := newStudyFixture(t, node, Filter{})
	require.NoError(t, err)

	s.Cases[1].Disable()
	enabled := s.EnabledCases()
	require.Len(t, enabled, 1)
	assert.Equal(t, "A", enabled[0].Label)
}

func TestNeedsDetailedReport(t *testing.T) {
	node := &model.Study{
		Label: "STUDY",
		Cases: []model.Case{{Label: "A"}},
	}

	s, err := newStudyFixture(t, node, Filter{})
	require.NoError(t, err)
	assert.False(t, s.NeedsDetailedReport())

	s.Cases[0].Diffs = []compare.FieldDiff{{Name: "Velocity"}}
	assert.True(t, s.NeedsDetailedReport())

	s, err = newStudyFixture(t, node, Filter{})
	require.NoError(t, err)
	s.Figures = []string{"profile.png"}
	assert.True(t, s.NeedsDetailedReport())

	s, err = newStudyFixture(t, node, Filter{})
	require.NoError(t, err)
	s.Cases[0].MeshSizesEqual = false
	assert.True(t, s.NeedsDetailedReport())
}
