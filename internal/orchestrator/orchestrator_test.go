package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfdops/studymanager/internal/model"
	"github.com/cfdops/studymanager/internal/yamlio"
)

// fakeSolver materializes the directories the real solver would: create
// builds a case skeleton, run produces a result directory with a summary
// marker, run --suggest-id hands out sequential ids.
const fakeSolver = `#!/bin/sh
case "$1" in
run)
    if [ "$2" = "--suggest-id" ]; then
        n=$(cat .suggest_counter 2>/dev/null || echo 0)
        n=$((n+1))
        echo $n > .suggest_counter
        echo "run$n"
    else
        id=${2#--id=}
        mkdir -p "RESU/$id"
        : > "RESU/$id/summary"
    fi
    ;;
create)
    mkdir -p "$3/DATA" "$3/SRC" "$3/RESU"
    ;;
esac
exit 0
`

type fixture struct {
	root    string
	repo    string
	dest    string
	smgr    string
	solver  string
	console io.Writer
}

// newFixture builds a repository with one study and the given cases, plus
// an smgr file referencing them.
func newFixture(t *testing.T, study string, cases []model.Case) *fixture {
	t.Helper()
	root := t.TempDir()

	f := &fixture{
		root:    root,
		repo:    filepath.Join(root, "repo"),
		dest:    filepath.Join(root, "dest"),
		smgr:    filepath.Join(root, "smgr.yaml"),
		solver:  filepath.Join(root, "fake_solver"),
		console: io.Discard,
	}
	require.NoError(t, os.WriteFile(f.solver, []byte(fakeSolver), 0755))

	studyDir := filepath.Join(f.repo, study)
	for _, c := range cases {
		require.NoError(t, os.MkdirAll(filepath.Join(studyDir, c.Label, "DATA"), 0755))
	}

	mesh := filepath.Join(studyDir, "MESH")
	require.NoError(t, os.MkdirAll(mesh, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(mesh, "pipe.med"), []byte("mesh"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(mesh, "notes.txt"), []byte("notes"), 0644))

	post := filepath.Join(studyDir, "POST")
	require.NoError(t, os.MkdirAll(post, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(post, "profiles.sh"), []byte("#!/bin/sh\nexit 0\n"), 0755))

	cfg := &model.Config{
		Repository:  f.repo,
		Destination: f.dest,
		Studies:     []model.Study{{Label: study, Status: model.FlagOn, Cases: cases}},
	}
	writeConfig(t, f.smgr, cfg)
	return f
}

func writeConfig(t *testing.T, path string, cfg *model.Config) {
	t.Helper()
	require.NoError(t, yamlio.AtomicWrite(path, cfg))
}

func (f *fixture) options() Options {
	return Options{
		File:      f.smgr,
		RunCases:  true,
		Report:    true,
		SolverExe: f.solver,
		DiffArgv:  []string{"true"},
	}
}

func TestRun_FullBatch(t *testing.T) {
	f := newFixture(t, "HEATING", []model.Case{
		{Label: "FLOW", Status: model.FlagOn},
	})

	s, err := New(f.options(), f.console, nil)
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))
	s.Close()

	caseDir := filepath.Join(f.dest, "HEATING", "FLOW")
	assert.DirExists(t, filepath.Join(caseDir, "DATA"))
	assert.FileExists(t, filepath.Join(caseDir, "RESU", "run1", "summary"))

	// Meshes are linked, everything else copied.
	info, err := os.Lstat(filepath.Join(f.dest, "HEATING", "MESH", "pipe.med"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSymlink)
	info, err = os.Lstat(filepath.Join(f.dest, "HEATING", "MESH", "notes.txt"))
	require.NoError(t, err)
	assert.True(t, info.Mode().IsRegular())

	assert.FileExists(t, filepath.Join(f.dest, "HEATING", "POST", "profiles.sh"))
	assert.FileExists(t, filepath.Join(f.dest, SummaryReportName))
	assert.FileExists(t, filepath.Join(f.dest, LogFileName))

	// The run id and the flipped compute flag are persisted.
	cfg, err := model.Load(f.smgr)
	require.NoError(t, err)
	cs := cfg.Studies[0].Cases[0]
	assert.Equal(t, "run1", cs.RunID)
	assert.Equal(t, model.FlagOff, cs.Compute)

	// The destination lock is gone after Close.
	assert.NoFileExists(t, filepath.Join(f.dest, LockFileName))
}

func TestRun_SecondInvocationReusesResults(t *testing.T) {
	f := newFixture(t, "HEATING", []model.Case{
		{Label: "FLOW", Status: model.FlagOn},
	})

	s, err := New(f.options(), f.console, nil)
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))
	s.Close()

	s, err = New(f.options(), f.console, nil)
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))
	s.Close()

	// The persisted run id short-circuits the second run: no run2.
	assert.NoDirExists(t, filepath.Join(f.dest, "HEATING", "FLOW", "RESU", "run2"))
}

func TestRun_DependentRunsAfterDependency(t *testing.T) {
	f := newFixture(t, "HEATING", []model.Case{
		{Label: "BASE", Status: model.FlagOn},
		{Label: "RESTART", Status: model.FlagOn, Depends: "HEATING/BASE/"},
	})

	s, err := New(f.options(), f.console, nil)
	require.NoError(t, err)

	g := s.Graph()
	require.Equal(t, 2, g.Len())
	assert.Equal(t, []int{0, 1}, g.Levels())
	edges := g.Dependencies()
	require.Len(t, edges, 1)
	assert.Equal(t, "HEATING/RESTART/", edges[0].Dependent.Key())
	assert.Equal(t, "HEATING/BASE/", edges[0].Dependency.Key())

	require.NoError(t, s.Run(context.Background()))
	s.Close()

	assert.FileExists(t, filepath.Join(f.dest, "HEATING", "BASE", "RESU", "run1", "summary"))
	assert.FileExists(t, filepath.Join(f.dest, "HEATING", "RESTART", "RESU", "run1", "summary"))
}

func TestRun_UnresolvedDependencyFailsEarly(t *testing.T) {
	f := newFixture(t, "HEATING", []model.Case{
		{Label: "RESTART", Status: model.FlagOn, Depends: "HEATING/ABSENT/"},
	})

	_, err := New(f.options(), f.console, nil)
	assert.ErrorContains(t, err, "HEATING/ABSENT/")
}

func TestRun_TagSelection(t *testing.T) {
	f := newFixture(t, "HEATING", []model.Case{
		{Label: "FAST", Status: model.FlagOn, Tags: []string{"smoke"}},
		{Label: "SLOW", Status: model.FlagOn, Tags: []string{"nightly"}},
	})

	opts := f.options()
	opts.WithTags = []string{"smoke"}

	s, err := New(opts, f.console, nil)
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))
	s.Close()

	assert.DirExists(t, filepath.Join(f.dest, "HEATING", "FAST", "RESU", "run1"))
	assert.NoDirExists(t, filepath.Join(f.dest, "HEATING", "SLOW"))
}

func TestRun_ExistingResultsKeptWithoutRm(t *testing.T) {
	f := newFixture(t, "HEATING", []model.Case{
		{Label: "FLOW", Status: model.FlagOn},
	})

	leftover := filepath.Join(f.dest, "HEATING", "FLOW", "RESU", "old")
	require.NoError(t, os.MkdirAll(leftover, 0755))

	s, err := New(f.options(), f.console, nil)
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))
	s.Close()

	assert.DirExists(t, leftover, "existing results survive without --rm")

	// With the purge flag the stale results go away.
	require.NoError(t, os.MkdirAll(filepath.Join(f.dest, "HEATING", "FLOW", "RESU", "stale"), 0755))
	cfg, err := model.Load(f.smgr)
	require.NoError(t, err)
	cfg.Studies[0].Cases[0].Compute = model.FlagOn
	cfg.Studies[0].Cases[0].RunID = ""
	writeConfig(t, f.smgr, cfg)

	opts := f.options()
	opts.RemoveExisting = true
	s, err = New(opts, f.console, nil)
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))
	s.Close()

	assert.NoDirExists(t, filepath.Join(f.dest, "HEATING", "FLOW", "RESU", "stale"))
}

func TestRun_DestinationLocked(t *testing.T) {
	f := newFixture(t, "HEATING", []model.Case{
		{Label: "FLOW", Status: model.FlagOn},
	})

	first, err := New(f.options(), f.console, nil)
	require.NoError(t, err)
	defer first.Close()

	_, err = New(f.options(), f.console, nil)
	assert.Error(t, err, "a second invocation must not share the destination")
}

func TestRun_ParallelLevel(t *testing.T) {
	var cases []model.Case
	for i := 0; i < 4; i++ {
		cases = append(cases, model.Case{Label: fmt.Sprintf("CASE%d", i), Status: model.FlagOn})
	}
	f := newFixture(t, "HEATING", cases)

	opts := f.options()
	opts.Jobs = 4

	s, err := New(opts, f.console, nil)
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))
	s.Close()

	for i := 0; i < 4; i++ {
		assert.FileExists(t, filepath.Join(f.dest, "HEATING",
			fmt.Sprintf("CASE%d", i), "RESU", "run1", "summary"))
	}
}
