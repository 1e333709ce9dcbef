package study

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cfdops/studymanager/internal/compare"
	"github.com/cfdops/studymanager/internal/model"
	"github.com/cfdops/studymanager/internal/solver"
)

// Study groups the cases of one repository study directory together with
// the post-processing scripts and report material attached to it.
type Study struct {
	Label   string
	Cases   []*Case
	PostPro []model.PostPro
	Figures []string // produced by the plotting step, consumed by reports

	repo string
	dest string
}

// Filter narrows the set of cases a run operates on.
type Filter struct {
	WithTags    []string
	WithoutTags []string
	NProcs      int // >0 overrides the per-case process count
}

// NewStudy builds a study from its configuration node. Cases whose status
// flag is off are dropped, then the tag filter is applied: a case must
// carry every with-tag and no without-tag. The repository study directory
// must exist.
func NewStudy(launcher *solver.Launcher, diff *compare.Tool, node *model.Study,
	repoRoot, destRoot string, filter Filter) (*Study, error) {

	repo := filepath.Join(repoRoot, node.Label)
	if info, err := os.Stat(repo); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("study %s: no directory %s in the repository", node.Label, repo)
	}

	s := &Study{
		Label:   node.Label,
		PostPro: node.PostPro,
		repo:    repo,
		dest:    filepath.Join(destRoot, node.Label),
	}

	for i := range node.Cases {
		cn := &node.Cases[i]
		if !cn.Status.OrDefault(model.FlagOn).IsOn() {
			continue
		}
		if len(filter.WithTags) > 0 && !cn.HasTags(filter.WithTags) {
			continue
		}
		if len(filter.WithoutTags) > 0 && cn.HasAnyTag(filter.WithoutTags) {
			continue
		}

		c, err := NewCase(launcher, diff, node.Label, cn, repo, s.dest)
		if err != nil {
			return nil, err
		}
		if filter.NProcs > 0 {
			c.SetNProcs(filter.NProcs)
		}
		s.Cases = append(s.Cases, c)
	}
	return s, nil
}

// RepoDir returns the repository study directory.
func (s *Study) RepoDir() string { return s.repo }

// DestDir returns the destination study directory.
func (s *Study) DestDir() string { return s.dest }

// EnabledCases returns the cases still participating in the run.
func (s *Study) EnabledCases() []*Case {
	var out []*Case
	for _, c := range s.Cases {
		if !c.Disabled {
			out = append(out, c)
		}
	}
	return out
}

// RunDirectories lists the result directories of the cases whose run
// succeeded, for consumption by the post-processing scripts.
func (s *Study) RunDirectories() []string {
	var dirs []string
	for _, c := range s.Cases {
		if c.Disabled || c.IsRun == model.StateKO || c.RunDir == "" {
			continue
		}
		dirs = append(dirs, c.RunDir)
	}
	return dirs
}

// NeedsDetailedReport reports whether anything in the study produces
// detailed report content: figures, comparison tables or input attachments.
func (s *Study) NeedsDetailedReport() bool {
	if len(s.Figures) > 0 {
		return true
	}
	for _, c := range s.Cases {
		if c.Disabled {
			continue
		}
		if len(c.Diffs) > 0 || !c.MeshSizesEqual {
			return true
		}
		if len(c.Node.Inputs) > 0 {
			return true
		}
	}
	return false
}
