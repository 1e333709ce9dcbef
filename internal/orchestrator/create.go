package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/cfdops/studymanager/internal/fsutil"
	"github.com/cfdops/studymanager/internal/study"
)

// meshExtensions lists the mesh formats linked (not copied) into the
// destination MESH directory, with or without gzip compression.
var meshExtensions = []string{"unv", "med", "ccm", "cgns", "neu", "msh", "des"}

func isMeshFile(name string) bool {
	name = strings.TrimSuffix(name, ".gz")
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	for _, e := range meshExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// updateSetup normalizes the setup files of every case in the repository
// through the solver's update tooling. Runs before any destination work.
func (s *Studies) updateSetup(ctx context.Context) {
	s.sink.ActionLocation("Update setup files", false)
	for _, st := range s.studies {
		s.sink.Reportf("  o Study: %s", st.Label)
		for _, c := range st.EnabledCases() {
			c.Update(ctx, s.sink, s.logFile)
		}
	}
	s.sink.Blank()
}

// createStudies materializes the destination tree: one directory per
// study with meshes linked and post-processing material copied, then one
// case directory per case.
func (s *Studies) createStudies(ctx context.Context) error {
	s.sink.ActionLocation("Create studies", true)
	for _, st := range s.studies {
		if err := s.createStudy(ctx, st); err != nil {
			return err
		}
	}
	s.sink.Blank()
	return nil
}

func (s *Studies) createStudy(ctx context.Context, st *study.Study) error {
	s.sink.Reportf("  o Study: %s", st.Label)

	if _, err := os.Stat(st.DestDir()); os.IsNotExist(err) {
		if err := os.Mkdir(st.DestDir(), 0755); err != nil {
			return err
		}
	}

	if err := s.stageMeshes(st); err != nil {
		return err
	}
	s.stagePost(st)

	if _, err := os.Stat(filepath.Join(st.RepoDir(), "SCRIPTS")); err == nil {
		s.sink.Warnf("    Warning: study %s carries a legacy SCRIPTS directory, which is ignored", st.Label)
	}

	for _, c := range st.EnabledCases() {
		if err := s.createCase(ctx, st, c); err != nil {
			return err
		}
	}
	return nil
}

// stageMeshes links the repository meshes into the destination MESH
// directory. Mesh files become symlinks so large meshes are not
// duplicated; everything else is copied.
func (s *Studies) stageMeshes(st *study.Study) error {
	repoMesh := filepath.Join(st.RepoDir(), "MESH")
	entries, err := os.ReadDir(repoMesh)
	if err != nil {
		return nil // no MESH directory in this study
	}

	destMesh := filepath.Join(st.DestDir(), "MESH")
	if err := os.MkdirAll(destMesh, 0755); err != nil {
		return err
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		src := filepath.Join(repoMesh, e.Name())
		dst := filepath.Join(destMesh, e.Name())
		if _, err := os.Lstat(dst); err == nil {
			continue
		}
		if isMeshFile(e.Name()) {
			if err := fsutil.SymlinkOrCopy(src, dst); err != nil {
				return err
			}
		} else if err := fsutil.CopyFile(src, dst); err != nil {
			return err
		}
	}
	return nil
}

// stagePost replaces the destination POST directory with a fresh copy from
// the repository.
func (s *Studies) stagePost(st *study.Study) {
	repoPost := filepath.Join(st.RepoDir(), "POST")
	if info, err := os.Stat(repoPost); err != nil || !info.IsDir() {
		return
	}
	destPost := filepath.Join(st.DestDir(), "POST")
	if err := os.RemoveAll(destPost); err != nil {
		s.sink.Warnf("    Warning: cannot refresh %s: %v", destPost, err)
		return
	}
	if err := fsutil.CopyTree(repoPost, destPost); err != nil {
		s.sink.Warnf("    Warning: cannot refresh %s: %v", destPost, err)
	}
}

// createCase creates one destination case, or reconciles a pre-existing
// one: results are purged only on explicit request, and DATA and SRC are
// refreshed from the repository unless told otherwise.
func (s *Studies) createCase(ctx context.Context, st *study.Study, c *study.Case) error {
	caseDir := filepath.Join(st.DestDir(), c.Label)

	if info, err := os.Stat(caseDir); err == nil && info.IsDir() {
		if s.opts.RemoveExisting {
			resu := filepath.Join(caseDir, c.Resu())
			if err := os.RemoveAll(resu); err != nil {
				return err
			}
			if err := os.MkdirAll(resu, 0755); err != nil {
				return err
			}
			s.sink.Reportf("      * purge results of case: %s", c.Label)
		} else {
			s.sink.Warnf("      * case %s exists already, its results are kept (use --rm to purge)", c.Label)
		}
		if !s.opts.DontOverwrite {
			c.OverwriteDirectories(s.sink, []string{"DATA", "SRC"})
		}
		return nil
	}

	lines, err := c.Create(ctx, s.logFile)
	for _, l := range lines {
		s.sink.Reportf("%s", l)
	}
	return err
}
