package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFile_PreservesPermissions(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "script.sh")
	require.NoError(t, os.WriteFile(src, []byte("#!/bin/sh\n"), 0755))

	dst := filepath.Join(dir, "copy.sh")
	require.NoError(t, CopyFile(src, dst))

	content, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\n", string(content))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
}

func TestCopyTree(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "DATA", "REFERENCE"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "DATA", "setup.xml"), []byte("<x/>"), 0644))
	require.NoError(t, os.Symlink("setup.xml", filepath.Join(src, "DATA", "link.xml")))

	dst := filepath.Join(t.TempDir(), "copy")
	require.NoError(t, CopyTree(src, dst))

	content, err := os.ReadFile(filepath.Join(dst, "DATA", "setup.xml"))
	require.NoError(t, err)
	assert.Equal(t, "<x/>", string(content))

	info, err := os.Stat(filepath.Join(dst, "DATA", "REFERENCE"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	target, err := os.Readlink(filepath.Join(dst, "DATA", "link.xml"))
	require.NoError(t, err)
	assert.Equal(t, "setup.xml", target)
}

func TestFindFile(t *testing.T) {
	root := t.TempDir()
	deep := filepath.Join(root, "MESH", "sub")
	require.NoError(t, os.MkdirAll(deep, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(deep, "prepro.py"), nil, 0644))

	assert.Equal(t, deep, FindFile(root, "prepro.py"))
	assert.Equal(t, "", FindFile(root, "absent.py"))
}

func TestMakeExecutable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.py")
	require.NoError(t, os.WriteFile(path, []byte("print()\n"), 0644))

	require.NoError(t, MakeExecutable(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
}
