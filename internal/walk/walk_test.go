package walk

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmgilman/go/fs/billy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

// TestTree_NamesAndOrder checks entry names and depth-first lexical order
func TestTree_NamesAndOrder(t *testing.T) {
	root := filepath.Join(t.TempDir(), "docs")
	writeTree(t, root, map[string]string{
		"a.txt":     "hello",
		"sub/b.txt": "abc",
		"z.txt":     "z",
	})

	var names []string
	err := Tree(billy.NewLocal(), root, func(e Entry) error {
		names = append(names, e.Name)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"docs", "docs/a.txt", "docs/sub", "docs/sub/b.txt", "docs/z.txt"}, names)
}

// TestTree_SingleFile visits a file root once under its base name
func TestTree_SingleFile(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"note.txt": "n"})

	var entries []Entry
	err := Tree(billy.NewLocal(), filepath.Join(dir, "note.txt"), func(e Entry) error {
		entries = append(entries, e)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "note.txt", entries[0].Name)
	assert.True(t, entries[0].IsFile())
}

// TestTree_SkipDir prunes a subtree
func TestTree_SkipDir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "r")
	writeTree(t, root, map[string]string{
		"keep/a.txt": "a",
		"skip/b.txt": "b",
	})

	var names []string
	err := Tree(billy.NewLocal(), root, func(e Entry) error {
		if e.IsDir() && e.Info.Name() == "skip" {
			return fs.SkipDir
		}
		names = append(names, e.Name)
		return nil
	})
	require.NoError(t, err)
	assert.NotContains(t, names, "r/skip/b.txt")
	assert.Contains(t, names, "r/keep/a.txt")
}

// TestTree_DeepNesting walks a tree deeper than typical recursion comfort
func TestTree_DeepNesting(t *testing.T) {
	fsys := billy.NewMemory()
	parts := make([]string, 200)
	for i := range parts {
		parts[i] = "d"
	}
	deep := "/" + strings.Join(parts, "/")
	require.NoError(t, fsys.MkdirAll(deep, 0o755))
	require.NoError(t, fsys.WriteFile(deep+"/leaf.txt", []byte("leaf"), 0o644))

	count, err := CountFiles(fsys, "/d")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// TestFiles_ExcludesDirectories ensures only regular files are listed
func TestFiles_ExcludesDirectories(t *testing.T) {
	root := filepath.Join(t.TempDir(), "tree")
	writeTree(t, root, map[string]string{
		"one.txt":       "1",
		"a/two.txt":     "2",
		"a/b/three.txt": "3",
	})
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))

	files, err := Files(billy.NewLocal(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a", "b", "three.txt"),
		filepath.Join(root, "a", "two.txt"),
		filepath.Join(root, "one.txt"),
	}, files)
}

// TestCountFiles_EmptyDirectory is zero, not an error
func TestCountFiles_EmptyDirectory(t *testing.T) {
	count, err := CountFiles(billy.NewLocal(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

// TestTree_MissingRoot surfaces the stat failure
func TestTree_MissingRoot(t *testing.T) {
	err := Tree(billy.NewLocal(), filepath.Join(t.TempDir(), "missing"), func(Entry) error { return nil })
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
