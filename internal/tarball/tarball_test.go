package tarball

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/jmgilman/go/fs/billy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgilman/go/archive/internal/codec"
	"github.com/jmgilman/go/archive/internal/sink"
	"github.com/jmgilman/go/archive/internal/validate"
)

var algorithms = []codec.Algorithm{codec.None, codec.Gzip, codec.Bzip2, codec.Xz}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

func entryNames(t *testing.T, data []byte, algo codec.Algorithm) []string {
	t.Helper()
	r, err := codec.WrapReader(bytes.NewReader(data), algo)
	require.NoError(t, err)
	defer r.Close()

	var names []string
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, hdr.Name)
	}
	return names
}

func newSink(root string) *sink.FolderSink {
	return sink.NewFolderSink(root, sink.Config{FS: billy.NewLocal(), Overwrite: true})
}

// TestWrite_DirectoryEntryNames tests entry naming for a directory source
func TestWrite_DirectoryEntryNames(t *testing.T) {
	source := filepath.Join(t.TempDir(), "docs")
	writeTree(t, source, map[string]string{"a.txt": "hello", "sub/b.txt": "abc"})

	var buf bytes.Buffer
	count, err := Write(&buf, billy.NewLocal(), source, CreateOptions{Compression: codec.Gzip})
	require.NoError(t, err)

	assert.Equal(t, 2, count)
	assert.Equal(t, []string{"docs/a.txt", "docs/sub/b.txt"}, entryNames(t, buf.Bytes(), codec.Gzip))
}

// TestWrite_SingleFile tests that a file source yields one entry named by its base name
func TestWrite_SingleFile(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"note.txt": "note"})

	var buf bytes.Buffer
	count, err := Write(&buf, billy.NewLocal(), filepath.Join(dir, "note.txt"), CreateOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, count)
	assert.Equal(t, []string{"note.txt"}, entryNames(t, buf.Bytes(), codec.None))
}

// TestWrite_EmptyDirectory tests that an empty tree produces an entry-less archive
func TestWrite_EmptyDirectory(t *testing.T) {
	source := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.MkdirAll(source, 0o755))

	var buf bytes.Buffer
	count, err := Write(&buf, billy.NewLocal(), source, CreateOptions{})
	require.NoError(t, err)

	assert.Equal(t, 0, count)
	assert.Empty(t, entryNames(t, buf.Bytes(), codec.None))
	assert.ErrorIs(t, Probe(bytes.NewReader(buf.Bytes()), codec.None), ErrEmptyArchive)
}

// TestCreateExtract_RoundTrip tests every codec end to end
func TestCreateExtract_RoundTrip(t *testing.T) {
	files := map[string]string{
		"root.txt":              "Root file content",
		"dir1/file1.txt":        "File 1 content",
		"dir1/subdir/file2.txt": "File 2 content",
		"dir2/empty.txt":        "",
	}

	for _, algo := range algorithms {
		t.Run(algo.String(), func(t *testing.T) {
			tempDir := t.TempDir()
			source := filepath.Join(tempDir, "tree")
			writeTree(t, source, files)
			archivePath := filepath.Join(tempDir, "out.tar")
			target := filepath.Join(tempDir, "restore")

			fsys := billy.NewLocal()
			count, err := Create(fsys, source, archivePath, CreateOptions{Compression: algo, BufferSize: 7})
			require.NoError(t, err)
			assert.Equal(t, len(files), count)

			require.NoError(t, Validate(fsys, archivePath, algo))

			extracted, err := Extract(fsys, archivePath, algo, newSink(target))
			require.NoError(t, err)
			assert.Len(t, extracted, len(files))

			for name, content := range files {
				got, err := os.ReadFile(filepath.Join(target, "tree", filepath.FromSlash(name)))
				require.NoError(t, err)
				assert.Equal(t, content, string(got))
			}

			for _, p := range extracted {
				assert.True(t, filepath.IsAbs(p), p)
			}
		})
	}
}

// TestRead_DirectoryEntriesAndLinks tests handling of non-file entry types
func TestRead_DirectoryEntriesAndLinks(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "emptydir/", Typeflag: tar.TypeDir, Mode: 0o755}))
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "link", Typeflag: tar.TypeSymlink, Linkname: "/etc/passwd"}))
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "data/file.txt", Typeflag: tar.TypeReg, Mode: 0o4755, Size: 4}))
	_, err := tw.Write([]byte("data"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	target := t.TempDir()
	extracted, err := Read(&buf, codec.None, newSink(target))
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(target, "data", "file.txt")}, extracted)
	assert.DirExists(t, filepath.Join(target, "emptydir"))
	_, err = os.Lstat(filepath.Join(target, "link"))
	assert.True(t, os.IsNotExist(err))

	info, err := os.Stat(filepath.Join(target, "data", "file.txt"))
	require.NoError(t, err)
	assert.Zero(t, info.Mode()&os.ModeSetuid)
}

// TestRead_PathTraversal tests that escaping entries abort extraction
func TestRead_PathTraversal(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "../../evil.txt", Typeflag: tar.TypeReg, Mode: 0o644, Size: 1}))
	_, err := tw.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	target := filepath.Join(t.TempDir(), "a", "b")
	_, err = Read(bytes.NewReader(buf.Bytes()), codec.None, newSink(target))
	assert.ErrorIs(t, err, validate.ErrUnsafePath)

	unsafe := sink.NewFolderSink(target, sink.Config{
		FS:        billy.NewLocal(),
		Overwrite: true,
		Names:     &validate.EntryNameValidator{AllowUnsafe: true},
	})
	extracted, err := Read(bytes.NewReader(buf.Bytes()), codec.None, unsafe)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(filepath.Dir(filepath.Dir(target)), "evil.txt")}, extracted)
}

// TestProbe_Failures tests shallow validation of broken input
func TestProbe_Failures(t *testing.T) {
	assert.ErrorIs(t, Probe(bytes.NewReader(nil), codec.None), ErrEmptyArchive)
	assert.Error(t, Probe(bytes.NewReader([]byte("not a tar archive at all")), codec.None))
	assert.Error(t, Probe(bytes.NewReader([]byte("not gzip")), codec.Gzip))
	assert.Error(t, Probe(bytes.NewReader([]byte("not bzip2")), codec.Bzip2))
	assert.Error(t, Probe(bytes.NewReader([]byte("not xz")), codec.Xz))
}

// TestValidate_MissingFile tests that a missing archive is an error
func TestValidate_MissingFile(t *testing.T) {
	err := Validate(billy.NewLocal(), filepath.Join(t.TempDir(), "missing.tar"), codec.None)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// TestCreateExtract_MemoryFS tests the engine against an in-memory filesystem
func TestCreateExtract_MemoryFS(t *testing.T) {
	fsys := billy.NewMemory()
	require.NoError(t, fsys.MkdirAll("/src/docs/sub", 0o755))
	require.NoError(t, fsys.WriteFile("/src/docs/a.txt", []byte("hello"), 0o644))
	require.NoError(t, fsys.WriteFile("/src/docs/sub/b.txt", []byte("abc"), 0o644))

	count, err := Create(fsys, "/src/docs", "/out.tar.xz", CreateOptions{Compression: codec.Xz})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	s := sink.NewFolderSink("/restore", sink.Config{FS: fsys, Overwrite: true})
	extracted, err := Extract(fsys, "/out.tar.xz", codec.Xz, s)
	require.NoError(t, err)

	sort.Strings(extracted)
	assert.Equal(t, []string{"/restore/docs/a.txt", "/restore/docs/sub/b.txt"}, extracted)

	content, err := fsys.ReadFile("/restore/docs/sub/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(content))
}
