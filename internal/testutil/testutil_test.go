package testutil

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgilman/go/archive/internal/codec"
)

// TestWriteReadTree tests that a written tree reads back identically
func TestWriteReadTree(t *testing.T) {
	root := t.TempDir()
	WriteTree(t, root, NestedTree)
	assert.Equal(t, NestedTree, ReadTree(t, root))
}

// TestGenerateDirectory tests file counts for flat and nested trees
func TestGenerateDirectory(t *testing.T) {
	flat, err := GenerateDirectory(filepath.Join(t.TempDir(), "flat"), 1, 4, 64)
	require.NoError(t, err)
	assert.Equal(t, 4, flat)

	root := filepath.Join(t.TempDir(), "nested")
	nested, err := GenerateDirectory(root, 3, 2, 64)
	require.NoError(t, err)
	assert.Equal(t, 2*(1+3+9), nested)
	assert.Len(t, ReadTree(t, root), nested)
}

func TestTextContent(t *testing.T) {
	assert.Len(t, TextContent(0), 0)
	assert.Len(t, TextContent(1000), 1000)
}

// TestWriteTar tests that entries are written verbatim for every codec
func TestWriteTar(t *testing.T) {
	for _, algo := range []codec.Algorithm{codec.None, codec.Gzip, codec.Bzip2, codec.Xz} {
		t.Run(algo.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "malicious.tar")
			require.NoError(t, WriteTar(path, algo, PathTraversalEntries()))

			data, err := os.ReadFile(path)
			require.NoError(t, err)
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

			require.Len(t, names, len(PathTraversalEntries()))
			assert.Equal(t, "../../../etc/passwd", names[0])
		})
	}
}

// TestWriteZip tests that zip entries keep their crafted names
func TestWriteZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "escape.zip")
	require.NoError(t, WriteZip(path, []Entry{EscapingEntry(), {Name: "ok.txt", Content: "ok"}}))

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	require.Len(t, zr.File, 2)
	assert.Equal(t, "../escaped.txt", zr.File[0].Name)
}

func TestEntryBuilders(t *testing.T) {
	assert.Len(t, FileCountEntries(25), 25)
	assert.Len(t, LargeFileEntry(4096).Content, 4096)
	assert.Len(t, SpecialEntries(), 4)
}
