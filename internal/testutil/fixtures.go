// Package testutil builds directory trees and archives for tests, including
// archives crafted to exercise extraction safety checks.
package testutil

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// DocsTree is the two-file tree used throughout the scenarios: a.txt is five
// bytes and sub/b.txt is three.
var DocsTree = map[string]string{
	"a.txt":     "hello",
	"sub/b.txt": "abc",
}

// NestedTree mixes root files, nested directories and an empty file.
var NestedTree = map[string]string{
	"root.txt":              "Root file content",
	"dir1/file1.txt":        "File 1 content",
	"dir1/subdir/file2.txt": "File 2 content",
	"dir2/empty.txt":        "",
}

// WriteTree creates files below root from a map of slash-separated relative
// names to contents.
func WriteTree(tb testing.TB, root string, files map[string]string) {
	tb.Helper()
	for name, content := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			tb.Fatalf("failed to create directory for %s: %v", name, err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			tb.Fatalf("failed to write %s: %v", name, err)
		}
	}
}

// ReadTree returns every regular file below root keyed by its slash-separated
// path relative to root.
func ReadTree(tb testing.TB, root string) map[string]string {
	tb.Helper()
	files := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		tb.Fatalf("failed to read tree %s: %v", root, err)
	}
	return files
}

// GenerateDirectory creates a tree of text files below baseDir. Depth 1 is a
// flat directory; each extra level adds three subdirectories per directory.
// It returns the number of files written.
func GenerateDirectory(baseDir string, depth, filesPerDir, fileSize int) (int, error) {
	type level struct {
		dir   string
		depth int
	}

	count := 0
	pending := []level{{dir: baseDir, depth: 1}}
	for len(pending) > 0 {
		cur := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		if err := os.MkdirAll(cur.dir, 0o755); err != nil {
			return count, fmt.Errorf("failed to create directory %s: %w", cur.dir, err)
		}
		for i := 0; i < filesPerDir; i++ {
			name := filepath.Join(cur.dir, fmt.Sprintf("file-%03d.txt", i))
			if err := os.WriteFile(name, TextContent(fileSize), 0o644); err != nil {
				return count, fmt.Errorf("failed to write file %s: %w", name, err)
			}
			count++
		}
		if cur.depth < depth {
			for _, sub := range []string{"subdir-a", "subdir-b", "subdir-c"} {
				pending = append(pending, level{dir: filepath.Join(cur.dir, sub), depth: cur.depth + 1})
			}
		}
	}
	return count, nil
}

// TextContent returns size bytes of compressible text.
func TextContent(size int) []byte {
	words := []string{
		"lorem", "ipsum", "dolor", "sit", "amet", "consectetur",
		"adipiscing", "elit", "sed", "do", "eiusmod", "tempor",
	}

	var b strings.Builder
	for b.Len() < size {
		for _, word := range words {
			b.WriteString(word)
			b.WriteString(" ")
		}
		b.WriteString("\n")
	}
	return []byte(b.String()[:size])
}
