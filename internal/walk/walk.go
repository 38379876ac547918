// Package walk provides the depth-first traversal shared by archive creation
// and extraction. It uses an explicit stack instead of recursion so deep trees
// cannot exhaust the goroutine stack, and it builds the forward-slash entry
// names that archives store.
package walk

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"

	"github.com/jmgilman/go/fs/core"
)

// Entry is a single node reached during a walk.
type Entry struct {
	// Path is the filesystem path of the node.
	Path string

	// Name is the archive entry name: the root's base name followed by every
	// directory below it, joined by "/". It never starts with a separator.
	Name string

	// Info describes the node.
	Info fs.FileInfo
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool {
	return e.Info.IsDir()
}

// IsFile reports whether the entry is a regular file.
func (e Entry) IsFile() bool {
	return e.Info.Mode().IsRegular()
}

// VisitFunc is called once per entry in pre-order. Returning fs.SkipDir from a
// directory skips its children; fs.SkipAll stops the walk without error.
type VisitFunc func(e Entry) error

// Tree visits root and everything below it depth-first. Siblings are visited in
// lexical order. A file root produces exactly one entry named by its base name.
func Tree(fsys core.ReadFS, root string, fn VisitFunc) error {
	info, err := fsys.Stat(root)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", root, err)
	}

	stack := []Entry{{Path: root, Name: info.Name(), Info: info}}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if err := fn(e); err != nil {
			if errors.Is(err, fs.SkipDir) && e.IsDir() {
				continue
			}
			if errors.Is(err, fs.SkipAll) {
				return nil
			}
			return err
		}

		if !e.IsDir() {
			continue
		}

		children, err := fsys.ReadDir(e.Path)
		if err != nil {
			return fmt.Errorf("failed to read directory %s: %w", e.Path, err)
		}
		sort.Slice(children, func(i, j int) bool { return children[i].Name() < children[j].Name() })

		// Push in reverse so the lexically first child is popped first.
		for i := len(children) - 1; i >= 0; i-- {
			child := children[i]
			childInfo, err := child.Info()
			if err != nil {
				return fmt.Errorf("failed to get file info for %s: %w", child.Name(), err)
			}
			stack = append(stack, Entry{
				Path: filepath.Join(e.Path, child.Name()),
				Name: path.Join(e.Name, child.Name()),
				Info: childInfo,
			})
		}
	}
	return nil
}

// Files returns the path of every regular file at or below root in the order
// Tree visits them. Directories are traversed but not reported.
func Files(fsys core.ReadFS, root string) ([]string, error) {
	var files []string
	err := Tree(fsys, root, func(e Entry) error {
		if e.IsFile() {
			files = append(files, e.Path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// CountFiles returns the number of regular files at or below root.
func CountFiles(fsys core.ReadFS, root string) (int, error) {
	files, err := Files(fsys, root)
	if err != nil {
		return 0, err
	}
	return len(files), nil
}
