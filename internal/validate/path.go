// Package validate checks archive entry names before they are turned into
// filesystem paths during extraction.
package validate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsafePath is wrapped by every rejection from this package.
var ErrUnsafePath = errors.New("unsafe entry path")

// EntryNameValidator rejects entry names that could place extracted content
// outside the extraction root.
type EntryNameValidator struct {
	// AllowUnsafe disables all checks. Entry names are joined onto the root
	// verbatim, which lets a crafted archive write outside it.
	AllowUnsafe bool
}

// NewEntryNameValidator creates a validator with all checks enabled.
func NewEntryNameValidator() *EntryNameValidator {
	return &EntryNameValidator{}
}

// ValidateName checks a single entry name as stored in the archive.
func (v *EntryNameValidator) ValidateName(name string) error {
	if v.AllowUnsafe {
		return nil
	}

	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty name", ErrUnsafePath)
	}

	if isAbsolutePath(name) {
		return fmt.Errorf("%w: absolute path not allowed: %s", ErrUnsafePath, name)
	}

	if containsTraversal(name) {
		return fmt.Errorf("%w: path traversal detected: %s", ErrUnsafePath, name)
	}

	for _, r := range name {
		if r == 0 || (r < 32 && r != '\t') || r == 127 {
			return fmt.Errorf("%w: control character in path: %q (U+%04X)", ErrUnsafePath, name, r)
		}
	}

	return nil
}

// Join validates name and returns the absolute destination path for it under
// root. The result is guaranteed to stay within root unless AllowUnsafe is set.
func (v *EntryNameValidator) Join(root, name string) (string, error) {
	if err := v.ValidateName(name); err != nil {
		return "", err
	}

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root %s: %w", root, err)
	}

	target := filepath.Join(rootAbs, filepath.FromSlash(name))
	if v.AllowUnsafe {
		return target, nil
	}

	if target != rootAbs && !strings.HasPrefix(target, rootAbs+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: path escapes target directory: %s", ErrUnsafePath, name)
	}
	return target, nil
}

// containsTraversal reports whether any segment of the name, split on either
// separator, is "..".
func containsTraversal(name string) bool {
	if !strings.Contains(name, "..") {
		return false
	}
	for _, part := range strings.FieldsFunc(name, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return true
		}
	}
	return false
}

// isAbsolutePath checks for absolute paths on all platforms including Windows
// drive letters and UNC shares.
func isAbsolutePath(name string) bool {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, "\\") {
		return true
	}

	if len(name) >= 2 && name[1] == ':' {
		drive := name[0]
		if (drive >= 'A' && drive <= 'Z') || (drive >= 'a' && drive <= 'z') {
			return true
		}
	}

	return false
}
