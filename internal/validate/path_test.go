package validate

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

// TestValidateName_SafeNames tests that legitimate entry names pass validation
func TestValidateName_SafeNames(t *testing.T) {
	v := NewEntryNameValidator()

	safe := []string{
		"file.txt",
		"docs/a.txt",
		"docs/sub/b.txt",
		"docs/sub/",
		".hidden",
		"dir/.config/settings.json",
		"file..with..dots.txt",
		"résumé.pdf",
		"archive.tar.gz",
		"./relative.txt",
	}

	for _, name := range safe {
		t.Run(name, func(t *testing.T) {
			if err := v.ValidateName(name); err != nil {
				t.Errorf("Expected %q to be safe, got %v", name, err)
			}
		})
	}
}

// TestValidateName_UnsafeNames tests that escaping names are rejected
func TestValidateName_UnsafeNames(t *testing.T) {
	v := NewEntryNameValidator()

	unsafe := []string{
		"",
		"   ",
		"../evil.txt",
		"docs/../../evil.txt",
		"..\\evil.txt",
		"docs\\..\\..\\evil.txt",
		"/etc/passwd",
		"\\\\server\\share\\file",
		"C:\\Windows\\evil.dll",
		"c:/evil",
		"bad\x00name",
		"bad\nname",
	}

	for _, name := range unsafe {
		t.Run(strings.ReplaceAll(name, "/", "_"), func(t *testing.T) {
			err := v.ValidateName(name)
			if err == nil {
				t.Fatalf("Expected %q to be rejected", name)
			}
			if !errors.Is(err, ErrUnsafePath) {
				t.Errorf("Expected ErrUnsafePath, got %v", err)
			}
		})
	}
}

// TestJoin_StaysInsideRoot tests that joined paths are absolute and rooted
func TestJoin_StaysInsideRoot(t *testing.T) {
	v := NewEntryNameValidator()
	root := t.TempDir()

	got, err := v.Join(root, "docs/sub/b.txt")
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	want := filepath.Join(root, "docs", "sub", "b.txt")
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	if _, err := v.Join(root, "../outside.txt"); !errors.Is(err, ErrUnsafePath) {
		t.Errorf("Expected traversal to be rejected, got %v", err)
	}
}

// TestJoin_AllowUnsafe tests that the opt-out keeps the unguarded behaviour
func TestJoin_AllowUnsafe(t *testing.T) {
	v := &EntryNameValidator{AllowUnsafe: true}
	root := t.TempDir()

	got, err := v.Join(root, "../outside.txt")
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	want := filepath.Join(filepath.Dir(root), "outside.txt")
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}
