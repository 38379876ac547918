// Package sink materialises archive entries on a filesystem. Both container
// engines decode entries their own way and hand them to a FolderSink, which
// owns path safety, limits, overwrite policy and the streaming copy.
package sink

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jmgilman/go/fs/core"

	"github.com/jmgilman/go/archive/internal/validate"
)

const (
	// DirMode is used for every directory the sink creates.
	DirMode = 0o755

	// DefaultBufferSize is the chunk size used when Config.BufferSize is unset.
	DefaultBufferSize = 32 * 1024
)

// Config controls a FolderSink.
type Config struct {
	// FS is where entries are written.
	FS core.FS

	// BufferSize is the fixed chunk size for streaming entry content.
	BufferSize int

	// Logger receives one debug record per entry. Nil discards.
	Logger *slog.Logger

	// Names validates entry names before they become paths. Nil uses the
	// default validator with every check enabled.
	Names *validate.EntryNameValidator

	// Checks enforces size and count limits. Nil disables them.
	Checks validate.Validator

	// Overwrite replaces existing files. When false they are left untouched.
	Overwrite bool
}

// Entry is one archive member handed to the sink.
type Entry struct {
	// Name is the slash-separated name stored in the archive.
	Name string

	// Mode is the mode declared by the archive.
	Mode fs.FileMode

	// Size is the declared uncompressed size, used for limit checks.
	Size int64
}

// FolderSink writes entries below a root directory.
type FolderSink struct {
	cfg   Config
	root  string
	buf   []byte
	stats validate.ArchiveStats
}

// NewFolderSink creates a sink rooted at root. The root is not created until
// the first entry arrives.
func NewFolderSink(root string, cfg Config) *FolderSink {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.Names == nil {
		cfg.Names = validate.NewEntryNameValidator()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &FolderSink{
		cfg:  cfg,
		root: root,
		buf:  make([]byte, cfg.BufferSize),
	}
}

// Root returns the directory entries are written below.
func (s *FolderSink) Root() string {
	return s.root
}

// Stats returns the totals accepted so far.
func (s *FolderSink) Stats() validate.ArchiveStats {
	return s.stats
}

// Mkdir creates the directory for a directory entry, including ancestors.
func (s *FolderSink) Mkdir(name string) error {
	dst, err := s.cfg.Names.Join(s.root, name)
	if err != nil {
		return err
	}
	if err := s.cfg.FS.MkdirAll(dst, DirMode); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dst, err)
	}
	s.cfg.Logger.Debug("created directory", "entry", name, "path", dst)
	return nil
}

// WriteFile streams content into the file for e. It returns the absolute path
// of the file and whether it was written; an existing file is skipped when
// overwriting is disabled.
func (s *FolderSink) WriteFile(e Entry, content io.Reader) (path string, written bool, err error) {
	dst, err := s.cfg.Names.Join(s.root, e.Name)
	if err != nil {
		return "", false, err
	}

	if !s.cfg.Overwrite {
		exists, err := s.cfg.FS.Exists(dst)
		if err != nil {
			return "", false, fmt.Errorf("failed to check %s: %w", dst, err)
		}
		if exists {
			s.cfg.Logger.Debug("skipped existing file", "entry", e.Name, "path", dst)
			return dst, false, nil
		}
	}

	if s.cfg.Checks != nil {
		if err := s.cfg.Checks.ValidateFile(validate.FileInfo{Name: e.Name, Size: e.Size, Mode: e.Mode}); err != nil {
			return "", false, err
		}
	}

	if err := s.cfg.FS.MkdirAll(filepath.Dir(dst), DirMode); err != nil {
		return "", false, fmt.Errorf("failed to create directory for %s: %w", dst, err)
	}

	f, err := s.cfg.FS.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, validate.SanitizeMode(e.Mode))
	if err != nil {
		return "", false, fmt.Errorf("failed to create file %s: %w", dst, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close file %s: %w", dst, cerr)
		}
	}()

	n, err := io.CopyBuffer(f, content, s.buf)
	if err != nil {
		return "", false, fmt.Errorf("failed to write file content for %s: %w", dst, err)
	}

	s.stats.TotalFiles++
	s.stats.TotalSize += n
	if s.cfg.Checks != nil {
		if err := s.cfg.Checks.ValidateArchive(s.stats); err != nil {
			return "", false, err
		}
	}

	s.cfg.Logger.Debug("extracted file", "entry", e.Name, "path", dst, "bytes", n)
	return dst, true, nil
}
