// Package tarball reads and writes tar containers, optionally wrapped in a
// compression codec, over a core.FS.
package tarball

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jmgilman/go/fs/core"

	"github.com/jmgilman/go/archive/internal/codec"
	"github.com/jmgilman/go/archive/internal/sink"
	"github.com/jmgilman/go/archive/internal/walk"
)

// ErrEmptyArchive is returned by Validate when the stream holds no entries.
var ErrEmptyArchive = errors.New("tar archive contains no entries")

// CreateOptions controls archive creation.
type CreateOptions struct {
	// Compression is layered between the tar stream and the destination file.
	Compression codec.Algorithm

	// BufferSize is the chunk size for streaming file content.
	BufferSize int

	// Logger receives one debug record per entry. Nil discards.
	Logger *slog.Logger
}

// Create writes source into a new archive at dest and returns the number of
// file entries written. A file source becomes one entry named by its base
// name; a directory source contributes one entry per regular file below it,
// named by the path from the directory's own name down. Directories are not
// written as entries of their own.
func Create(fsys core.FS, source, dest string, opts CreateOptions) (count int, err error) {
	out, err := fsys.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", dest, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", dest, cerr)
		}
	}()

	return Write(out, fsys, source, opts)
}

// Write streams the tar archive for source into w. The tar writer and the
// codec are closed, in that order, before Write returns; w is left open.
func Write(w io.Writer, fsys core.ReadFS, source string, opts CreateOptions) (count int, err error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	bufSize := opts.BufferSize
	if bufSize <= 0 {
		bufSize = sink.DefaultBufferSize
	}

	cw, err := codec.WrapWriter(w, opts.Compression)
	if err != nil {
		return 0, err
	}
	tw := tar.NewWriter(cw)
	defer func() {
		if cerr := tw.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to finalize tar stream: %w", cerr)
		}
		if cerr := cw.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to finalize %s stream: %w", opts.Compression, cerr)
		}
	}()

	buf := make([]byte, bufSize)
	err = walk.Tree(fsys, source, func(e walk.Entry) error {
		if !e.IsFile() {
			return nil
		}
		if err := writeEntry(tw, fsys, e, buf); err != nil {
			return err
		}
		count++
		logger.Debug("added tar entry", "entry", e.Name, "size", e.Info.Size())
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// writeEntry writes a single header and the file's content.
func writeEntry(tw *tar.Writer, fsys core.ReadFS, e walk.Entry, buf []byte) error {
	header, err := tar.FileInfoHeader(e.Info, "")
	if err != nil {
		return fmt.Errorf("failed to create tar header for %s: %w", e.Path, err)
	}
	header.Name = e.Name

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header for %s: %w", e.Name, err)
	}

	f, err := fsys.Open(e.Path)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", e.Path, err)
	}
	defer f.Close()

	if _, err := io.CopyBuffer(tw, f, buf); err != nil {
		return fmt.Errorf("failed to write file content for %s: %w", e.Name, err)
	}
	return nil
}

// Extract reads the archive at source and materialises it through s. It
// returns the absolute paths of the files written, in archive order.
func Extract(fsys core.FS, source string, compression codec.Algorithm, s *sink.FolderSink) ([]string, error) {
	in, err := fsys.Open(source)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", source, err)
	}
	defer in.Close()

	return Read(in, compression, s)
}

// Read extracts every entry of the tar stream in r. Directory entries are
// created with their ancestors and regular files are streamed to disk. Links,
// devices and every other entry type are skipped.
func Read(r io.Reader, compression codec.Algorithm, s *sink.FolderSink) ([]string, error) {
	cr, err := codec.WrapReader(r, compression)
	if err != nil {
		return nil, err
	}
	defer cr.Close()

	var extracted []string
	tr := tar.NewReader(cr)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar header: %w", err)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := s.Mkdir(header.Name); err != nil {
				return nil, err
			}
		case tar.TypeReg:
			mode := header.FileInfo().Mode()
			path, written, err := s.WriteFile(sink.Entry{Name: header.Name, Mode: mode, Size: header.Size}, tr)
			if err != nil {
				return nil, err
			}
			if written {
				extracted = append(extracted, path)
			}
		}
	}
	return extracted, nil
}

// Validate opens the archive at source and reads its first header. The
// archive is valid when that header parses; an archive without entries is
// reported as ErrEmptyArchive.
func Validate(fsys core.ReadFS, source string, compression codec.Algorithm) error {
	in, err := fsys.Open(source)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", source, err)
	}
	defer in.Close()

	return Probe(in, compression)
}

// Probe reads exactly one header from the tar stream in r.
func Probe(r io.Reader, compression codec.Algorithm) error {
	cr, err := codec.WrapReader(r, compression)
	if err != nil {
		return err
	}
	defer cr.Close()

	if _, err := tar.NewReader(cr).Next(); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyArchive
		}
		return fmt.Errorf("failed to read tar header: %w", err)
	}
	return nil
}
