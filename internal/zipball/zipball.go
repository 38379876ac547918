// Package zipball reads and writes zip containers over a core.FS, with
// optional traditional PKWARE password encryption.
package zipball

import (
	"bytes"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/jmgilman/go/fs/core"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/jmgilman/go/archive/internal/sink"
	"github.com/jmgilman/go/archive/internal/walk"
)

// Compression levels understood by FlateLevel.
const (
	LevelFastest = 1
	LevelDefault = 6
	LevelBest    = 9
)

// FlateLevel maps a requested level onto one of the three deflate settings.
// Anything other than LevelFastest or LevelBest selects the default.
func FlateLevel(level int) int {
	switch level {
	case LevelFastest:
		return flate.BestSpeed
	case LevelBest:
		return flate.BestCompression
	default:
		return flate.DefaultCompression
	}
}

// CreateOptions controls archive creation.
type CreateOptions struct {
	// Level is the requested compression level, see FlateLevel.
	Level int

	// Password enables encryption of every file entry when non-empty.
	Password string

	// BufferSize is the chunk size for streaming file content.
	BufferSize int

	// Logger receives one debug record per entry. Nil discards.
	Logger *slog.Logger
}

// Create writes source into a new zip archive at dest and returns the number
// of regular files found below source. Directory entries are written for
// every directory, including the source directory itself.
func Create(fsys core.FS, source, dest string, opts CreateOptions) (count int, err error) {
	count, err = walk.CountFiles(fsys, source)
	if err != nil {
		return 0, err
	}

	out, err := fsys.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", dest, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", dest, cerr)
		}
	}()

	if err := Write(out, fsys, source, opts); err != nil {
		return 0, err
	}
	return count, nil
}

// Write streams the zip archive for source into w. The central directory is
// written before Write returns; w is left open.
func Write(w io.Writer, fsys core.ReadFS, source string, opts CreateOptions) (err error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	bufSize := opts.BufferSize
	if bufSize <= 0 {
		bufSize = sink.DefaultBufferSize
	}
	level := FlateLevel(opts.Level)
	password := []byte(opts.Password)

	zw := zip.NewWriter(w)
	defer func() {
		if cerr := zw.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to finalize zip archive: %w", cerr)
		}
	}()

	// current is the header being written. The compressor is built inside
	// CreateHeader, after the DOS timestamp has been filled in.
	var current *zip.FileHeader
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		if current == nil || current.Flags&flagEncrypted == 0 {
			return flate.NewWriter(out, level)
		}
		enc := newEncryptWriter(out, password, checkByte(current))
		fw, err := flate.NewWriter(enc, level)
		if err != nil {
			return nil, err
		}
		return &encryptedDeflater{Writer: fw, enc: enc}, nil
	})

	buf := make([]byte, bufSize)
	return walk.Tree(fsys, source, func(e walk.Entry) error {
		switch {
		case e.IsDir():
			header := &zip.FileHeader{
				Name:     e.Name + "/",
				Method:   zip.Store,
				Modified: e.Info.ModTime(),
			}
			header.SetMode(e.Info.Mode())
			current = header
			if _, err := zw.CreateHeader(header); err != nil {
				return fmt.Errorf("failed to write zip directory entry for %s: %w", e.Name, err)
			}
			logger.Debug("added zip directory entry", "entry", header.Name)
		case e.IsFile():
			header, err := zip.FileInfoHeader(e.Info)
			if err != nil {
				return fmt.Errorf("failed to create zip header for %s: %w", e.Path, err)
			}
			header.Name = e.Name
			header.Method = zip.Deflate
			if len(password) > 0 {
				header.Flags |= flagEncrypted | flagDataDescriptor
			}
			current = header
			if err := writeFile(zw, fsys, header, e.Path, buf); err != nil {
				return err
			}
			logger.Debug("added zip entry", "entry", e.Name, "size", e.Info.Size(), "encrypted", len(password) > 0)
		}
		return nil
	})
}

func writeFile(zw *zip.Writer, fsys core.ReadFS, header *zip.FileHeader, path string, buf []byte) error {
	fw, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to write zip header for %s: %w", header.Name, err)
	}

	f, err := fsys.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.CopyBuffer(fw, f, buf); err != nil {
		return fmt.Errorf("failed to write file content for %s: %w", header.Name, err)
	}
	return nil
}

// encryptedDeflater flushes the deflate stream before the encryption layer.
type encryptedDeflater struct {
	*flate.Writer
	enc *encryptWriter
}

func (d *encryptedDeflater) Close() error {
	if err := d.Writer.Close(); err != nil {
		return err
	}
	return d.enc.Close()
}

// Extract unpacks the archive at source through s and returns the absolute
// path of every regular file below the sink root afterwards, which includes
// files that existed there before. The password is only consulted for
// encrypted entries.
func Extract(fsys core.FS, source, password string, s *sink.FolderSink) ([]string, error) {
	in, err := fsys.Open(source)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", source, err)
	}
	defer in.Close()

	zr, err := newReader(in)
	if err != nil {
		return nil, err
	}

	for _, f := range zr.File {
		if err := extractEntry(f, password, s); err != nil {
			return nil, err
		}
	}

	root, err := filepath.Abs(s.Root())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", s.Root(), err)
	}
	if err := fsys.MkdirAll(root, sink.DirMode); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", root, err)
	}
	return walk.Files(fsys, root)
}

func extractEntry(f *zip.File, password string, s *sink.FolderSink) error {
	mode := f.Mode()
	switch {
	case mode.IsDir():
		return s.Mkdir(f.Name)
	case !mode.IsRegular():
		return nil
	}

	rc, err := openEntry(f, password)
	if err != nil {
		return fmt.Errorf("failed to open zip entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	_, _, err = s.WriteFile(sink.Entry{Name: f.Name, Mode: mode, Size: int64(f.UncompressedSize64)}, rc)
	return err
}

// openEntry returns the decompressed content of f, decrypting it when the
// entry is flagged as encrypted.
func openEntry(f *zip.File, password string) (io.ReadCloser, error) {
	if f.Flags&flagEncrypted == 0 {
		return f.Open()
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}

	raw, err := f.OpenRaw()
	if err != nil {
		return nil, err
	}
	plain := newDecryptReader(raw, []byte(password), checkByte(&f.FileHeader))
	// Reject a wrong password before the caller creates the destination file.
	if err := plain.readHeader(); err != nil {
		return nil, err
	}

	var rc io.ReadCloser
	switch f.Method {
	case zip.Store:
		rc = io.NopCloser(plain)
	case zip.Deflate:
		rc = flate.NewReader(plain)
	default:
		return nil, zip.ErrAlgorithm
	}
	return &checksumReader{rc: rc, hash: crc32.NewIEEE(), want: f.CRC32, size: f.UncompressedSize64}, nil
}

// checksumReader verifies the CRC and size of decrypted content at EOF.
type checksumReader struct {
	rc   io.ReadCloser
	hash hash.Hash32
	want uint32
	size uint64
	read uint64
}

func (c *checksumReader) Read(p []byte) (int, error) {
	n, err := c.rc.Read(p)
	c.hash.Write(p[:n])
	c.read += uint64(n)
	if c.read > c.size {
		return n, zip.ErrFormat
	}
	if errors.Is(err, io.EOF) {
		if c.read != c.size {
			return n, io.ErrUnexpectedEOF
		}
		if c.hash.Sum32() != c.want {
			return n, zip.ErrChecksum
		}
	}
	return n, err
}

func (c *checksumReader) Close() error {
	return c.rc.Close()
}

// Validate reports whether the archive at source has a readable central
// directory.
func Validate(fsys core.ReadFS, source string) error {
	in, err := fsys.Open(source)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", source, err)
	}
	defer in.Close()

	_, err = newReader(in)
	return err
}

func newReader(f fs.File) (*zip.Reader, error) {
	ra, size, err := readerAt(f)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, fmt.Errorf("failed to read zip archive: %w", err)
	}
	return zr, nil
}

// readerAt adapts a file for random access. Files that can seek are wrapped;
// anything else is buffered in memory.
func readerAt(f fs.File) (io.ReaderAt, int64, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to stat archive: %w", err)
	}

	switch r := f.(type) {
	case io.ReaderAt:
		return r, info.Size(), nil
	case io.ReadSeeker:
		return &seekReaderAt{rs: r}, info.Size(), nil
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read archive: %w", err)
	}
	return bytes.NewReader(data), int64(len(data)), nil
}

type seekReaderAt struct {
	mu sync.Mutex
	rs io.ReadSeeker
}

func (s *seekReaderAt) ReadAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.rs.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := io.ReadFull(s.rs, p)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	return n, err
}
