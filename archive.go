package archive

import (
	"path/filepath"
	"time"

	"github.com/jmgilman/go/archive/internal/sink"
	"github.com/jmgilman/go/archive/internal/tarball"
	"github.com/jmgilman/go/archive/internal/validate"
	"github.com/jmgilman/go/archive/internal/zipball"
)

// DefaultCompressionLevel is used for zip archives when a request leaves the
// level unset.
const DefaultCompressionLevel = zipball.LevelDefault

// CompressRequest describes an archive to create. Paths are resolved by the
// configured filesystem, so they should be absolute.
type CompressRequest struct {
	// Source is the file or directory to archive.
	Source string

	// Destination is the archive file to write. Missing parent directories
	// are created.
	Destination string

	// Format selects the archive format. The zero Format detects it from
	// Destination.
	Format Format

	// Password encrypts every zip entry when non-empty. Ignored for tar
	// formats.
	Password string

	// CompressionLevel selects the zip deflate level: 1 is fastest, 9 is
	// best, anything else is normal. Ignored for tar formats.
	CompressionLevel int
}

// ExtractRequest describes an archive to unpack.
type ExtractRequest struct {
	// Source is the archive file.
	Source string

	// Destination is the directory to unpack into. It is created if missing.
	Destination string

	// Format selects the archive format. The zero Format detects it from
	// Source.
	Format Format

	// Password decrypts encrypted zip entries. It is ignored for unencrypted
	// entries and tar formats.
	Password string

	// Overwrite controls whether existing files are replaced. Nil means true.
	Overwrite *bool
}

// ValidateRequest describes an archive to check.
type ValidateRequest struct {
	// Source is the archive file.
	Source string

	// Format selects the archive format. The zero Format detects it from
	// Source.
	Format Format
}

// Result describes a completed operation.
type Result struct {
	// OutputPath is the archive written by Compress or the directory
	// populated by Extract.
	OutputPath string `json:"path"`

	// FileCount is the number of files archived or extracted. Directories
	// are not counted.
	FileCount int `json:"fileCount"`

	// ByteSize is the size of the written archive. Set by Compress only.
	ByteSize int64 `json:"size,omitempty"`

	// ExtractedPaths lists the absolute path of every extracted file. Set by
	// Extract only.
	ExtractedPaths []string `json:"files,omitempty"`

	// Format is the format that was used, after detection.
	Format Format `json:"format"`
}

// Archiver creates, extracts and validates archives on a filesystem. An
// Archiver holds no per-call state and may be used from multiple goroutines
// on disjoint paths.
type Archiver struct {
	opts *Options
}

// New creates an Archiver with the given options.
func New(opts ...Option) *Archiver {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Archiver{opts: o}
}

// Compress archives req.Source into req.Destination.
func (a *Archiver) Compress(req CompressRequest) (*Result, error) {
	const op = "compress"
	start := time.Now()

	if req.Source == "" {
		return nil, invalidRequest(op, "", "source path is required")
	}
	if req.Destination == "" {
		return nil, invalidRequest(op, req.Source, "destination path is required")
	}
	if err := a.RequireSource(op, req.Source); err != nil {
		return nil, err
	}

	format := req.Format.resolve(req.Destination)
	fsys := a.opts.FS
	if err := fsys.MkdirAll(filepath.Dir(req.Destination), sink.DirMode); err != nil {
		return nil, operationFailed(op, req.Source, err)
	}

	var (
		count int
		err   error
	)
	switch format.container {
	case containerZip:
		level := req.CompressionLevel
		if level == 0 {
			level = DefaultCompressionLevel
		}
		count, err = zipball.Create(fsys, req.Source, req.Destination, zipball.CreateOptions{
			Level:      level,
			Password:   req.Password,
			BufferSize: a.opts.BufferSize,
			Logger:     a.opts.Logger,
		})
	default:
		count, err = tarball.Create(fsys, req.Source, req.Destination, tarball.CreateOptions{
			Compression: format.compression,
			BufferSize:  a.opts.BufferSize,
			Logger:      a.opts.Logger,
		})
	}
	if err != nil {
		return nil, operationFailed(op, req.Source, err)
	}

	info, err := fsys.Stat(req.Destination)
	if err != nil {
		return nil, operationFailed(op, req.Source, err)
	}

	a.opts.Logger.Info("created archive",
		"source", req.Source,
		"destination", req.Destination,
		"format", format.String(),
		"files", count,
		"bytes", info.Size(),
		"duration", time.Since(start))

	return &Result{
		OutputPath: req.Destination,
		FileCount:  count,
		ByteSize:   info.Size(),
		Format:     format,
	}, nil
}

// Extract unpacks req.Source into req.Destination.
func (a *Archiver) Extract(req ExtractRequest) (*Result, error) {
	const op = "extract"
	start := time.Now()

	if req.Source == "" {
		return nil, invalidRequest(op, "", "source path is required")
	}
	if req.Destination == "" {
		return nil, invalidRequest(op, req.Source, "destination path is required")
	}
	if err := a.RequireSource(op, req.Source); err != nil {
		return nil, err
	}

	format := req.Format.resolve(req.Source)
	fsys := a.opts.FS
	if err := fsys.MkdirAll(req.Destination, sink.DirMode); err != nil {
		return nil, operationFailed(op, req.Source, err)
	}

	overwrite := true
	if req.Overwrite != nil {
		overwrite = *req.Overwrite
	}
	s := sink.NewFolderSink(req.Destination, sink.Config{
		FS:         fsys,
		BufferSize: a.opts.BufferSize,
		Logger:     a.opts.Logger,
		Names:      &validate.EntryNameValidator{AllowUnsafe: a.opts.AllowUnsafePaths},
		Checks:     a.opts.checks(),
		Overwrite:  overwrite,
	})

	var (
		paths []string
		err   error
	)
	switch format.container {
	case containerZip:
		paths, err = zipball.Extract(fsys, req.Source, req.Password, s)
	default:
		paths, err = tarball.Extract(fsys, req.Source, format.compression, s)
	}
	if err != nil {
		return nil, operationFailed(op, req.Source, err)
	}
	if paths == nil {
		paths = []string{}
	}

	a.opts.Logger.Info("extracted archive",
		"source", req.Source,
		"destination", req.Destination,
		"format", format.String(),
		"files", len(paths),
		"duration", time.Since(start))

	return &Result{
		OutputPath:     req.Destination,
		FileCount:      len(paths),
		ExtractedPaths: paths,
		Format:         format,
	}, nil
}

// IsValidArchive reports whether req.Source looks like a readable archive of
// its format. Zip archives must have a readable central directory; tar
// archives must yield a first entry, so an entry-less tar is not valid. Every
// failure, including a missing file, is reported as false.
func (a *Archiver) IsValidArchive(req ValidateRequest) bool {
	if err := a.validate(req); err != nil {
		a.opts.Logger.Warn("archive failed validation", "source", req.Source, "error", err)
		return false
	}
	return true
}

func (a *Archiver) validate(req ValidateRequest) error {
	const op = "validate"

	if req.Source == "" {
		return invalidRequest(op, "", "source path is required")
	}

	format := req.Format.resolve(req.Source)
	var err error
	switch format.container {
	case containerZip:
		err = zipball.Validate(a.opts.FS, req.Source)
	default:
		err = tarball.Validate(a.opts.FS, req.Source, format.compression)
	}
	if err != nil {
		return operationFailed(op, req.Source, err)
	}
	return nil
}

// RequireSource fails with ErrSourceNotFound when path does not exist on the
// configured filesystem. op names the operation in the returned error.
func (a *Archiver) RequireSource(op, path string) error {
	exists, err := a.opts.FS.Exists(path)
	if err != nil {
		return operationFailed(op, path, err)
	}
	if !exists {
		return sourceNotFound(op, path)
	}
	return nil
}
