package archive

import (
	"log/slog"

	"github.com/jmgilman/go/fs/billy"
	"github.com/jmgilman/go/fs/core"

	"github.com/jmgilman/go/archive/internal/sink"
	"github.com/jmgilman/go/archive/internal/validate"
)

// Options contains configuration for an Archiver.
type Options struct {
	// FS is the filesystem archives are read from and written to.
	FS core.FS

	// Logger receives structured records about each operation.
	Logger *slog.Logger

	// BufferSize is the fixed chunk size used to stream file content.
	BufferSize int

	// MaxFiles is the maximum number of files an extraction may write.
	// Zero means unlimited.
	MaxFiles int

	// MaxFileSize is the maximum size of a single extracted file.
	// Zero means unlimited.
	MaxFileSize int64

	// MaxTotalSize is the maximum number of bytes an extraction may write.
	// Zero means unlimited.
	MaxTotalSize int64

	// AllowUnsafePaths disables entry-name checks during extraction, so
	// entries such as "../x" or "/etc/x" are written where they point.
	AllowUnsafePaths bool
}

// Option configures an Archiver.
type Option func(*Options)

// DefaultOptions returns options for the local filesystem with logging
// discarded, a 32 KiB buffer and no extraction limits.
func DefaultOptions() *Options {
	return &Options{
		FS:         billy.NewLocal(),
		Logger:     slog.New(slog.DiscardHandler),
		BufferSize: sink.DefaultBufferSize,
	}
}

// WithFilesystem sets the filesystem used for every operation.
func WithFilesystem(fsys core.FS) Option {
	return func(o *Options) {
		if fsys != nil {
			o.FS = fsys
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithBufferSize sets the chunk size for streaming copies. Non-positive values
// are ignored.
func WithBufferSize(size int) Option {
	return func(o *Options) {
		if size > 0 {
			o.BufferSize = size
		}
	}
}

// WithExtractLimits bounds what an extraction may write. A zero argument
// leaves that limit disabled.
func WithExtractLimits(maxFiles int, maxFileSize, maxTotalSize int64) Option {
	return func(o *Options) {
		o.MaxFiles = maxFiles
		o.MaxFileSize = maxFileSize
		o.MaxTotalSize = maxTotalSize
	}
}

// WithAllowUnsafePaths disables entry-name checks during extraction.
func WithAllowUnsafePaths(allow bool) Option {
	return func(o *Options) {
		o.AllowUnsafePaths = allow
	}
}

// checks builds the validator chain for the configured limits, or nil when
// no limit is set.
func (o *Options) checks() validate.Validator {
	var validators []validate.Validator
	if o.MaxFiles > 0 {
		validators = append(validators, validate.NewFileCountValidator(o.MaxFiles))
	}
	if o.MaxFileSize > 0 || o.MaxTotalSize > 0 {
		validators = append(validators, validate.NewSizeValidator(o.MaxFileSize, o.MaxTotalSize))
	}
	if len(validators) == 0 {
		return nil
	}
	return validate.NewChain(validators...)
}
