package validate

import (
	"errors"
	"fmt"
	"io/fs"
)

// ErrLimitExceeded is wrapped by every rejection from a size or count check.
var ErrLimitExceeded = errors.New("extraction limit exceeded")

// FileInfo describes an entry about to be extracted.
type FileInfo struct {
	// Name is the entry name within the archive.
	Name string

	// Size is the uncompressed size declared by the archive.
	Size int64

	// Mode is the file mode declared by the archive.
	Mode fs.FileMode
}

// ArchiveStats summarises what has been extracted so far.
type ArchiveStats struct {
	TotalFiles int
	TotalSize  int64
}

// Validator checks entries and running totals during extraction.
type Validator interface {
	// ValidateFile checks a single entry before it is written.
	ValidateFile(info FileInfo) error

	// ValidateArchive checks the running totals after an entry is accepted.
	ValidateArchive(stats ArchiveStats) error
}

// SizeValidator enforces per-file and total size limits. Zero disables a limit.
type SizeValidator struct {
	MaxFileSize  int64
	MaxTotalSize int64
}

// NewSizeValidator creates a new SizeValidator with the specified limits.
func NewSizeValidator(maxFileSize, maxTotalSize int64) *SizeValidator {
	return &SizeValidator{MaxFileSize: maxFileSize, MaxTotalSize: maxTotalSize}
}

// ValidateFile checks if a file's size is within the per-file limit.
func (v *SizeValidator) ValidateFile(info FileInfo) error {
	if v.MaxFileSize > 0 && info.Size > v.MaxFileSize {
		return fmt.Errorf("%w: %s is %d bytes (max %d)", ErrLimitExceeded, info.Name, info.Size, v.MaxFileSize)
	}
	return nil
}

// ValidateArchive checks if the total extracted size is within the limit.
func (v *SizeValidator) ValidateArchive(stats ArchiveStats) error {
	if v.MaxTotalSize > 0 && stats.TotalSize > v.MaxTotalSize {
		return fmt.Errorf("%w: total size %d bytes (max %d)", ErrLimitExceeded, stats.TotalSize, v.MaxTotalSize)
	}
	return nil
}

// FileCountValidator limits the number of extracted files. Zero disables it.
type FileCountValidator struct {
	MaxFiles int
}

// NewFileCountValidator creates a new FileCountValidator with the specified limit.
func NewFileCountValidator(maxFiles int) *FileCountValidator {
	return &FileCountValidator{MaxFiles: maxFiles}
}

// ValidateFile is a no-op; the count is checked at archive level.
func (v *FileCountValidator) ValidateFile(FileInfo) error {
	return nil
}

// ValidateArchive checks if the file count is within the limit.
func (v *FileCountValidator) ValidateArchive(stats ArchiveStats) error {
	if v.MaxFiles > 0 && stats.TotalFiles > v.MaxFiles {
		return fmt.Errorf("%w: %d files (max %d)", ErrLimitExceeded, stats.TotalFiles, v.MaxFiles)
	}
	return nil
}

// SanitizeMode strips setuid, setgid and sticky bits and supplies a default
// permission when the archive declares none.
func SanitizeMode(mode fs.FileMode) fs.FileMode {
	perm := mode.Perm()
	if perm == 0 {
		return 0o644
	}
	return perm
}

// Chain runs validators in order and fails fast.
type Chain struct {
	validators []Validator
}

// NewChain creates a Chain from the given validators. Nil entries are dropped.
func NewChain(validators ...Validator) *Chain {
	c := &Chain{}
	for _, v := range validators {
		if v != nil {
			c.validators = append(c.validators, v)
		}
	}
	return c
}

// ValidateFile runs every validator's ValidateFile.
func (c *Chain) ValidateFile(info FileInfo) error {
	for _, v := range c.validators {
		if err := v.ValidateFile(info); err != nil {
			return fmt.Errorf("file validation failed for %s: %w", info.Name, err)
		}
	}
	return nil
}

// ValidateArchive runs every validator's ValidateArchive.
func (c *Chain) ValidateArchive(stats ArchiveStats) error {
	for _, v := range c.validators {
		if err := v.ValidateArchive(stats); err != nil {
			return fmt.Errorf("archive validation failed (files: %d, size: %d): %w", stats.TotalFiles, stats.TotalSize, err)
		}
	}
	return nil
}
