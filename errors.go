package archive

import (
	"errors"
	"fmt"

	platformerrors "github.com/jmgilman/go/errors"

	"github.com/jmgilman/go/archive/internal/validate"
	"github.com/jmgilman/go/archive/internal/zipball"
)

// Error codes carried by failures that have no platform-wide equivalent.
const (
	CodeUnsupportedFormat      platformerrors.ErrorCode = "UNSUPPORTED_FORMAT"
	CodeArchiveOperationFailed platformerrors.ErrorCode = "ARCHIVE_OPERATION_FAILED"
)

// Sentinel errors for the failure kinds reported by an Archiver. Every error
// returned by Compress, Extract or ParseFormat matches exactly one of the first
// four through errors.Is.
var (
	// ErrInvalidRequest indicates that a required request field is missing.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrSourceNotFound indicates that the source path does not exist.
	ErrSourceNotFound = errors.New("source not found")

	// ErrUnsupportedFormat indicates an unrecognised format token.
	ErrUnsupportedFormat = errors.New("unsupported archive format")

	// ErrArchiveOperationFailed indicates an I/O or codec failure while
	// creating or extracting an archive.
	ErrArchiveOperationFailed = errors.New("archive operation failed")

	// ErrSecurityViolation indicates that extraction stopped on an unsafe entry
	// name or an exceeded limit. It is always reported together with
	// ErrArchiveOperationFailed.
	ErrSecurityViolation = errors.New("security constraint violated")

	// ErrPasswordRequired indicates an encrypted zip entry and no password.
	ErrPasswordRequired = zipball.ErrPasswordRequired

	// ErrBadPassword indicates that the password does not match an encrypted
	// zip entry.
	ErrBadPassword = zipball.ErrBadPassword
)

// ArchiveError provides context about a failed archive operation.
type ArchiveError struct {
	// Op is the operation that failed: "compress", "extract", "validate" or "parse".
	Op string

	// Path is the source path, or the offending token for "parse".
	Path string

	// Err is a coded platform error wrapping the underlying cause.
	Err error
}

// Error returns the message of the underlying error.
func (e *ArchiveError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ArchiveError) Unwrap() error {
	return e.Err
}

// Is matches the package sentinels against the code of the underlying error.
func (e *ArchiveError) Is(target error) bool {
	switch target {
	case ErrInvalidRequest:
		return platformerrors.GetCode(e.Err) == platformerrors.CodeInvalidInput
	case ErrSourceNotFound:
		return platformerrors.GetCode(e.Err) == platformerrors.CodeNotFound
	case ErrUnsupportedFormat:
		return platformerrors.GetCode(e.Err) == CodeUnsupportedFormat
	case ErrArchiveOperationFailed:
		return platformerrors.GetCode(e.Err) == CodeArchiveOperationFailed
	case ErrSecurityViolation:
		return errors.Is(e.Err, validate.ErrUnsafePath) || errors.Is(e.Err, validate.ErrLimitExceeded)
	}
	return false
}

// FormatError returns the message prefixed with the operation and path.
func (e *ArchiveError) FormatError() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Err.Error())
}

// IsSecurityError reports whether the failure was an unsafe entry or an
// exceeded extraction limit.
func (e *ArchiveError) IsSecurityError() bool {
	return errors.Is(e, ErrSecurityViolation)
}

func invalidRequest(op, path, message string) error {
	return &ArchiveError{Op: op, Path: path, Err: platformerrors.New(platformerrors.CodeInvalidInput, message)}
}

func sourceNotFound(op, path string) error {
	return &ArchiveError{
		Op:   op,
		Path: path,
		Err:  platformerrors.Newf(platformerrors.CodeNotFound, "source path does not exist: %s", path),
	}
}

func unsupportedFormat(op, token string) error {
	return &ArchiveError{
		Op:   op,
		Path: token,
		Err:  platformerrors.Newf(CodeUnsupportedFormat, "unsupported archive format: %q", token),
	}
}

func operationFailed(op, path string, err error) error {
	return &ArchiveError{
		Op:   op,
		Path: path,
		Err:  platformerrors.Wrapf(err, CodeArchiveOperationFailed, "failed to %s %s", op, path),
	}
}
