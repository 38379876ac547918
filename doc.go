// Package archive creates, extracts and validates zip, tar, tar.gz, tar.bz2
// and tar.xz archives through one interface.
//
// Key features:
//   - Format detection from file names, with compound suffixes checked first
//   - Streaming I/O with a fixed-size buffer; files are never loaded whole
//   - Traditional password encryption and three deflate levels for zip
//   - Entry-name checks and optional size and count limits on extraction
//   - Filesystem abstraction for testing and custom storage
//
// Basic usage:
//
//	a := archive.New()
//
//	// Archive a directory; the format is detected from the destination
//	res, err := a.Compress(archive.CompressRequest{
//	    Source:      "/path/to/docs",
//	    Destination: "/path/to/out.tar.gz",
//	})
//
//	// Extract it again
//	res, err = a.Extract(archive.ExtractRequest{
//	    Source:      "/path/to/out.tar.gz",
//	    Destination: "/path/to/restore",
//	})
//
//	// Encrypted zip
//	res, err = a.Compress(archive.CompressRequest{
//	    Source:           "/path/to/docs",
//	    Destination:      "/path/to/docs.zip",
//	    Format:           archive.Zip,
//	    Password:         "secret",
//	    CompressionLevel: 9,
//	})
//
// Failures match one of ErrInvalidRequest, ErrSourceNotFound,
// ErrUnsupportedFormat or ErrArchiveOperationFailed through errors.Is.
// IsValidArchive never fails; it answers true or false.
package archive
