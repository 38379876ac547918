// Package codec layers streaming compression over raw archive byte streams.
// A container engine writes into the stream returned by WrapWriter and reads
// from the stream returned by WrapReader without knowing which transform, if
// any, sits underneath.
package codec

import (
	"errors"
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// Algorithm identifies the compression transform applied to a container stream.
type Algorithm int

const (
	// None passes bytes through unchanged.
	None Algorithm = iota
	// Gzip is RFC 1952 gzip.
	Gzip
	// Bzip2 is the bzip2 block-sorting format.
	Bzip2
	// Xz is the xz/LZMA2 container format.
	Xz
)

// ErrUnsupportedAlgorithm is returned for an Algorithm value outside the known set.
var ErrUnsupportedAlgorithm = errors.New("codec: unsupported compression algorithm")

// String returns the conventional name of the algorithm.
func (a Algorithm) String() string {
	switch a {
	case None:
		return "none"
	case Gzip:
		return "gzip"
	case Bzip2:
		return "bzip2"
	case Xz:
		return "xz"
	default:
		return fmt.Sprintf("algorithm(%d)", int(a))
	}
}

// WrapWriter returns a writer that compresses into raw using algo.
//
// Closing the returned writer flushes the codec trailer into raw but never
// closes raw itself. Callers must close the wrapper before closing raw or the
// trailer is lost.
func WrapWriter(raw io.Writer, algo Algorithm) (io.WriteCloser, error) {
	switch algo {
	case None:
		return nopWriteCloser{raw}, nil
	case Gzip:
		return gzip.NewWriter(raw), nil
	case Bzip2:
		w, err := bzip2.NewWriter(raw, &bzip2.WriterConfig{Level: bzip2.DefaultCompression})
		if err != nil {
			return nil, fmt.Errorf("failed to create bzip2 writer: %w", err)
		}
		return w, nil
	case Xz:
		w, err := xz.NewWriter(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz writer: %w", err)
		}
		return w, nil
	default:
		return nil, ErrUnsupportedAlgorithm
	}
}

// WrapReader returns a reader that decompresses raw using algo.
//
// Header validation happens eagerly for gzip and xz, so a stream that is not
// in the requested format usually fails here rather than on the first Read.
// Closing the returned reader releases codec state only; raw stays open.
func WrapReader(raw io.Reader, algo Algorithm) (io.ReadCloser, error) {
	switch algo {
	case None:
		return io.NopCloser(raw), nil
	case Gzip:
		r, err := gzip.NewReader(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return r, nil
	case Bzip2:
		r, err := bzip2.NewReader(raw, &bzip2.ReaderConfig{})
		if err != nil {
			return nil, fmt.Errorf("failed to create bzip2 reader: %w", err)
		}
		return r, nil
	case Xz:
		r, err := xz.NewReader(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		return io.NopCloser(r), nil
	default:
		return nil, ErrUnsupportedAlgorithm
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
