package archive

import (
	"strings"

	"github.com/jmgilman/go/archive/internal/codec"
)

type container int

const (
	containerZip container = iota + 1
	containerTar
)

// Format is one of the five supported archive formats. Each value carries the
// container it writes and the compression layered under it. The zero Format
// means "not specified" and asks the Archiver to detect the format from a
// file name.
type Format struct {
	name        string
	ext         string
	container   container
	compression codec.Algorithm
}

// Supported formats.
var (
	Zip    = Format{name: "zip", ext: ".zip", container: containerZip, compression: codec.None}
	Tar    = Format{name: "tar", ext: ".tar", container: containerTar, compression: codec.None}
	TarGz  = Format{name: "tar.gz", ext: ".tar.gz", container: containerTar, compression: codec.Gzip}
	TarBz2 = Format{name: "tar.bz2", ext: ".tar.bz2", container: containerTar, compression: codec.Bzip2}
	TarXz  = Format{name: "tar.xz", ext: ".tar.xz", container: containerTar, compression: codec.Xz}
)

// formatTokens maps every accepted format token, lower-cased, to its format.
var formatTokens = map[string]Format{
	"zip":     Zip,
	"tar":     Tar,
	"tar.gz":  TarGz,
	"tgz":     TarGz,
	"tar.bz2": TarBz2,
	"tbz2":    TarBz2,
	"tar.xz":  TarXz,
	"txz":     TarXz,
}

// detectSuffixes is checked in order, so compound suffixes win over ".tar".
var detectSuffixes = []struct {
	suffix string
	format Format
}{
	{".tar.gz", TarGz},
	{".tgz", TarGz},
	{".tar.bz2", TarBz2},
	{".tbz2", TarBz2},
	{".tar.xz", TarXz},
	{".txz", TarXz},
	{".tar", Tar},
	{".zip", Zip},
}

// ParseFormat returns the format named by s, ignoring case and surrounding
// whitespace. The short aliases tgz, tbz2 and txz are accepted. Any other
// token fails with ErrUnsupportedFormat.
func ParseFormat(s string) (Format, error) {
	if f, ok := formatTokens[strings.ToLower(strings.TrimSpace(s))]; ok {
		return f, nil
	}
	return Format{}, unsupportedFormat("parse", s)
}

// DetectFormat infers the format from the suffix of name, ignoring case. Names
// without a recognised suffix are treated as zip archives.
func DetectFormat(name string) Format {
	lower := strings.ToLower(name)
	for _, d := range detectSuffixes {
		if strings.HasSuffix(lower, d.suffix) {
			return d.format
		}
	}
	return Zip
}

// String returns the canonical token for f, or "auto" for the zero Format.
func (f Format) String() string {
	if f.IsZero() {
		return "auto"
	}
	return f.name
}

// Extension returns the canonical file suffix for f, including the leading dot.
func (f Format) Extension() string {
	return f.ext
}

// IsZero reports whether f is the unspecified format.
func (f Format) IsZero() bool {
	return f == Format{}
}

// MarshalText encodes f as its canonical token.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// resolve returns f, or the format detected from name when f is unspecified.
func (f Format) resolve(name string) Format {
	if f.IsZero() {
		return DetectFormat(name)
	}
	return f
}

// UnmarshalText decodes a format token accepted by ParseFormat.
func (f *Format) UnmarshalText(text []byte) error {
	parsed, err := ParseFormat(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
