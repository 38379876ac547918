package testutil

import (
	"archive/tar"
	"fmt"
	"os"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/jmgilman/go/archive/internal/codec"
)

// Entry is one member of a hand-built archive.
type Entry struct {
	Name    string
	Content string

	// Mode defaults to 0o644.
	Mode int64

	// Type is a tar type flag. Zero writes a regular file. Zip archives only
	// honour directories, written for names ending in "/".
	Type byte

	// Linkname is the target of a tar link entry.
	Linkname string
}

// WriteTar writes entries as a tar archive at path, compressed with algo.
// Entry names are written verbatim, so they may be unsafe.
func WriteTar(path string, algo codec.Algorithm, entries []Entry) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	cw, err := codec.WrapWriter(file, algo)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := cw.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	tw := tar.NewWriter(cw)
	defer func() {
		if cerr := tw.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for _, e := range entries {
		header := &tar.Header{
			Name:     e.Name,
			Mode:     e.Mode,
			Typeflag: e.Type,
			Linkname: e.Linkname,
			ModTime:  time.Now(),
		}
		if header.Mode == 0 {
			header.Mode = 0o644
		}
		if header.Typeflag == 0 {
			header.Typeflag = tar.TypeReg
		}
		if header.Typeflag == tar.TypeReg {
			header.Size = int64(len(e.Content))
		}

		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("failed to write header for %s: %w", e.Name, err)
		}
		if header.Size > 0 {
			if _, err := tw.Write([]byte(e.Content)); err != nil {
				return fmt.Errorf("failed to write content for %s: %w", e.Name, err)
			}
		}
	}
	return nil
}

// WriteZip writes entries as an unencrypted zip archive at path.
func WriteZip(path string, entries []Entry) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	zw := zip.NewWriter(file)
	defer func() {
		if cerr := zw.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for _, e := range entries {
		w, err := zw.Create(e.Name)
		if err != nil {
			return fmt.Errorf("failed to create zip entry %s: %w", e.Name, err)
		}
		if _, err := w.Write([]byte(e.Content)); err != nil {
			return fmt.Errorf("failed to write content for %s: %w", e.Name, err)
		}
	}
	return nil
}

// PathTraversalEntries returns entries whose names point outside the
// extraction root, followed by one legitimate file.
func PathTraversalEntries() []Entry {
	return []Entry{
		{Name: "../../../etc/passwd", Content: "malicious content"},
		{Name: "..\\..\\windows\\system32\\config\\sam", Content: "windows secrets"},
		{Name: "/etc/passwd", Content: "absolute path attack"},
		{Name: "subdir/../../../root.txt", Content: "nested traversal"},
		{Name: "normal-file.txt", Content: "legitimate content"},
	}
}

// EscapingEntry returns a single entry that climbs one level above the root.
func EscapingEntry() Entry {
	return Entry{Name: "../escaped.txt", Content: "outside"}
}

// FileCountEntries returns count small regular files.
func FileCountEntries(count int) []Entry {
	entries := make([]Entry, count)
	for i := range entries {
		entries[i] = Entry{Name: fmt.Sprintf("file-%05d.txt", i), Content: "x"}
	}
	return entries
}

// LargeFileEntry returns one entry of size bytes.
func LargeFileEntry(size int) Entry {
	return Entry{Name: "large.txt", Content: string(TextContent(size))}
}

// SpecialEntries returns a directory, a symlink, a hard link and a setuid
// file. Only the directory and the file should be materialised.
func SpecialEntries() []Entry {
	return []Entry{
		{Name: "bin/", Type: tar.TypeDir, Mode: 0o755},
		{Name: "bin/link", Type: tar.TypeSymlink, Linkname: "/etc/passwd"},
		{Name: "bin/hard", Type: tar.TypeLink, Linkname: "bin/tool"},
		{Name: "bin/tool", Content: "#!/bin/sh\n", Mode: 0o4755},
	}
}
