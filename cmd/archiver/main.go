// Command archiver creates, extracts and validates archives from the command
// line and prints the outcome as a JSON object.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	platformerrors "github.com/jmgilman/go/errors"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/jmgilman/go/archive"
)

type compressOutput struct {
	Path      string         `json:"path"`
	Size      int64          `json:"size"`
	FileCount int            `json:"fileCount"`
	Format    archive.Format `json:"format"`
}

type extractOutput struct {
	Path      string         `json:"path"`
	FileCount int            `json:"fileCount"`
	Files     []string       `json:"files"`
	Format    archive.Format `json:"format"`
}

type validOutput struct {
	Valid bool `json:"valid"`
}

type errorOutput struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type compressArgs struct {
	src      *string
	dest     *string
	format   *string
	password *string
	level    *int
}

type extractArgs struct {
	src       *string
	dest      *string
	format    *string
	password  *string
	overwrite *bool
}

type validArgs struct {
	src    *string
	format *string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run parses args, performs one operation and writes its JSON result to
// stdout. It returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	app := kingpin.New("archiver", "Create, extract and validate zip, tar, tar.gz, tar.bz2 and tar.xz archives")
	app.UsageWriter(stderr)
	app.ErrorWriter(stderr)

	baseDir := app.Flag("base-dir", "Directory relative paths are resolved against (defaults to CWD)").String()
	verbose := app.Flag("verbose", "Log every entry to stderr").Short('v').Bool()

	compressCmd := app.Command("compress", "Create an archive from a file or directory")
	compress := compressArgs{
		src:      compressCmd.Arg("src", "File or directory to archive").Required().String(),
		dest:     compressCmd.Arg("dest", "Archive file to create").Required().String(),
		format:   compressCmd.Flag("format", "zip, tar, tar.gz, tar.bz2 or tar.xz (detected from dest if empty)").Short('f').String(),
		password: compressCmd.Flag("password", "Encrypt zip entries with this password").Short('p').String(),
		level:    compressCmd.Flag("level", "Zip compression level: 1 fastest, 9 best, anything else normal").Short('l').Default("6").Int(),
	}

	extractCmd := app.Command("extract", "Extract an archive into a directory")
	extract := extractArgs{
		src:       extractCmd.Arg("src", "Archive file to extract").Required().String(),
		dest:      extractCmd.Arg("dest", "Directory to extract into").Required().String(),
		format:    extractCmd.Flag("format", "Archive format (detected from src if empty)").Short('f').String(),
		password:  extractCmd.Flag("password", "Password for encrypted zip entries").Short('p').String(),
		overwrite: extractCmd.Flag("overwrite", "Replace existing files (--no-overwrite keeps them)").Default("true").Bool(),
	}

	validCmd := app.Command("is-valid", "Check whether a file is a readable archive")
	valid := validArgs{
		src:    validCmd.Arg("src", "Archive file to check").Required().String(),
		format: validCmd.Flag("format", "Archive format (detected from src if empty)").Short('f').String(),
	}

	zipCmd := app.Command("zip", "Create a zip archive (legacy alias of compress --format zip)")
	zipArgs := compressArgs{
		src:      zipCmd.Arg("src", "File or directory to archive").Required().String(),
		dest:     zipCmd.Arg("dest", "Archive file to create").Required().String(),
		password: zipCmd.Flag("password", "Encrypt entries with this password").Short('p').String(),
		level:    zipCmd.Flag("level", "Compression level: 1 fastest, 9 best, anything else normal").Short('l').Default("6").Int(),
	}

	unzipCmd := app.Command("unzip", "Extract a zip archive (legacy alias of extract --format zip)")
	unzipArgs := extractArgs{
		src:       unzipCmd.Arg("src", "Archive file to extract").Required().String(),
		dest:      unzipCmd.Arg("dest", "Directory to extract into").Required().String(),
		password:  unzipCmd.Flag("password", "Password for encrypted entries").Short('p').String(),
		overwrite: unzipCmd.Flag("overwrite", "Replace existing files (--no-overwrite keeps them)").Default("true").Bool(),
	}

	validZipCmd := app.Command("is-valid-zip", "Check a zip archive (legacy alias of is-valid --format zip)")
	validZipArgs := validArgs{
		src: validZipCmd.Arg("src", "Archive file to check").Required().String(),
	}

	cmd, err := app.Parse(args)
	if err != nil {
		fmt.Fprintf(stderr, "archiver: %s\n", err)
		return 2
	}

	logger := slog.New(slog.DiscardHandler)
	if *verbose {
		logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	r := &runner{
		archiver: archive.New(archive.WithLogger(logger)),
		baseDir:  *baseDir,
	}

	var out any
	switch cmd {
	case compressCmd.FullCommand():
		out, err = r.compress(compress, "")
	case extractCmd.FullCommand():
		out, err = r.extract(extract, "")
	case validCmd.FullCommand():
		out, err = r.isValid(valid, "")
	case zipCmd.FullCommand():
		out, err = r.compress(zipArgs, "zip")
	case unzipCmd.FullCommand():
		out, err = r.extract(unzipArgs, "zip")
	case validZipCmd.FullCommand():
		out, err = r.isValid(validZipArgs, "zip")
	}

	code := 0
	if err != nil {
		out = newErrorOutput(err)
		code = 1
	}
	if err := json.NewEncoder(stdout).Encode(out); err != nil {
		fmt.Fprintf(stderr, "archiver: failed to write result: %s\n", err)
		return 1
	}
	return code
}

type runner struct {
	archiver *archive.Archiver
	baseDir  string
}

func (r *runner) compress(a compressArgs, forced string) (*compressOutput, error) {
	src, err := r.resolve(*a.src)
	if err != nil {
		return nil, err
	}
	dest, err := r.resolve(*a.dest)
	if err != nil {
		return nil, err
	}
	if err := r.archiver.RequireSource("compress", src); err != nil {
		return nil, err
	}
	format, err := parseFormat(a.format, forced)
	if err != nil {
		return nil, err
	}

	res, err := r.archiver.Compress(archive.CompressRequest{
		Source:           src,
		Destination:      dest,
		Format:           format,
		Password:         *a.password,
		CompressionLevel: *a.level,
	})
	if err != nil {
		return nil, err
	}
	return &compressOutput{Path: res.OutputPath, Size: res.ByteSize, FileCount: res.FileCount, Format: res.Format}, nil
}

func (r *runner) extract(a extractArgs, forced string) (*extractOutput, error) {
	src, err := r.resolve(*a.src)
	if err != nil {
		return nil, err
	}
	dest, err := r.resolve(*a.dest)
	if err != nil {
		return nil, err
	}
	if err := r.archiver.RequireSource("extract", src); err != nil {
		return nil, err
	}
	format, err := parseFormat(a.format, forced)
	if err != nil {
		return nil, err
	}

	res, err := r.archiver.Extract(archive.ExtractRequest{
		Source:      src,
		Destination: dest,
		Format:      format,
		Password:    *a.password,
		Overwrite:   a.overwrite,
	})
	if err != nil {
		return nil, err
	}
	return &extractOutput{Path: res.OutputPath, FileCount: res.FileCount, Files: res.ExtractedPaths, Format: res.Format}, nil
}

func (r *runner) isValid(a validArgs, forced string) (*validOutput, error) {
	src, err := r.resolve(*a.src)
	if err != nil {
		return &validOutput{Valid: false}, nil
	}
	format, err := parseFormat(a.format, forced)
	if err != nil {
		return &validOutput{Valid: false}, nil
	}
	return &validOutput{Valid: r.archiver.IsValidArchive(archive.ValidateRequest{Source: src, Format: format})}, nil
}

// parseFormat returns the forced format when set, otherwise the flag value.
// An empty flag leaves the format to detection.
func parseFormat(flag *string, forced string) (archive.Format, error) {
	token := forced
	if token == "" && flag != nil {
		token = *flag
	}
	if token == "" {
		return archive.Format{}, nil
	}
	return archive.ParseFormat(token)
}

// resolve turns a plain path or file:// URI into an absolute path. Relative
// paths are taken relative to the base directory.
func (r *runner) resolve(p string) (string, error) {
	if strings.HasPrefix(p, "file://") {
		u, err := url.Parse(p)
		if err != nil {
			return "", fmt.Errorf("invalid file URI %q: %w", p, err)
		}
		p = filepath.FromSlash(u.Path)
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p), nil
	}

	base := r.baseDir
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to resolve working directory: %w", err)
		}
		base = wd
	}
	abs, err := filepath.Abs(filepath.Join(base, p))
	if err != nil {
		return "", fmt.Errorf("failed to resolve %q: %w", p, err)
	}
	return abs, nil
}

func newErrorOutput(err error) errorOutput {
	out := errorOutput{Error: err.Error()}
	if resp := platformerrors.ToJSON(err); resp != nil && resp.Code != string(platformerrors.CodeUnknown) {
		out.Code = resp.Code
	}
	return out
}
