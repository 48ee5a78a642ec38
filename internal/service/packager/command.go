package packager

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/jscript-net/internal/config"
	"github.com/oshokin/jscript-net/internal/domain/projectsystem"
	"github.com/oshokin/jscript-net/internal/logger"

	// Ensure SHA512 available for checksum calculation.
	_ "crypto/sha512"
)

const (
	// DefaultArchiveMode is the mode of the written archive.
	DefaultArchiveMode os.FileMode = 0o644

	// DefaultChecksumFunction verifies the archive before it replaces the old one.
	DefaultChecksumFunction crypto.Hash = crypto.SHA512
)

// Options contains inputs for the packager entry point.
type Options struct {
	// SourceDir is the project system tree to pack.
	SourceDir string
	// OutputPath is the archive to write; defaults to CustomBuildSystem.zip in the working directory.
	OutputPath string
	// Version overrides the version marker of SourceDir when set.
	Version string
}

// Result describes a written archive.
type Result struct {
	// OutputPath is the absolute path of the archive.
	OutputPath string
	// Version is the marker stored in the archive.
	Version projectsystem.Version
	// Entries counts files and directories stored, the marker included.
	Entries int
}

var (
	// errSourceNotDirectory is returned when SourceDir is missing or a file.
	errSourceNotDirectory = errors.New("source must be a directory")
	// errOutputInsideSource is returned when the archive would be packed into itself.
	errOutputInsideSource = errors.New("output archive must be outside the source directory")
	// errUnsupportedFile is returned for symlinks, devices and other non-regular files.
	errUnsupportedFile = errors.New("only regular files and directories can be packed")
	// errHashUnavailable is returned when the checksum function is not linked in.
	errHashUnavailable = errors.New("hash function unavailable")
	// errOptionsNotSet is returned when Run gets no options.
	errOptionsNotSet = errors.New("packager options are not set")
)

// archiver holds the state of a single packaging run.
type archiver struct {
	// source is the absolute root of the tree being packed.
	source string
	// marker is the version written as version.txt.
	marker projectsystem.Version
	// writer receives the entries.
	writer *zip.Writer
	// entries counts what has been written.
	entries int
}

// Run packs opts.SourceDir into opts.OutputPath.
func Run(ctx context.Context, opts *Options) (*Result, error) {
	ctx = logger.WithName(ctx, "packager")

	if opts == nil {
		return nil, errOptionsNotSet
	}

	source, output, err := resolvePaths(opts)
	if err != nil {
		return nil, err
	}

	marker, err := resolveVersion(source, opts.Version)
	if err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Packing project system", "source", source, "version", marker.String())

	entries, err := writeArchive(source, output, marker)
	if err != nil {
		return nil, err
	}

	result := &Result{
		OutputPath: output,
		Version:    marker,
		Entries:    entries,
	}

	printNextSteps(ctx, result)

	return result, nil
}

// resolvePaths validates the source tree and the archive location.
func resolvePaths(opts *Options) (string, string, error) {
	source, err := filepath.Abs(opts.SourceDir)
	if err != nil {
		return "", "", fmt.Errorf("resolve source: %w", err)
	}

	info, err := os.Stat(source)
	if err != nil || !info.IsDir() {
		return "", "", fmt.Errorf("%s: %w", source, errSourceNotDirectory)
	}

	outputPath := opts.OutputPath
	if outputPath == "" {
		outputPath = config.DefaultArchiveFilename
	}

	output, err := filepath.Abs(outputPath)
	if err != nil {
		return "", "", fmt.Errorf("resolve output: %w", err)
	}

	if rel, err := filepath.Rel(source, output); err == nil && rel != ".." &&
		!strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", "", fmt.Errorf("%s: %w", output, errOutputInsideSource)
	}

	return source, output, nil
}

// resolveVersion picks the explicit version or the marker found in source.
func resolveVersion(source, explicit string) (projectsystem.Version, error) {
	if explicit != "" {
		return projectsystem.ParseVersion(explicit)
	}

	contents, err := os.ReadFile(filepath.Join(source, projectsystem.MarkerFilename))
	if err != nil {
		return projectsystem.Version{}, fmt.Errorf("read source version marker: %w", err)
	}

	return projectsystem.ParseVersion(string(contents))
}

// writeArchive zips source in memory and swaps it over output with go-update,
// which verifies the checksum before the new archive replaces the old one.
func writeArchive(source, output string, marker projectsystem.Version) (int, error) {
	if err := os.MkdirAll(filepath.Dir(output), config.DefaultDirPermissions); err != nil {
		return 0, fmt.Errorf("create output directory: %w", err)
	}

	var buf bytes.Buffer

	a := &archiver{
		source: source,
		marker: marker,
		writer: zip.NewWriter(&buf),
	}

	if err := a.pack(); err != nil {
		return 0, err
	}

	if err := a.writer.Close(); err != nil {
		return 0, fmt.Errorf("finish archive: %w", err)
	}

	checksum, err := archiveChecksum(buf.Bytes())
	if err != nil {
		return 0, err
	}

	created, err := ensureTarget(output)
	if err != nil {
		return 0, err
	}

	options := goupdate.Options{
		TargetPath: output,
		TargetMode: DefaultArchiveMode,
		Checksum:   checksum,
		Hash:       DefaultChecksumFunction,
	}

	if err = goupdate.Apply(bytes.NewReader(buf.Bytes()), options); err != nil {
		if created {
			_ = os.Remove(output)
		}

		return 0, fmt.Errorf("move archive into place: %w", err)
	}

	oldFileName := filepath.Join(filepath.Dir(output), "."+filepath.Base(output)+".old")
	if _, err = os.Stat(oldFileName); err == nil {
		_ = os.Remove(oldFileName)
	}

	return a.entries, nil
}

// archiveChecksum hashes data with DefaultChecksumFunction.
func archiveChecksum(data []byte) ([]byte, error) {
	if !DefaultChecksumFunction.Available() {
		return nil, errHashUnavailable
	}

	h := DefaultChecksumFunction.New()
	_, _ = h.Write(data)

	return h.Sum(nil), nil
}

// ensureTarget creates an empty output file when none exists, since go-update
// only replaces existing files. created reports whether it did.
func ensureTarget(output string) (bool, error) {
	if _, err := os.Stat(output); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat output archive: %w", err)
	}

	f, err := os.OpenFile(filepath.Clean(output), os.O_WRONLY|os.O_CREATE|os.O_EXCL, DefaultArchiveMode)
	if err != nil {
		return false, fmt.Errorf("create output archive: %w", err)
	}

	if err = f.Close(); err != nil {
		return true, fmt.Errorf("create output archive: %w", err)
	}

	return true, nil
}

// pack writes the marker first, then the tree in lexical order.
func (a *archiver) pack() error {
	w, err := a.writer.CreateHeader(&zip.FileHeader{
		Name:   projectsystem.MarkerFilename,
		Method: zip.Deflate,
	})
	if err != nil {
		return fmt.Errorf("write version marker: %w", err)
	}

	if _, err = io.WriteString(w, a.marker.String()); err != nil {
		return fmt.Errorf("write version marker: %w", err)
	}

	a.entries++

	return filepath.WalkDir(a.source, a.visit)
}

// visit stores a single directory or file.
func (a *archiver) visit(path string, d fs.DirEntry, err error) error {
	if err != nil {
		return err
	}

	rel, err := filepath.Rel(a.source, path)
	if err != nil {
		return err
	}

	name := filepath.ToSlash(rel)
	if name == "." || name == projectsystem.MarkerFilename {
		return nil
	}

	info, err := d.Info()
	if err != nil {
		return err
	}

	switch {
	case d.IsDir():
		return a.addDir(name, info)
	case info.Mode().IsRegular():
		return a.addFile(path, name, info)
	default:
		return fmt.Errorf("%s: %w", name, errUnsupportedFile)
	}
}

func (a *archiver) addDir(name string, info fs.FileInfo) error {
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}

	header.Name = name + "/"

	if _, err = a.writer.CreateHeader(header); err != nil {
		return fmt.Errorf("add %s: %w", header.Name, err)
	}

	a.entries++

	return nil
}

func (a *archiver) addFile(path, name string, info fs.FileInfo) error {
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}

	header.Name = name
	header.Method = zip.Deflate

	w, err := a.writer.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}

	in, err := os.Open(filepath.Clean(path))
	if err != nil {
		return err
	}

	defer func() {
		_ = in.Close()
	}()

	if _, err = io.Copy(w, in); err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}

	a.entries++

	return nil
}

// printNextSteps logs where the archive has to be shipped.
func printNextSteps(ctx context.Context, result *Result) {
	var builder strings.Builder

	builder.WriteString("Project system ")
	builder.WriteString(result.Version.String())
	builder.WriteString(" packed into ")
	builder.WriteString(result.OutputPath)
	builder.WriteString(".\nShip it next to jsnet-installer as ")
	builder.WriteString(config.DefaultArchiveFilename)
	builder.WriteString(" or point archive_path in the settings file at it.\nProjects with the .")
	builder.WriteString(config.ProjectExtension)
	builder.WriteString(" extension build with it after jsnet-installer ensure.")

	logger.Info(ctx, builder.String())
}
