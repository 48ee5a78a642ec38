package payload

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/oshokin/jscript-net/internal/domain/projectsystem"
)

// Archive is the zipped payload opened read-only.
type Archive struct {
	// path is the location of the zip file.
	path string
	// file is the open handle released by Close.
	file *os.File
	// reader indexes the zip central directory of file.
	reader *zip.Reader
	// mu guards closed and serialises access to file.
	mu sync.Mutex
	// closed is set once Close has run.
	closed bool
}

var _ Source = (*Archive)(nil)

// plannedEntry is an archive entry paired with its validated destination.
type plannedEntry struct {
	file   *zip.File
	target string
	isDir  bool
}

// OpenArchive opens the zip file at path for reading.
// The caller must Close the returned Archive.
func OpenArchive(path string) (*Archive, error) {
	if path == "" {
		return nil, fmt.Errorf("archive path is empty: %w", ErrInvalidArgument)
	}

	path = filepath.Clean(path)

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrArchiveNotFound)
		}

		return nil, fmt.Errorf("open archive: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("stat archive: %w", err)
	}

	if info.IsDir() {
		_ = file.Close()

		return nil, fmt.Errorf("%s is a directory: %w", path, ErrArchiveNotFound)
	}

	// Insecure names are tolerated here and rejected by ExtractTo.
	reader, err := zip.NewReader(file, info.Size())
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		_ = file.Close()

		return nil, fmt.Errorf("%s: %w: %w", path, ErrInvalidArchive, err)
	}

	return &Archive{
		path:   path,
		file:   file,
		reader: reader,
	}, nil
}

// Path returns the location of the zip file.
func (a *Archive) Path() string {
	return a.path
}

// Close releases the file handle. Closing twice is a no-op.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}

	a.closed = true
	a.reader = nil

	if err := a.file.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}

	return nil
}

// Entries lists entry names in archive order.
func (a *Archive) Entries() ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, ErrClosed
	}

	names := make([]string, 0, len(a.reader.File))
	for _, f := range a.reader.File {
		names = append(names, f.Name)
	}

	return names, nil
}

// Version reads the version marker stored at the archive root.
func (a *Archive) Version() (projectsystem.Version, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return projectsystem.Version{}, ErrClosed
	}

	marker := a.marker()
	if marker == nil {
		return projectsystem.Version{}, fmt.Errorf("%s: %w", a.path, ErrPackageMarkerMissing)
	}

	rc, err := marker.Open()
	if err != nil {
		return projectsystem.Version{}, archiveError(err)
	}

	defer func() {
		_ = rc.Close()
	}()

	contents, err := readMarker(rc)
	if err != nil {
		return projectsystem.Version{}, fmt.Errorf("%s: %w", a.path, archiveError(err))
	}

	v, err := projectsystem.ParseVersion(contents)
	if err != nil {
		return projectsystem.Version{}, fmt.Errorf("%s: %w", a.path, err)
	}

	return v, nil
}

// ExtractTo writes every entry under dir, creating it when missing.
// All names are validated up front, so a path escape writes nothing.
// Existing files are never overwritten. The version marker goes last, so a
// directory holding a marker has been extracted completely.
func (a *Archive) ExtractTo(dir string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}

	if dir == "" {
		return fmt.Errorf("target directory is empty: %w", ErrInvalidArgument)
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve target directory: %w", err)
	}

	entries, marker, err := a.plan(root)
	if err != nil {
		return err
	}

	if err = os.MkdirAll(root, DefaultDirPermissions); err != nil {
		return fmt.Errorf("create target directory: %w", err)
	}

	for _, entry := range entries {
		if entry.isDir {
			err = extractDir(entry.target)
		} else {
			err = extractFile(entry.file, entry.target)
		}

		if err != nil {
			return fmt.Errorf("extract %s: %w", entry.file.Name, err)
		}
	}

	if marker == nil {
		return nil
	}

	if err = extractFile(marker.file, marker.target); err != nil {
		return fmt.Errorf("extract %s: %w", marker.file.Name, err)
	}

	return nil
}

// marker finds the root version marker entry.
func (a *Archive) marker() *zip.File {
	for _, f := range a.reader.File {
		if normalizeName(f.Name) == projectsystem.MarkerFilename {
			return f
		}
	}

	return nil
}

// plan resolves every entry to a destination under root and rejects the
// archive on the first unsafe or colliding name.
func (a *Archive) plan(root string) ([]plannedEntry, *plannedEntry, error) {
	var (
		entries = make([]plannedEntry, 0, len(a.reader.File))
		seen    = make(map[string]struct{}, len(a.reader.File))
		marker  *plannedEntry
	)

	for _, f := range a.reader.File {
		entry, err := planEntry(root, f)
		if err != nil {
			return nil, nil, err
		}

		if entry.target == root {
			continue
		}

		if !entry.isDir {
			key := entry.target
			if runtime.GOOS == "windows" {
				key = strings.ToLower(key)
			}

			if _, dup := seen[key]; dup {
				return nil, nil, fmt.Errorf("%q is stored twice: %w", f.Name, ErrEntryCollision)
			}

			seen[key] = struct{}{}
		}

		if !entry.isDir && normalizeName(f.Name) == projectsystem.MarkerFilename {
			marker = &entry
			continue
		}

		entries = append(entries, entry)
	}

	return entries, marker, nil
}

// planEntry validates a single entry name against root.
func planEntry(root string, f *zip.File) (plannedEntry, error) {
	name := strings.ReplaceAll(f.Name, `\`, "/")
	if strings.TrimSpace(name) == "" {
		return plannedEntry{}, fmt.Errorf("%q: %w", f.Name, ErrInvalidEntryName)
	}

	if path.IsAbs(name) || hasDriveLetter(name) {
		return plannedEntry{}, fmt.Errorf("%q is absolute: %w", f.Name, ErrPathEscape)
	}

	isDir := strings.HasSuffix(name, "/") || f.FileInfo().IsDir()
	target := filepath.Join(root, filepath.FromSlash(name))

	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return plannedEntry{}, fmt.Errorf("%q: %w", f.Name, ErrPathEscape)
	}

	if rel == "." && !isDir {
		return plannedEntry{}, fmt.Errorf("%q resolves to the target directory: %w", f.Name, ErrInvalidEntryName)
	}

	return plannedEntry{file: f, target: target, isDir: isDir}, nil
}

// extractDir creates a directory entry.
func extractDir(target string) error {
	if info, err := os.Stat(target); err == nil && !info.IsDir() {
		return fmt.Errorf("%s is a file: %w", target, ErrEntryCollision)
	}

	return os.MkdirAll(target, DefaultDirPermissions)
}

// extractFile copies a file entry to a target that must not exist yet.
func extractFile(f *zip.File, target string) (err error) {
	if err = os.MkdirAll(filepath.Dir(target), DefaultDirPermissions); err != nil {
		return err
	}

	out, err := createExclusive(target)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	rc, err := f.Open()
	if err != nil {
		return archiveError(err)
	}

	defer func() {
		_ = rc.Close()
	}()

	//nolint:gosec // Payload archives are produced by the packager and shipped with the binaries.
	if _, err = io.Copy(out, rc); err != nil {
		return archiveError(err)
	}

	return nil
}

// createExclusive creates target, failing with ErrEntryCollision when it exists.
func createExclusive(target string) (*os.File, error) {
	out, err := os.OpenFile(filepath.Clean(target), os.O_WRONLY|os.O_CREATE|os.O_EXCL, DefaultFilePermissions)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%s: %w", target, ErrEntryCollision)
		}

		return nil, err
	}

	return out, nil
}

// archiveError tags zip decoding failures with ErrInvalidArchive.
func archiveError(err error) error {
	if errors.Is(err, zip.ErrChecksum) || errors.Is(err, zip.ErrFormat) ||
		errors.Is(err, zip.ErrAlgorithm) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %w", ErrInvalidArchive, err)
	}

	return err
}

// normalizeName maps an entry name to its slash-separated clean form.
func normalizeName(name string) string {
	return path.Clean(strings.ReplaceAll(name, `\`, "/"))
}

// hasDriveLetter reports names such as "C:/x" or "C:x".
func hasDriveLetter(name string) bool {
	if len(name) < 2 || name[1] != ':' {
		return false
	}

	c := name[0]

	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
