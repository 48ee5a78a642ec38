package payload

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/jscript-net/internal/domain/projectsystem"
)

// Directory is an installed copy of the project system.
type Directory struct {
	// path is the root of the installation.
	path string
}

var _ Source = (*Directory)(nil)

// OpenDirectory returns the installed copy rooted at path.
// The directory must exist.
func OpenDirectory(path string) (*Directory, error) {
	if path == "" {
		return nil, fmt.Errorf("installation path is empty: %w", ErrInvalidArgument)
	}

	path = filepath.Clean(path)

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrInstallationNotFound)
		}

		return nil, fmt.Errorf("stat installation: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory: %w", path, ErrInstallationNotFound)
	}

	return &Directory{path: path}, nil
}

// Path returns the installation root.
func (d *Directory) Path() string {
	return d.path
}

// Version reads the installed version marker.
func (d *Directory) Version() (projectsystem.Version, error) {
	file, err := os.Open(filepath.Join(d.path, projectsystem.MarkerFilename))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return projectsystem.Version{}, fmt.Errorf("%s: %w", d.path, ErrInstalledMarkerMissing)
		}

		return projectsystem.Version{}, fmt.Errorf("open installed marker: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	contents, err := readMarker(file)
	if err == nil {
		var v projectsystem.Version

		if v, err = projectsystem.ParseVersion(contents); err == nil {
			return v, nil
		}
	}

	if errors.Is(err, projectsystem.ErrInvalidVersion) {
		return projectsystem.Version{}, fmt.Errorf("%s: %w: %w", d.path, ErrInstalledMarkerInvalid, err)
	}

	return projectsystem.Version{}, fmt.Errorf("read installed marker: %w", err)
}
