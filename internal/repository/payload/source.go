package payload

import (
	"fmt"
	"io"

	"github.com/oshokin/jscript-net/internal/domain/projectsystem"
)

// Source is a payload that knows its own version.
type Source interface {
	Version() (projectsystem.Version, error)
}

// DefaultFilePermissions is the mode of extracted files.
const DefaultFilePermissions = 0o644

// DefaultDirPermissions is the mode of extracted directories.
const DefaultDirPermissions = 0o755

// maxMarkerSize bounds how much of a version marker is read into memory.
const maxMarkerSize = 4 << 10

// readMarker reads a whole version marker. A marker longer than
// maxMarkerSize is rejected instead of being cut short.
func readMarker(r io.Reader) (string, error) {
	contents, err := io.ReadAll(io.LimitReader(r, maxMarkerSize+1))
	if err != nil {
		return "", err
	}

	if len(contents) > maxMarkerSize {
		return "", fmt.Errorf("marker exceeds %d bytes: %w", maxMarkerSize, projectsystem.ErrInvalidVersion)
	}

	return string(contents), nil
}
