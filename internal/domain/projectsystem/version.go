package projectsystem

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// MarkerFilename is the version marker stored at the root of every payload.
const MarkerFilename = "version.txt"

const (
	minComponents = 2
	maxComponents = 4
)

// ErrInvalidVersion is returned when a version string cannot be parsed.
var ErrInvalidVersion = errors.New("invalid version")

// Version is a major.minor[.build[.revision]] identifier.
// The zero value is not a valid version; use ParseVersion.
type Version struct {
	v *goversion.Version
}

// ParseVersion parses a dotted version of two to four non-negative decimal
// components. Surrounding whitespace and a UTF-8 byte order mark are ignored.
func ParseVersion(s string) (Version, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(s, "\ufeff"))

	parts := strings.Split(raw, ".")
	if len(parts) < minComponents || len(parts) > maxComponents {
		return Version{}, fmt.Errorf("%q: want %d to %d components: %w", raw, minComponents, maxComponents, ErrInvalidVersion)
	}

	for _, part := range parts {
		if part == "" || strings.TrimLeft(part, "0123456789") != "" {
			return Version{}, fmt.Errorf("%q: component %q is not a number: %w", raw, part, ErrInvalidVersion)
		}

		if _, err := strconv.ParseInt(part, 10, 32); err != nil {
			return Version{}, fmt.Errorf("%q: component %q out of range: %w", raw, part, ErrInvalidVersion)
		}
	}

	v, err := goversion.NewVersion(raw)
	if err != nil {
		return Version{}, fmt.Errorf("%q: %w: %w", raw, ErrInvalidVersion, err)
	}

	return Version{v: v}, nil
}

// MustParseVersion is ParseVersion that panics on error. Intended for constants and tests.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}

	return v
}

// IsZero reports whether v was never parsed.
func (v Version) IsZero() bool {
	return v.v == nil
}

// Compare returns -1, 0 or 1. Missing trailing components compare as zero,
// so 1.0 and 1.0.0.0 are equal. A zero Version sorts before every parsed one.
func (v Version) Compare(other Version) int {
	switch {
	case v.v == nil && other.v == nil:
		return 0
	case v.v == nil:
		return -1
	case other.v == nil:
		return 1
	}

	return v.v.Compare(other.v)
}

// Less reports whether v is older than other.
func (v Version) Less(other Version) bool {
	return v.Compare(other) < 0
}

// String returns the version as it was written in the marker.
func (v Version) String() string {
	if v.v == nil {
		return ""
	}

	return v.v.Original()
}
