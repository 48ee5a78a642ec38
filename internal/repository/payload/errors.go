package payload

import "errors"

var (
	// ErrInvalidArgument is returned for empty path inputs.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrArchiveNotFound is returned when the packaged archive does not exist.
	ErrArchiveNotFound = errors.New("packaged archive not found")
	// ErrInvalidArchive is returned when the archive or one of its entries is corrupt.
	ErrInvalidArchive = errors.New("invalid packaged archive")
	// ErrPackageMarkerMissing is returned when the archive has no version marker.
	ErrPackageMarkerMissing = errors.New("packaged archive has no version marker")
	// ErrInstallationNotFound is returned when the installation directory does not exist.
	ErrInstallationNotFound = errors.New("installation directory not found")
	// ErrInstalledMarkerMissing is returned when the installed copy has no version marker.
	ErrInstalledMarkerMissing = errors.New("installed copy has no version marker")
	// ErrInstalledMarkerInvalid is returned when the installed version marker cannot be parsed.
	ErrInstalledMarkerInvalid = errors.New("installed version marker is invalid")
	// ErrClosed is returned when an Archive is used after Close.
	ErrClosed = errors.New("packaged archive is closed")
	// ErrPathEscape is returned when an entry would be written outside the target directory.
	ErrPathEscape = errors.New("archive entry escapes target directory")
	// ErrInvalidEntryName is returned for empty or malformed entry names.
	ErrInvalidEntryName = errors.New("invalid archive entry name")
	// ErrEntryCollision is returned when an entry targets a path that already exists.
	ErrEntryCollision = errors.New("archive entry already exists")
)
