// Package packager builds the payload archive consumed by the installer.
//
// It zips a project system directory tree with the version marker stored
// first, either taken from the tree or supplied by the caller. The archive is
// written to a temporary file and renamed into place, so a half-written
// archive never replaces a good one.
package packager
