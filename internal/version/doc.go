// Package version carries build metadata of the jsnet binaries.
//
// Version, Commit and BuildTime are injected with -ldflags "-X ..." and keep
// placeholder values in local builds. This is the version of the tooling
// itself, not of the deployed project system payload, which is read from the
// payload's version.txt.
package version
