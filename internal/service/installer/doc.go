// Package installer deploys the custom project system payload.
//
// Gate compares the version marker of the bundled archive with the one of the
// installed copy and, when the copy is missing or stale, replaces it as a
// whole: the archive is extracted into a staging directory, the old copy is
// deleted and the staging directory is renamed into place. Run wires the gate
// to the YAML settings for the CLI.
package installer
