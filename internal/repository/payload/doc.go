// Package payload implements the two storages of the custom project system:
// the zipped payload shipped next to the binaries and the installed copy on
// local disk.
//
// Both expose their version through the Source interface. An Archive holds an
// open file handle and must be closed; every method fails with ErrClosed after
// Close.
package payload
