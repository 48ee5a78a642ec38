// Package startup runs the project system deployment once per process and
// keeps its outcome for a later diagnostic step.
//
// Initialize never aborts the caller: a failing or panicking step is captured
// and the host carries on without the custom project type. Report hands the
// captured failure to the host output channel exactly once, possibly from a
// different goroutine after the host UI is ready.
package startup
