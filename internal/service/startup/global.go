package startup

import (
	"context"
	"io"
)

// global is the process-wide outcome of the project system deployment.
//
//nolint:gochecknoglobals // The host reads the deployment outcome from a later startup phase.
var global = NewOutcome("JScript.NET project system")

// Initialize runs step once for the process. See Outcome.Initialize.
func Initialize(ctx context.Context, step Step) error {
	return global.Initialize(ctx, step)
}

// Report hands the process-wide outcome to w once. See Outcome.Report.
func Report(ctx context.Context, w io.Writer) (bool, error) {
	return global.Report(ctx, w)
}

// Degraded reports whether the process-wide initialization failed.
func Degraded() bool {
	return global.Degraded()
}
