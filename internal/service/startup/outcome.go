package startup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/oshokin/jscript-net/internal/logger"
)

// errStepPanicked wraps a panic recovered from a startup step.
var errStepPanicked = errors.New("startup step panicked")

// Step is an initialization action, typically the deployment gate.
type Step func(ctx context.Context) error

// Outcome is the captured result of a one-time initialization.
type Outcome struct {
	// component names what becomes unavailable when the step fails.
	component string
	// once guards the single run of the step.
	once sync.Once
	// done is closed when the step has finished.
	done chan struct{}
	// err is the captured failure; written before done is closed.
	err error
	// reported flips once Report has consumed the outcome.
	reported atomic.Bool
}

// NewOutcome returns an empty outcome for component.
func NewOutcome(component string) *Outcome {
	return &Outcome{
		component: component,
		done:      make(chan struct{}),
	}
}

// Initialize runs step on the first call and returns its error on every call.
// Concurrent callers wait for the first run.
func (o *Outcome) Initialize(ctx context.Context, step Step) error {
	o.once.Do(func() {
		defer close(o.done)

		o.err = run(ctx, step)
		if o.err != nil {
			logger.WarnKV(ctx, "Initialization failed, continuing without it",
				"component", o.component, "error", o.err)
		}
	})

	<-o.done

	return o.err
}

// Degraded reports whether a finished initialization failed.
func (o *Outcome) Degraded() bool {
	select {
	case <-o.done:
		return o.err != nil
	default:
		return false
	}
}

// Report writes the captured failure to w. Only the first call reads the
// outcome; it waits for Initialize to finish or ctx to end. The result is
// true when a failure was written.
func (o *Outcome) Report(ctx context.Context, w io.Writer) (bool, error) {
	select {
	case <-o.done:
	case <-ctx.Done():
		return false, ctx.Err()
	}

	if !o.reported.CompareAndSwap(false, true) || o.err == nil {
		return false, nil
	}

	logger.ErrorKV(ctx, "Reporting initialization failure", "component", o.component, "error", o.err)

	if _, err := fmt.Fprintf(w, "%s is unavailable: %v\n", o.component, o.err); err != nil {
		return true, fmt.Errorf("write report: %w", err)
	}

	return true, nil
}

// ReportWhenReady reports on a separate goroutine once ready is closed.
// The returned channel yields Report's error and is then closed.
func (o *Outcome) ReportWhenReady(ctx context.Context, ready <-chan struct{}, w io.Writer) <-chan error {
	result := make(chan error, 1)

	go func() {
		defer close(result)

		select {
		case <-ready:
		case <-ctx.Done():
			result <- ctx.Err()
			return
		}

		_, err := o.Report(ctx, w)
		result <- err
	}()

	return result
}

// run invokes step and converts a panic into an error.
func run(ctx context.Context, step Step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errStepPanicked, r)
		}
	}()

	return step(ctx)
}
