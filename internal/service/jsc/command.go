package jsc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/oshokin/jscript-net/internal/logger"
)

const outputDirPermissions = 0o755

// ErrCompilationFailed is returned when the compiler exits with a non-zero
// code or reports at least one error.
var ErrCompilationFailed = errors.New("compilation failed")

// Result is what one compiler run produced.
type Result struct {
	// ExitCode is the compiler process exit code.
	ExitCode int
	// Diagnostics holds every output line in the order it was read.
	Diagnostics []Diagnostic
}

// Errors returns the error diagnostics.
func (r *Result) Errors() []Diagnostic {
	return r.filter(SeverityError)
}

// Warnings returns the warning diagnostics.
func (r *Result) Warnings() []Diagnostic {
	return r.filter(SeverityWarning)
}

func (r *Result) filter(severity Severity) []Diagnostic {
	var out []Diagnostic

	for _, d := range r.Diagnostics {
		if d.Severity == severity {
			out = append(out, d)
		}
	}

	return out
}

// Run compiles task, logging each diagnostic at its severity. The returned
// Result is non-nil whenever the compiler started, even on failure.
func Run(ctx context.Context, task *Task) (*Result, error) {
	if task == nil {
		return nil, ErrNoSourceFiles
	}

	args, err := task.Arguments()
	if err != nil {
		return nil, err
	}

	ctx = logger.WithName(ctx, "jsc")

	if dir := task.outputDir(); dir != "" {
		if err = os.MkdirAll(dir, outputDirPermissions); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}

	if commandLine, lineErr := task.CommandLine(); lineErr == nil {
		logger.InfoKV(ctx, "Running compiler", "command_line", commandLine, "dir", task.WorkingDir)
	}

	//nolint:gosec // Running the configured compiler is the purpose of the task.
	cmd := exec.CommandContext(ctx, task.JscExe, args...)
	cmd.Dir = task.WorkingDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("attach compiler stdout: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("attach compiler stderr: %w", err)
	}

	if err = cmd.Start(); err != nil {
		return nil, fmt.Errorf("start compiler %s: %w", task.JscExe, err)
	}

	c := &collector{}

	var wg sync.WaitGroup

	for _, r := range []io.Reader{stdout, stderr} {
		r := r
		wg.Add(1)

		go func() {
			defer wg.Done()

			c.scan(ctx, r)
		}()
	}

	// Pipes must be drained before Wait closes them.
	wg.Wait()

	waitErr := cmd.Wait()

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return nil, fmt.Errorf("wait for compiler: %w", waitErr)
	}

	result := &Result{
		ExitCode:    cmd.ProcessState.ExitCode(),
		Diagnostics: c.diagnostics,
	}

	// A killed compiler is not a failed compilation.
	if err = ctx.Err(); err != nil {
		return result, fmt.Errorf("compiler interrupted: %w", err)
	}

	errorCount, warningCount := len(result.Errors()), len(result.Warnings())

	if result.ExitCode != 0 || errorCount > 0 {
		return result, fmt.Errorf("exit code %d, %d error(s), %d warning(s): %w",
			result.ExitCode, errorCount, warningCount, ErrCompilationFailed)
	}

	logger.InfoKV(ctx, "Compilation succeeded", "warnings", warningCount, "out", task.Out)

	return result, nil
}

// collector gathers diagnostics from both compiler streams.
type collector struct {
	mu          sync.Mutex
	diagnostics []Diagnostic
}

func (c *collector) scan(ctx context.Context, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		d := ParseDiagnostic(scanner.Text())
		if d.Raw == "" {
			continue
		}

		logDiagnostic(ctx, d)

		c.mu.Lock()
		c.diagnostics = append(c.diagnostics, d)
		c.mu.Unlock()
	}

	if err := scanner.Err(); err != nil {
		logger.WarnKV(ctx, "Reading compiler output failed", "error", err)
	}
}

func logDiagnostic(ctx context.Context, d Diagnostic) {
	switch d.Severity {
	case SeverityError:
		logger.ErrorKV(ctx, d.Text, "origin", d.Origin, "line", d.Line, "column", d.Column, "code", d.Code)
	case SeverityWarning:
		logger.WarnKV(ctx, d.Text, "origin", d.Origin, "line", d.Line, "column", d.Column, "code", d.Code)
	case SeverityInfo:
		logger.InfoKV(ctx, d.Text, "origin", d.Origin, "code", d.Code)
	default:
		logger.Debug(ctx, d.Text)
	}
}
