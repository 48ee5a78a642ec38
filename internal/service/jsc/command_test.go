package jsc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeCompilerEnv switches the test binary into a stand-in for jsc.exe.
const fakeCompilerEnv = "JSNET_FAKE_JSC"

func TestMain(m *testing.M) {
	if mode := os.Getenv(fakeCompilerEnv); mode != "" {
		os.Exit(fakeCompiler(mode, os.Args[1:]))
	}

	os.Exit(m.Run())
}

// fakeCompiler echoes its arguments and prints diagnostics chosen by mode.
func fakeCompiler(mode string, args []string) int {
	fmt.Println("Microsoft (R) JScript Compiler version 8.00.50727")

	for _, arg := range args {
		fmt.Println("arg=" + arg)
	}

	switch mode {
	case "warn":
		fmt.Println("main.js(1,1) : warning JS1187: Variable 'y' might not be initialized")

		return 0
	case "fail":
		fmt.Println(`main.js(3,5) : error JS1135: Variable 'x' has not been declared`)
		fmt.Fprintln(os.Stderr, "fatal error JS2017: Cannot continue")

		return 1
	case "exit":
		return 3
	case "hang":
		time.Sleep(time.Minute)

		return 0
	default:
		return 0
	}
}

func fakeTask(t *testing.T, mode string) *Task {
	t.Helper()

	t.Setenv(fakeCompilerEnv, mode)

	task := NewTask()
	task.JscExe = os.Args[0]
	task.WorkingDir = t.TempDir()
	task.Out = filepath.Join("bin", "app.exe")
	task.Files = []string{"main.js"}

	return task
}

func messages(r *Result) []string {
	var out []string

	for _, d := range r.Diagnostics {
		if d.Severity == SeverityMessage {
			out = append(out, d.Text)
		}
	}

	return out
}

func TestRun_Succeeds(t *testing.T) {
	task := fakeTask(t, "ok")

	result, err := Run(context.Background(), task)
	require.NoError(t, err)
	require.Zero(t, result.ExitCode)
	require.Empty(t, result.Errors())
	require.Contains(t, messages(result), "arg=/out:"+task.Out)
	require.Contains(t, messages(result), "arg=main.js")

	info, err := os.Stat(filepath.Join(task.WorkingDir, "bin"))
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestRun_WarningsDoNotFail(t *testing.T) {
	result, err := Run(context.Background(), fakeTask(t, "warn"))
	require.NoError(t, err)
	require.Len(t, result.Warnings(), 1)
	require.Equal(t, "JS1187", result.Warnings()[0].Code)
}

func TestRun_Errors(t *testing.T) {
	result, err := Run(context.Background(), fakeTask(t, "fail"))
	require.ErrorIs(t, err, ErrCompilationFailed)
	require.NotNil(t, result)
	require.Equal(t, 1, result.ExitCode)

	codes := make([]string, 0, 2)
	for _, d := range result.Errors() {
		codes = append(codes, d.Code)
	}

	require.ElementsMatch(t, []string{"JS1135", "JS2017"}, codes)
}

func TestRun_NonZeroExitWithoutDiagnostics(t *testing.T) {
	result, err := Run(context.Background(), fakeTask(t, "exit"))
	require.ErrorIs(t, err, ErrCompilationFailed)
	require.Equal(t, 3, result.ExitCode)
	require.ErrorContains(t, err, "exit code 3")
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	result, err := Run(ctx, fakeTask(t, "hang"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.NotErrorIs(t, err, ErrCompilationFailed)
	require.NotNil(t, result)
}

func TestRun_InvalidTask(t *testing.T) {
	t.Parallel()

	_, err := Run(context.Background(), NewTask())
	require.ErrorIs(t, err, ErrNoSourceFiles)

	_, err = Run(context.Background(), nil)
	require.ErrorIs(t, err, ErrNoSourceFiles)

	task := NewTask()
	task.Files = []string{"main.js"}
	task.JscExe = filepath.Join(t.TempDir(), "no-such-jsc")

	_, err = Run(context.Background(), task)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrCompilationFailed)
}
