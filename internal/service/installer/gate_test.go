package installer

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"

	"github.com/mitchellh/go-ps"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/jscript-net/internal/domain/projectsystem"
	"github.com/oshokin/jscript-net/internal/repository/payload"
)

var errTestProcesses = errors.New("test process listing error")

// fakeProcess is a minimal ps.Process for the locking check.
type fakeProcess struct {
	pid  int
	name string
}

func (p fakeProcess) Pid() int           { return p.pid }
func (p fakeProcess) PPid() int          { return 0 }
func (p fakeProcess) Executable() string { return p.name }

// fixture is an archive next to an installation root inside a temp directory.
type fixture struct {
	root        string
	archivePath string
	installPath string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	root := t.TempDir()

	return &fixture{
		root:        root,
		archivePath: filepath.Join(root, "CustomBuildSystem.zip"),
		installPath: filepath.Join(root, "LocalAppData", "CustomProjectSystems", "JScript.NET"),
	}
}

// writeArchive stores files (name -> body) in the fixture archive.
func (f *fixture) writeArchive(t *testing.T, files map[string]string) {
	t.Helper()

	out, err := os.Create(f.archivePath)
	require.NoError(t, err)

	w := zip.NewWriter(out)

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		entry, err := w.Create(name)
		require.NoError(t, err)

		_, err = entry.Write([]byte(files[name]))
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())
	require.NoError(t, out.Close())
}

// install creates an installed copy holding marker (skipped when empty) and extra files.
func (f *fixture) install(t *testing.T, marker string, extra ...string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(f.installPath, 0o750))

	if marker != "" {
		require.NoError(t, os.WriteFile(filepath.Join(f.installPath, projectsystem.MarkerFilename), []byte(marker), 0o600))
	}

	for _, name := range extra {
		require.NoError(t, os.WriteFile(filepath.Join(f.installPath, name), []byte(name), 0o600))
	}
}

func (f *fixture) gate(t *testing.T, opts ...Option) *Gate {
	t.Helper()

	g, err := NewGate(f.archivePath, f.installPath, opts...)
	require.NoError(t, err)

	return g
}

// requireReleased checks that nothing holds the archive open. Where the
// process descriptor table is visible it is searched for the archive; the
// rename round-trip additionally fails on Windows while a handle is open.
func (f *fixture) requireReleased(t *testing.T) {
	t.Helper()

	if count, ok := openHandles(t, f.archivePath); ok {
		require.Zero(t, count, "archive is still open")
	}

	moved := f.archivePath + ".moved"
	require.NoError(t, os.Rename(f.archivePath, moved))
	require.NoError(t, os.Rename(moved, f.archivePath))
}

// openHandles counts descriptors of this process that point at path.
// ok is false where /proc/self/fd is unavailable.
func openHandles(t *testing.T, path string) (int, bool) {
	t.Helper()

	const fdDir = "/proc/self/fd"

	entries, err := os.ReadDir(fdDir)
	if err != nil {
		return 0, false
	}

	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		resolved = path
	}

	count := 0

	for _, entry := range entries {
		link, err := os.Readlink(filepath.Join(fdDir, entry.Name()))
		if err == nil && (link == path || link == resolved) {
			count++
		}
	}

	return count, true
}

// TestOpenHandles_SeesOpenFile makes sure the release check can fail.
func TestOpenHandles_SeesOpenFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "held.zip")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	held, err := os.Open(path)
	require.NoError(t, err)

	count, ok := openHandles(t, path)
	if !ok {
		require.NoError(t, held.Close())
		t.Skip("descriptor table is not visible on this platform")
	}

	require.Equal(t, 1, count)
	require.NoError(t, held.Close())

	count, _ = openHandles(t, path)
	require.Zero(t, count)
}

// snapshot lists every path under the fixture root.
func (f *fixture) snapshot(t *testing.T) []string {
	t.Helper()

	var paths []string

	err := filepath.WalkDir(f.root, func(path string, _ os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		paths = append(paths, path)

		return nil
	})
	require.NoError(t, err)

	return paths
}

// TestNewGate_ValidatesPaths rejects empty inputs.
func TestNewGate_ValidatesPaths(t *testing.T) {
	t.Parallel()

	_, err := NewGate("", "/x")
	require.ErrorIs(t, err, payload.ErrInvalidArgument)

	_, err = NewGate("/x.zip", "")
	require.ErrorIs(t, err, payload.ErrInvalidArgument)
}

// TestGate_NeedsDeployment checks the decision for pairs of installed and packaged versions.
func TestGate_NeedsDeployment(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		local    string
		packaged string
		want     bool
	}{
		{name: "not installed", local: "", packaged: "1.0.0.0", want: true},
		{name: "older revision", local: "1.0.0.0", packaged: "1.0.0.1", want: true},
		{name: "equal", local: "2.1.0.0", packaged: "2.1.0.0", want: false},
		{name: "newer installed", local: "3.0", packaged: "2.9.9.9", want: false},
		{name: "numeric not lexical", local: "1.9.0.0", packaged: "1.10.0.0", want: true},
		{name: "fewer components equal", local: "1.0", packaged: "1.0.0.0", want: false},
		{name: "fewer components older", local: "1.0", packaged: "1.0.0.1", want: true},
		{name: "more components equal", local: "1.0.0.0", packaged: "1.0", want: false},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.writeArchive(t, map[string]string{"version.txt": c.packaged})

			if c.local != "" {
				f.install(t, c.local)
			}

			before := f.snapshot(t)

			got, err := f.gate(t).NeedsDeployment(context.Background())
			require.NoError(t, err)
			require.Equal(t, c.want, got)

			require.Equal(t, before, f.snapshot(t))
			f.requireReleased(t)
		})
	}
}

// TestGate_NeedsDeployment_Errors covers the failures surfaced by the check.
func TestGate_NeedsDeployment_Errors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	g := f.gate(t)

	_, err := g.NeedsDeployment(context.Background())
	require.ErrorIs(t, err, payload.ErrArchiveNotFound)

	require.NoError(t, os.WriteFile(f.archivePath, []byte("corrupt"), 0o600))

	_, err = g.NeedsDeployment(context.Background())
	require.ErrorIs(t, err, payload.ErrInvalidArchive)
	f.requireReleased(t)

	f.writeArchive(t, map[string]string{"readme.txt": "no marker"})

	_, err = g.NeedsDeployment(context.Background())
	require.ErrorIs(t, err, payload.ErrPackageMarkerMissing)
	f.requireReleased(t)

	f.writeArchive(t, map[string]string{"version.txt": "1.0"})
	f.install(t, "", "leftover.txt")

	_, err = g.NeedsDeployment(context.Background())
	require.ErrorIs(t, err, payload.ErrInstalledMarkerMissing)
	f.requireReleased(t)

	f.install(t, "one point oh")

	_, err = g.NeedsDeployment(context.Background())
	require.ErrorIs(t, err, payload.ErrInstalledMarkerInvalid)
	f.requireReleased(t)

	f.writeArchive(t, map[string]string{"version.txt": "1.0.0.1\n" + strings.Repeat(" ", 5000) + "garbage"})

	_, err = g.NeedsDeployment(context.Background())
	require.ErrorIs(t, err, projectsystem.ErrInvalidVersion)
	f.requireReleased(t)
}

// TestGate_Deploy_FreshInstall moves NotInstalled to Installed(packaged).
func TestGate_Deploy_FreshInstall(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.writeArchive(t, map[string]string{
		"version.txt":                            "1.0.0.0",
		"JScript.NET.props":                      "<Project/>",
		"Rules/JScript.NET.xaml":                 "<ProjectSchemaDefinitions/>",
		"Rules/Debugger/JSNetDebugger.xaml":      "<Rule/>",
		"Sdk/Targets/JScript.NET.Common.targets": "<Project></Project>",
	})

	g := f.gate(t)
	ctx := context.Background()

	state, err := g.State(ctx)
	require.NoError(t, err)
	require.False(t, state.Installed)

	needs, err := g.NeedsDeployment(ctx)
	require.NoError(t, err)
	require.True(t, needs)

	require.NoError(t, g.Deploy(ctx))
	f.requireReleased(t)

	marker, err := os.ReadFile(filepath.Join(f.installPath, "version.txt"))
	require.NoError(t, err)
	require.Equal(t, "1.0.0.0", string(marker))

	xaml, err := os.ReadFile(filepath.Join(f.installPath, "Rules", "Debugger", "JSNetDebugger.xaml"))
	require.NoError(t, err)
	require.Equal(t, "<Rule/>", string(xaml))

	state, err = g.State(ctx)
	require.NoError(t, err)
	require.Equal(t, "installed 1.0.0.0", state.String())

	needs, err = g.NeedsDeployment(ctx)
	require.NoError(t, err)
	require.False(t, needs)

	requireNoStaging(t, filepath.Dir(f.installPath))
}

// TestGate_Deploy_ReplacesStaleCopy deletes files that are not part of the new payload.
func TestGate_Deploy_ReplacesStaleCopy(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.install(t, "1.0.0.0", "obsolete.targets")
	f.writeArchive(t, map[string]string{"version.txt": "1.0.0.1", "new.targets": "new"})

	g := f.gate(t)
	require.NoError(t, g.Deploy(context.Background()))

	_, err := os.Stat(filepath.Join(f.installPath, "obsolete.targets"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = os.Stat(filepath.Join(f.installPath, "new.targets"))
	require.NoError(t, err)

	state, err := g.State(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, state.Version.Compare(projectsystem.MustParseVersion("1.0.0.1")))
}

// TestGate_Deploy_PathEscape keeps the current copy and writes nothing outside the target.
func TestGate_Deploy_PathEscape(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.install(t, "1.0.0.0")
	f.writeArchive(t, map[string]string{"version.txt": "2.0", "../evil.txt": "evil"})

	err := f.gate(t).Deploy(context.Background())
	require.ErrorIs(t, err, payload.ErrPathEscape)
	f.requireReleased(t)

	err = filepath.WalkDir(f.root, func(path string, d os.DirEntry, err error) error {
		require.NoError(t, err)
		require.NotEqual(t, "evil.txt", d.Name(), path)

		return nil
	})
	require.NoError(t, err)

	marker, err := os.ReadFile(filepath.Join(f.installPath, "version.txt"))
	require.NoError(t, err)
	require.Equal(t, "1.0.0.0", string(marker))

	requireNoStaging(t, filepath.Dir(f.installPath))
}

// TestGate_Deploy_ArchiveErrors propagates archive failures without touching the installed copy.
func TestGate_Deploy_ArchiveErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.install(t, "1.0")
	g := f.gate(t)

	require.ErrorIs(t, g.Deploy(context.Background()), payload.ErrArchiveNotFound)

	f.writeArchive(t, map[string]string{"payload.txt": "x"})
	require.ErrorIs(t, g.Deploy(context.Background()), payload.ErrPackageMarkerMissing)
	f.requireReleased(t)

	_, err := os.Stat(filepath.Join(f.installPath, "version.txt"))
	require.NoError(t, err)
}

// TestGate_Deploy_InUse refuses to replace a copy held by a locking process.
func TestGate_Deploy_InUse(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.install(t, "1.0")
	f.writeArchive(t, map[string]string{"version.txt": "2.0"})

	lister := func() ([]ps.Process, error) {
		return []ps.Process{
			fakeProcess{pid: os.Getpid(), name: "jsnet-installer"},
			fakeProcess{pid: 4242, name: "msbuild.EXE"},
		}, nil
	}

	g := f.gate(t, WithLockingProcesses("MSBuild.exe"), WithProcessLister(lister))
	require.ErrorIs(t, g.Deploy(context.Background()), ErrInstallationInUse)
	f.requireReleased(t)

	state, err := g.State(context.Background())
	require.NoError(t, err)
	require.Equal(t, "installed 1.0", state.String())

	failing := f.gate(t, WithLockingProcesses("MSBuild.exe"), WithProcessLister(func() ([]ps.Process, error) {
		return nil, errTestProcesses
	}))
	require.ErrorIs(t, failing.Deploy(context.Background()), errTestProcesses)

	// The current process itself never blocks.
	self := f.gate(t, WithLockingProcesses("jsnet-installer"), WithProcessLister(lister))
	require.NoError(t, self.Deploy(context.Background()))
}

// TestGate_Deploy_RemoveFailure reports an installed copy that cannot be deleted.
func TestGate_Deploy_RemoveFailure(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for this user")
	}

	f := newFixture(t)
	f.install(t, "1.0")

	locked := filepath.Join(f.installPath, "locked")
	require.NoError(t, os.MkdirAll(locked, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(locked, "held.dll"), nil, 0o600))
	require.NoError(t, os.Chmod(locked, 0o500))

	t.Cleanup(func() {
		_ = os.Chmod(locked, 0o750)
	})

	f.writeArchive(t, map[string]string{"version.txt": "2.0"})

	require.ErrorIs(t, f.gate(t).Deploy(context.Background()), ErrRemoveInstallation)
	f.requireReleased(t)
	requireNoStaging(t, filepath.Dir(f.installPath))
}

// TestGate_Deploy_Canceled stops before deleting the installed copy.
func TestGate_Deploy_Canceled(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.install(t, "1.0")
	f.writeArchive(t, map[string]string{"version.txt": "2.0"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, f.gate(t).Deploy(ctx), context.Canceled)

	state, err := f.gate(t).State(context.Background())
	require.NoError(t, err)
	require.Equal(t, "installed 1.0", state.String())
}

// requireNoStaging asserts that no staging directory survived in parent.
func requireNoStaging(t *testing.T, parent string) {
	t.Helper()

	matches, err := filepath.Glob(filepath.Join(parent, ".*"+stagingSuffix+"*"))
	require.NoError(t, err)
	require.Empty(t, matches)
}
