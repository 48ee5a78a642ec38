package jsc

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTask_Arguments_Defaults(t *testing.T) {
	t.Parallel()

	task := NewTask()
	task.Files = []string{"main.js"}

	args, err := task.Arguments()
	require.NoError(t, err)
	require.Equal(t, []string{
		"/autoref+",
		"/debug-", "/fast-", "/warnaserror-", "/w:1",
		"/print-", "/nostdlib-", "/versionsafe-",
		"/nologo",
		"main.js",
	}, args)
}

func TestTask_Arguments_AllProperties(t *testing.T) {
	t.Parallel()

	public, private := true, false

	task := &Task{
		Out:            `bin\app.exe`,
		JscExe:         "jsc.exe",
		Target:         "winexe",
		Platform:       "x86",
		Libraries:      []string{"lib1", "lib2"},
		References:     []string{"System.dll", "My Lib.dll"},
		Win32Resources: []string{"app.res"},
		Resources: []Resource{
			{FileName: "a.resources"},
			{FileName: "b.resources", Name: "B"},
			{FileName: "c.resources", Public: &private},
		},
		LinkedResources:    []Resource{{FileName: "d.resources", Name: "D", Public: &public}},
		Debug:              true,
		Fast:               true,
		WarningsAsErrors:   true,
		WarningLevel:       4,
		Defines:            []string{"DEBUG", "TRACE=1"},
		AllowPrintFunction: true,
		NoStdLib:           true,
		VersionSafe:        true,
		Files:              []string{"a.js", "b.js"},
	}

	args, err := task.Arguments()
	require.NoError(t, err)
	require.Equal(t, []string{
		`/out:bin\app.exe`,
		"/t:winexe",
		"/platform:x86",
		"/autoref-",
		"/lib:lib1", "/lib:lib2",
		"/r:System.dll;My Lib.dll",
		"/win32res:app.res",
		"/res:a.resources",
		"/res:b.resources,B",
		"/res:c.resources,,private",
		"/linkres:d.resources,D,public",
		"/debug+", "/fast+", "/warnaserror+", "/w:4",
		"/d:DEBUG", "/d:TRACE=1",
		"/print+", "/nostdlib+", "/versionsafe+",
		"/nologo",
		"a.js", "b.js",
	}, args)

	commandLine, err := task.CommandLine()
	require.NoError(t, err)
	require.Equal(t, `jsc.exe /out:"bin\app.exe" /t:"winexe" /platform:"x86" /autoref- `+
		`/lib:"lib1" /lib:"lib2" /r:"System.dll";"My Lib.dll" /win32res:"app.res" `+
		`/res:"a.resources" /res:"b.resources","B" /res:"c.resources","",private `+
		`/linkres:"d.resources","D",public /debug+ /fast+ /warnaserror+ /w:4 `+
		`/d:"DEBUG" /d:"TRACE=1" /print+ /nostdlib+ /versionsafe+ /nologo "a.js" "b.js"`,
		commandLine)

	task.JscExe = `C:\Program Files\jsc.exe`
	commandLine, err = task.CommandLine()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(commandLine, `"C:\Program Files\jsc.exe" /out:`))
}

func TestTask_Validate(t *testing.T) {
	t.Parallel()

	task := NewTask()
	require.ErrorIs(t, task.Validate(), ErrNoSourceFiles)

	task.Files = []string{"main.js"}
	require.NoError(t, task.Validate())

	task.WarningLevel = 5
	require.ErrorIs(t, task.Validate(), ErrInvalidProperty)

	task.WarningLevel = -1
	require.ErrorIs(t, task.Validate(), ErrInvalidProperty)

	task.WarningLevel = 0
	task.Target = "module"
	require.ErrorIs(t, task.Validate(), ErrInvalidProperty)

	task.Target = "Library"
	require.NoError(t, task.Validate())

	task.Resources = []Resource{{Name: "orphan"}}
	_, err := task.Arguments()
	require.ErrorIs(t, err, ErrInvalidProperty)
}

func TestLoadTask(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "build.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
out: bin/app.exe
target: library
warning_level: 3
debug: true
references: [System.Xml.dll]
resources:
  - file: strings.resources
    public: false
files: [a.js, b.js]
`), 0o600))

	task, err := LoadTask(path)
	require.NoError(t, err)
	require.Equal(t, DefaultJscExe, task.JscExe)
	require.True(t, task.Autoref)
	require.True(t, task.Debug)
	require.Equal(t, 3, task.WarningLevel)
	require.Equal(t, "library", task.Target)
	require.Equal(t, dir, task.WorkingDir)
	require.Len(t, task.Resources, 1)
	require.NotNil(t, task.Resources[0].Public)
	require.False(t, *task.Resources[0].Public)
	require.Equal(t, filepath.Join(dir, "bin"), task.outputDir())

	relative := filepath.Join(dir, "relative.yaml")
	require.NoError(t, os.WriteFile(relative, []byte("working_dir: src\nautoref: false\nfiles: [a.js]\n"), 0o600))

	task, err = LoadTask(relative)
	require.NoError(t, err)
	require.False(t, task.Autoref)
	require.Equal(t, filepath.Join(dir, "src"), task.WorkingDir)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("out: x.exe\n"), 0o600))

	_, err = LoadTask(empty)
	require.ErrorIs(t, err, ErrNoSourceFiles)

	_, err = LoadTask(filepath.Join(dir, "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
