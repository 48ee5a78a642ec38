package jsc

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultJscExe is looked up on PATH when no compiler is configured.
	DefaultJscExe = "jsc.exe"

	// DefaultWarningLevel matches the compiler's own default.
	DefaultWarningLevel = 1

	maxWarningLevel = 4
)

var (
	// ErrNoSourceFiles is returned when a task lists no files to compile.
	ErrNoSourceFiles = errors.New("no source files to compile")
	// ErrInvalidProperty is returned for property values the compiler would reject.
	ErrInvalidProperty = errors.New("invalid task property")
)

// Resource is an embedded or linked managed resource.
type Resource struct {
	// FileName is the resource file.
	FileName string `yaml:"file"`
	// Name is the manifest resource name; the file name is used when empty.
	Name string `yaml:"name,omitempty"`
	// Public sets the visibility; the compiler default applies when nil.
	Public *bool `yaml:"public,omitempty"`
}

// Task holds the compiler properties of one build.
type Task struct {
	// Out is the output assembly; inferred by the compiler from the first file when empty.
	Out string `yaml:"out,omitempty"`
	// JscExe is the compiler executable.
	JscExe string `yaml:"jsc_exe,omitempty"`
	// Target is exe (default), winexe or library.
	Target string `yaml:"target,omitempty"`
	// Platform is x86, Itanium, x64 or anycpu.
	Platform string `yaml:"platform,omitempty"`
	// Autoref references assemblies based on imported namespaces.
	Autoref bool `yaml:"autoref"`
	// Libraries are extra directories searched for references.
	Libraries []string `yaml:"libraries,omitempty"`
	// References are assemblies to import metadata from.
	References []string `yaml:"references,omitempty"`
	// Win32Resources are Win32 resource files.
	Win32Resources []string `yaml:"win32_resources,omitempty"`
	// Resources are embedded resources.
	Resources []Resource `yaml:"resources,omitempty"`
	// LinkedResources are resources linked into the assembly.
	LinkedResources []Resource `yaml:"linked_resources,omitempty"`
	// Debug emits debugging information.
	Debug bool `yaml:"debug"`
	// Fast disables language features to allow better code generation.
	Fast bool `yaml:"fast"`
	// WarningsAsErrors treats all warnings as errors.
	WarningsAsErrors bool `yaml:"warnings_as_errors"`
	// WarningLevel is 0 to 4.
	WarningLevel int `yaml:"warning_level"`
	// Defines are conditional compilation symbols.
	Defines []string `yaml:"defines,omitempty"`
	// AllowPrintFunction provides the print() function.
	AllowPrintFunction bool `yaml:"allow_print_function"`
	// NoStdLib skips importing mscorlib.dll.
	NoStdLib bool `yaml:"no_std_lib"`
	// VersionSafe makes hide the default for members not marked override or hide.
	VersionSafe bool `yaml:"version_safe"`
	// Files are the sources to compile.
	Files []string `yaml:"files"`
	// WorkingDir is where the compiler runs and relative paths resolve.
	WorkingDir string `yaml:"working_dir,omitempty"`
}

// NewTask returns a task with the compiler defaults.
func NewTask() *Task {
	return &Task{
		JscExe:       DefaultJscExe,
		Autoref:      true,
		WarningLevel: DefaultWarningLevel,
	}
}

// LoadTask reads a YAML task file. Omitted properties keep their defaults and
// a relative working directory resolves against the file's directory.
func LoadTask(path string) (*Task, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve task file: %w", err)
	}

	contents, err := os.ReadFile(filepath.Clean(abs))
	if err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}

	task := NewTask()
	if err = yaml.Unmarshal(contents, task); err != nil {
		return nil, fmt.Errorf("unmarshal task file: %w", err)
	}

	switch {
	case task.WorkingDir == "":
		task.WorkingDir = filepath.Dir(abs)
	case !filepath.IsAbs(task.WorkingDir):
		task.WorkingDir = filepath.Join(filepath.Dir(abs), task.WorkingDir)
	}

	if task.JscExe == "" {
		task.JscExe = DefaultJscExe
	}

	if err = task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate rejects tasks the compiler cannot run.
func (t *Task) Validate() error {
	if len(t.Files) == 0 {
		return ErrNoSourceFiles
	}

	if t.WarningLevel < 0 || t.WarningLevel > maxWarningLevel {
		return fmt.Errorf("warning level %d not in 0..%d: %w", t.WarningLevel, maxWarningLevel, ErrInvalidProperty)
	}

	switch strings.ToLower(t.Target) {
	case "", "exe", "winexe", "library":
	default:
		return fmt.Errorf("target %q: %w", t.Target, ErrInvalidProperty)
	}

	for _, r := range append(append([]Resource(nil), t.Resources...), t.LinkedResources...) {
		if r.FileName == "" {
			return fmt.Errorf("resource without file: %w", ErrInvalidProperty)
		}
	}

	return nil
}

// Arguments returns the compiler arguments, one element per switch, in the
// order the compiler documents them.
func (t *Task) Arguments() ([]string, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	return t.arguments(verbatim), nil
}

// CommandLine renders the invocation for logs. Every value after a switch
// and every source file is wrapped in double quotes.
func (t *Task) CommandLine() (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}

	args := t.arguments(quoted)

	return quote(t.JscExe) + " " + strings.Join(args, " "), nil
}

// arguments builds the switches, passing every value through render.
func (t *Task) arguments(render func(string) string) []string {
	args := make([]string, 0, len(t.Files)+len(t.Libraries)+len(t.Defines)+16)

	if t.Out != "" {
		args = append(args, "/out:"+render(t.Out))
	}

	if t.Target != "" {
		args = append(args, "/t:"+render(t.Target))
	}

	if t.Platform != "" {
		args = append(args, "/platform:"+render(t.Platform))
	}

	args = append(args, toggle("autoref", t.Autoref))

	for _, lib := range t.Libraries {
		args = append(args, "/lib:"+render(lib))
	}

	if len(t.References) > 0 {
		refs := make([]string, 0, len(t.References))
		for _, ref := range t.References {
			refs = append(refs, render(ref))
		}

		args = append(args, "/r:"+strings.Join(refs, ";"))
	}

	for _, res := range t.Win32Resources {
		args = append(args, "/win32res:"+render(res))
	}

	for _, res := range t.Resources {
		args = append(args, resourceArg("/res:", res, render))
	}

	for _, res := range t.LinkedResources {
		args = append(args, resourceArg("/linkres:", res, render))
	}

	args = append(args,
		toggle("debug", t.Debug),
		toggle("fast", t.Fast),
		toggle("warnaserror", t.WarningsAsErrors),
		"/w:"+strconv.Itoa(t.WarningLevel),
	)

	for _, symbol := range t.Defines {
		args = append(args, "/d:"+render(symbol))
	}

	args = append(args,
		toggle("print", t.AllowPrintFunction),
		toggle("nostdlib", t.NoStdLib),
		toggle("versionsafe", t.VersionSafe),
		"/nologo",
	)

	for _, file := range t.Files {
		args = append(args, render(file))
	}

	return args
}

// outputDir returns the absolute directory of Out, or "" when Out is unset.
func (t *Task) outputDir() string {
	if t.Out == "" {
		return ""
	}

	dir := filepath.Dir(t.Out)
	if !filepath.IsAbs(dir) && t.WorkingDir != "" {
		dir = filepath.Join(t.WorkingDir, dir)
	}

	return dir
}

// toggle renders a /name+ or /name- switch.
func toggle(name string, on bool) string {
	if on {
		return "/" + name + "+"
	}

	return "/" + name + "-"
}

// resourceArg renders file[,name[,public|private]]. An empty name is kept
// when the visibility has to follow it.
func resourceArg(prefix string, r Resource, render func(string) string) string {
	var b strings.Builder

	b.WriteString(prefix)
	b.WriteString(render(r.FileName))

	if r.Name != "" || r.Public != nil {
		b.WriteString(",")
		b.WriteString(render(r.Name))
	}

	if r.Public != nil {
		if *r.Public {
			b.WriteString(",public")
		} else {
			b.WriteString(",private")
		}
	}

	return b.String()
}

func verbatim(s string) string {
	return s
}

func quoted(s string) string {
	return `"` + s + `"`
}

// quote wraps arg in double quotes when it contains blanks or quotes.
func quote(arg string) string {
	if arg != "" && !strings.ContainsAny(arg, " \t\"") {
		return arg
	}

	return `"` + strings.ReplaceAll(arg, `"`, `\"`) + `"`
}
