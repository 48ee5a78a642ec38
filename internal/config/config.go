package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the deployment settings shared by the jsnet binaries.
type Config struct {
	// ProductName names the installed project system folder.
	ProductName string `yaml:"product_name"`
	// ArchivePath is the bundled payload zip.
	ArchivePath string `yaml:"archive_path"`
	// InstallRoot is the per-user directory holding CustomProjectSystems.
	InstallRoot string `yaml:"install_root"`
	// LockingProcesses are executables that keep the installed copy open.
	// Deploy refuses to replace the installation while one of them runs.
	LockingProcesses []string `yaml:"locking_processes,omitempty"`
	// LogLevel is the default log level; the --log-level flag overrides it.
	LogLevel string `yaml:"log_level,omitempty"`
}

const (
	// DefaultProductName is the project system shipped by this repository.
	DefaultProductName = "JScript.NET"

	// ProjectExtension is the file extension of JScript.NET project files, without the dot.
	ProjectExtension = "jsnproj"

	// DefaultArchiveFilename is the payload bundled beside the executable.
	DefaultArchiveFilename = "CustomBuildSystem.zip"

	// CustomProjectSystemsDir is the folder under InstallRoot that the build host scans.
	CustomProjectSystemsDir = "CustomProjectSystems"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// DefaultDirPermissions is used for directories created by the binaries.
	DefaultDirPermissions = 0o755
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errInvalidProductName is returned for product names that are not a single path element.
	errInvalidProductName = errors.New("product name must be a single path element")
)

// Default returns settings populated with the default locations.
func Default() (*Config, error) {
	cfg := new(Config)
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load reads settings from path. An empty path yields Default.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default()
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the settings and fills in defaults for omitted fields.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	settings.ProductName = strings.TrimSpace(settings.ProductName)
	if settings.ProductName == "" {
		settings.ProductName = DefaultProductName
	}

	if settings.ProductName == "." || settings.ProductName == ".." ||
		strings.ContainsAny(settings.ProductName, `/\`) {
		return fmt.Errorf("%q: %w", settings.ProductName, errInvalidProductName)
	}

	if settings.ArchivePath == "" {
		dir, err := ExecutableDir()
		if err != nil {
			return err
		}

		settings.ArchivePath = filepath.Join(dir, DefaultArchiveFilename)
	}

	if settings.InstallRoot == "" {
		root, err := LocalAppDataDir()
		if err != nil {
			return err
		}

		settings.InstallRoot = root
	}

	settings.ArchivePath = filepath.Clean(settings.ArchivePath)
	settings.InstallRoot = filepath.Clean(settings.InstallRoot)

	return nil
}

// InstallPath returns <install_root>/CustomProjectSystems/<product_name>.
func (c *Config) InstallPath() string {
	return filepath.Join(c.InstallRoot, CustomProjectSystemsDir, c.ProductName)
}

// ExecutableDir returns the directory of the running binary, with symlinks resolved.
func ExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}

	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}

	return filepath.Dir(exe), nil
}

// LocalAppDataDir returns the per-user local application data directory:
// %LocalAppData% on Windows, the user cache directory elsewhere.
func LocalAppDataDir() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locate local application data: %w", err)
	}

	return dir, nil
}
