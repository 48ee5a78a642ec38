package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/jscript-net/internal/domain/projectsystem"
	"github.com/oshokin/jscript-net/internal/logger"
	"github.com/oshokin/jscript-net/internal/repository/payload"
)

var (
	// ErrRemoveInstallation is returned when the installed copy cannot be deleted.
	ErrRemoveInstallation = errors.New("cannot remove installed copy")
	// ErrInstallationInUse is returned when a locking process is running.
	ErrInstallationInUse = errors.New("installed copy is in use")
)

// ProcessLister enumerates running processes.
type ProcessLister func() ([]ps.Process, error)

// Gate decides whether the installed copy is missing or stale and replaces it.
// Every call opens the packaged archive itself and closes it before returning.
type Gate struct {
	// archivePath is the packaged payload zip.
	archivePath string
	// installPath is the installed copy directory.
	installPath string
	// lockingProcesses holds lower-cased executable names that block Deploy.
	lockingProcesses map[string]struct{}
	// listProcesses enumerates processes for the locking check.
	listProcesses ProcessLister
}

// Option configures a Gate.
type Option func(*Gate)

// WithLockingProcesses makes Deploy fail with ErrInstallationInUse while any
// of the named executables is running. Names compare case-insensitively.
func WithLockingProcesses(names ...string) Option {
	return func(g *Gate) {
		for name := range sliceToSet(lowerAll(names)) {
			if name != "" {
				g.lockingProcesses[name] = struct{}{}
			}
		}
	}
}

// WithProcessLister replaces go-ps process enumeration.
func WithProcessLister(lister ProcessLister) Option {
	return func(g *Gate) {
		if lister != nil {
			g.listProcesses = lister
		}
	}
}

// Inspection is the outcome of comparing the packaged and installed copies.
type Inspection struct {
	// Packaged is the version stored in the archive.
	Packaged projectsystem.Version
	// Current is the state of the installed copy.
	Current projectsystem.State
	// NeedsDeployment is true when Current is missing or older than Packaged.
	NeedsDeployment bool
}

// NewGate creates a gate deploying archivePath into installPath.
func NewGate(archivePath, installPath string, opts ...Option) (*Gate, error) {
	if archivePath == "" {
		return nil, fmt.Errorf("archive path is empty: %w", payload.ErrInvalidArgument)
	}

	if installPath == "" {
		return nil, fmt.Errorf("installation path is empty: %w", payload.ErrInvalidArgument)
	}

	g := &Gate{
		archivePath:      filepath.Clean(archivePath),
		installPath:      filepath.Clean(installPath),
		lockingProcesses: make(map[string]struct{}, defaultMapCapacity),
		listProcesses:    ps.Processes,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

// ArchivePath returns the packaged payload location.
func (g *Gate) ArchivePath() string {
	return g.archivePath
}

// InstallPath returns the installed copy location.
func (g *Gate) InstallPath() string {
	return g.installPath
}

// NeedsDeployment reports whether the installed copy is missing or older
// than the packaged one. It never modifies the filesystem.
func (g *Gate) NeedsDeployment(ctx context.Context) (bool, error) {
	inspection, err := g.Inspect(ctx)
	if err != nil {
		return false, err
	}

	return inspection.NeedsDeployment, nil
}

// Inspect reads both versions without modifying anything.
func (g *Gate) Inspect(ctx context.Context) (*Inspection, error) {
	archive, err := payload.OpenArchive(g.archivePath)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = archive.Close()
	}()

	packaged, err := archive.Version()
	if err != nil {
		return nil, err
	}

	current, err := g.State(ctx)
	if err != nil {
		return nil, err
	}

	inspection := &Inspection{
		Packaged:        packaged,
		Current:         current,
		NeedsDeployment: current.Stale(packaged),
	}

	logger.DebugKV(ctx, "Compared project system versions",
		"packaged", packaged.String(),
		"current", current.String(),
		"needs_deployment", inspection.NeedsDeployment)

	return inspection, nil
}

// State reports the installed copy. A missing directory is NotInstalled.
func (g *Gate) State(_ context.Context) (projectsystem.State, error) {
	dir, err := payload.OpenDirectory(g.installPath)
	if err != nil {
		if errors.Is(err, payload.ErrInstallationNotFound) {
			return projectsystem.NotInstalled(), nil
		}

		return projectsystem.State{}, err
	}

	v, err := dir.Version()
	if err != nil {
		return projectsystem.State{}, err
	}

	return projectsystem.Installed(v), nil
}

// Deploy replaces the installed copy with the packaged one.
// The archive is extracted into a sibling staging directory first, so a
// failed extraction leaves the current installation untouched.
func (g *Gate) Deploy(ctx context.Context) error {
	archive, err := payload.OpenArchive(g.archivePath)
	if err != nil {
		return err
	}

	defer func() {
		_ = archive.Close()
	}()

	packaged, err := archive.Version()
	if err != nil {
		return err
	}

	if err = g.ensureNotInUse(ctx); err != nil {
		return err
	}

	parent := filepath.Dir(g.installPath)
	if err = os.MkdirAll(parent, payload.DefaultDirPermissions); err != nil {
		return fmt.Errorf("create installation parent: %w", err)
	}

	staging, err := os.MkdirTemp(parent, "."+filepath.Base(g.installPath)+stagingSuffix)
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}

	// A no-op once the staging directory has been renamed into place.
	defer func() {
		_ = os.RemoveAll(staging)
	}()

	logger.InfoKV(ctx, "Extracting project system",
		"version", packaged.String(),
		"archive", g.archivePath,
		"staging", staging)

	if err = archive.ExtractTo(staging); err != nil {
		return fmt.Errorf("extract payload: %w", err)
	}

	if err = ctx.Err(); err != nil {
		return err
	}

	if err = removeInstallation(g.installPath); err != nil {
		return err
	}

	if err = os.Rename(staging, g.installPath); err != nil {
		return fmt.Errorf("activate installation: %w", err)
	}

	logger.InfoKV(ctx, "Project system deployed", "version", packaged.String(), "path", g.installPath)

	return nil
}

// removeInstallation deletes the installed copy recursively if it exists.
func removeInstallation(path string) error {
	if _, err := os.Lstat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("%s: %w: %w", path, ErrRemoveInstallation, err)
	}

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("%s: %w: %w", path, ErrRemoveInstallation, err)
	}

	return nil
}
