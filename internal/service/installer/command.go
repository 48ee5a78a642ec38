package installer

import (
	"context"
	"fmt"

	"github.com/oshokin/jscript-net/internal/config"
	"github.com/oshokin/jscript-net/internal/logger"
)

// Options are inputs accepted by the installer entry points.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// Config is used instead of loading ConfigPath when set.
	Config *config.Config
	// Force deploys without comparing versions first.
	Force bool
}

// Outcome describes what an entry point found and did.
type Outcome struct {
	Inspection

	// ArchivePath is the packaged payload that was inspected.
	ArchivePath string
	// InstallPath is the installed copy location.
	InstallPath string
	// Deployed is true when the installed copy was replaced.
	Deployed bool
}

// Run deploys the packaged payload when the installed copy is missing or
// stale, or unconditionally with Options.Force.
func Run(ctx context.Context, opts *Options) (*Outcome, error) {
	ctx = logger.WithName(ctx, "installer")

	if opts == nil {
		opts = new(Options)
	}

	gate, err := newGate(opts)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{
		ArchivePath: gate.ArchivePath(),
		InstallPath: gate.InstallPath(),
	}

	if !opts.Force {
		inspection, err := gate.Inspect(ctx)
		if err != nil {
			return outcome, fmt.Errorf("check installation: %w", err)
		}

		outcome.Inspection = *inspection

		if !inspection.NeedsDeployment {
			logger.InfoKV(ctx, "Project system is up to date",
				"version", inspection.Current.Version.String(), "path", outcome.InstallPath)

			return outcome, nil
		}

		logger.InfoKV(ctx, "Project system deployment required",
			"current", inspection.Current.String(), "packaged", inspection.Packaged.String())
	}

	if err = gate.Deploy(ctx); err != nil {
		return outcome, fmt.Errorf("deploy project system: %w", err)
	}

	outcome.Deployed = true

	inspection, err := gate.Inspect(ctx)
	if err != nil {
		return outcome, fmt.Errorf("verify installation: %w", err)
	}

	outcome.Inspection = *inspection

	return outcome, nil
}

// Check compares the packaged and installed copies without deploying.
func Check(ctx context.Context, opts *Options) (*Outcome, error) {
	ctx = logger.WithName(ctx, "installer")

	gate, err := newGate(opts)
	if err != nil {
		return nil, err
	}

	inspection, err := gate.Inspect(ctx)
	if err != nil {
		return nil, fmt.Errorf("check installation: %w", err)
	}

	return &Outcome{
		Inspection:  *inspection,
		ArchivePath: gate.ArchivePath(),
		InstallPath: gate.InstallPath(),
	}, nil
}

// NewGateFromConfig builds a gate for the locations in cfg.
func NewGateFromConfig(cfg *config.Config) (*Gate, error) {
	return NewGate(cfg.ArchivePath, cfg.InstallPath(), WithLockingProcesses(cfg.LockingProcesses...))
}

// newGate resolves settings from opts.
func newGate(opts *Options) (*Gate, error) {
	if opts == nil {
		opts = new(Options)
	}

	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load configuration: %w", err)
		}

		cfg = loaded
	} else if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	return NewGateFromConfig(cfg)
}
