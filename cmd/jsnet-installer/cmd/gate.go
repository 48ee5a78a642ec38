package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/oshokin/jscript-net/internal/service/installer"
	"github.com/oshokin/jscript-net/internal/service/startup"
)

var (
	// checkCmd compares the packaged and installed versions.
	checkCmd = &cobra.Command{
		Use:   "check",
		Short: "Report whether the installed project system needs deployment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			outcome, err := installer.Check(ctx, &installer.Options{ConfigPath: configPath})
			if err != nil {
				return err
			}

			printOutcome(cmd.OutOrStdout(), outcome)

			return nil
		},
	}

	// deployCmd replaces the installed copy unconditionally.
	deployCmd = &cobra.Command{
		Use:   "deploy",
		Short: "Replace the installed project system with the packaged one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			outcome, err := installer.Run(ctx, &installer.Options{ConfigPath: configPath, Force: true})
			if err != nil {
				return err
			}

			printOutcome(cmd.OutOrStdout(), outcome)

			return nil
		},
	}

	// ensureCmd is the host startup flow. Failures are reported but never
	// fail the command, so the host keeps running without the project system.
	ensureCmd = &cobra.Command{
		Use:   "ensure",
		Short: "Deploy the project system if it is missing or stale",
		Long: `Runs the startup deployment gate once. When deployment fails the error is
printed to stderr and the command still succeeds, leaving the host in
degraded mode without JScript.NET project support.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			var outcome *installer.Outcome

			// The error is surfaced through startup.Report below.
			_ = startup.Initialize(ctx, func(ctx context.Context) error {
				var err error

				outcome, err = installer.Run(ctx, &installer.Options{ConfigPath: configPath})

				return err
			})

			reported, err := startup.Report(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			if !reported && outcome != nil {
				printOutcome(cmd.OutOrStdout(), outcome)
			}

			return nil
		},
	}
)

// printOutcome writes a short human-readable summary.
func printOutcome(w io.Writer, outcome *installer.Outcome) {
	fmt.Fprintf(w, "packaged:  %s (%s)\n", outcome.Packaged, outcome.ArchivePath)
	fmt.Fprintf(w, "installed: %s (%s)\n", outcome.Current, outcome.InstallPath)

	switch {
	case outcome.Deployed:
		fmt.Fprintln(w, "deployed")
	case outcome.NeedsDeployment:
		fmt.Fprintln(w, "deployment required")
	default:
		fmt.Fprintln(w, "up to date")
	}
}
