package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/jscript-net/internal/config"
	"github.com/oshokin/jscript-net/internal/logger"
	"github.com/oshokin/jscript-net/internal/version"
)

var (
	// configPath to the optional settings YAML file.
	configPath string
	// logLevel overrides the level from the settings file.
	logLevel string

	// rootCmd represents the base command for managing the installed project system.
	rootCmd = &cobra.Command{
		Use:   "jsnet-installer",
		Short: "Deploy the JScript.NET project system next to the build tools",
		Long: `Keeps the per-user copy of the JScript.NET project system in sync with the
packaged archive shipped alongside the binaries.

The installed copy lives under <install_root>/CustomProjectSystems/<product_name>
and is replaced whenever it is missing or older than the packaged one.`,
		SilenceUsage:      true,
		PersistentPreRunE: applyLogLevel,
	}
)

// Execute runs the jsnet-installer CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(checkCmd, deployCmd, ensureCmd, packCmd)
}

// signalContext is cancelled on SIGTERM or SIGINT.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

// applyLogLevel prefers --log-level and falls back to the settings file.
func applyLogLevel(cmd *cobra.Command, _ []string) error {
	level := logLevel

	if !cmd.Flags().Changed("log-level") && configPath != "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		level = cfg.LogLevel
	}

	parsed, ok := logger.ParseLogLevel(level)
	if !ok {
		return fmt.Errorf("unknown log level %q", level)
	}

	logger.SetLevel(parsed)

	return nil
}
