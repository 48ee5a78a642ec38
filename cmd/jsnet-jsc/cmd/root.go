package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/jscript-net/internal/logger"
	"github.com/oshokin/jscript-net/internal/service/jsc"
	"github.com/oshokin/jscript-net/internal/version"
)

var (
	// jscExe overrides the compiler from the task file.
	jscExe string
	// logLevel sets the minimum level of diagnostics written to stderr.
	logLevel string

	// rootCmd represents the base command for compiling a JScript.NET task.
	rootCmd = &cobra.Command{
		Use:          "jsnet-jsc [task.yaml]",
		Short:        "Compile JScript.NET sources described by a task file",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("unknown log level %q", logLevel)
			}

			logger.SetLevel(level)

			return nil
		},
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			task, err := jsc.LoadTask(args[0])
			if err != nil {
				return err
			}

			if jscExe != "" {
				task.JscExe = jscExe
			}

			_, err = jsc.Run(ctx, task)

			return err
		},
	}
)

// Execute runs the jsnet-jsc CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVar(&jscExe, "jsc-exe", "", "compiler executable to use instead of the task's jsc_exe")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}
