package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/jscript-net/internal/service/packager"
)

var (
	// packVersion overrides the version marker of the source tree.
	packVersion string

	// packCmd builds the payload archive from a project system tree.
	packCmd = &cobra.Command{
		Use:   "pack [source-dir] [archive]",
		Short: "Pack a project system tree into the deployable archive",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			_, err := packager.Run(ctx, &packager.Options{
				SourceDir:  args[0],
				OutputPath: args[1],
				Version:    packVersion,
			})

			return err
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	packCmd.Flags().StringVar(&packVersion, "version", "", "version to store instead of the tree's version.txt")
}
