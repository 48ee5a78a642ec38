package version

import (
	"fmt"

	"github.com/spf13/cobra"
)

// AttachCobraVersionCommand adds a `version` subcommand to root that prints Full.
func AttachCobraVersionCommand(root *cobra.Command) {
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information.",
		Long:  "Print the release, commit hash and build timestamp of this binary. The values are injected at build time from the repository state.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), Full(root.Name()))
		},
	})
}
