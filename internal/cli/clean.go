package cli

import "github.com/spf13/cobra"

func newCleanCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove the build directory",
		Long: `Remove the build directory and every artifact in it.

Refuses to run when the build directory would contain a source directory
or the project file.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.newApp()
			if err != nil {
				return err
			}
			return a.Clean(cmd.Context())
		},
	}
}
