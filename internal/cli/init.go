package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInitCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "init [dir]",
		Short: "Scaffold a project file, toolchain file and boot trampoline",
		Args:  maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			a, err := e.newApp()
			if err != nil {
				return err
			}
			written, err := a.Init(cmd.Context(), dir)
			if err != nil {
				return err
			}
			if len(written) == 0 {
				fmt.Fprintln(e.out, "nothing to do: every file already exists")
				return nil
			}
			for _, p := range written {
				fmt.Fprintf(e.out, "created %s\n", p)
			}
			return nil
		},
	}
}
