package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newToolchainCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toolchain",
		Short: "Inspect the pinned toolchain",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "verify",
		Short: "Check that every pinned tool is installed at a matching version",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.newApp()
			if err != nil {
				return err
			}
			reports, err := a.VerifyToolchain(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TOOL\tBINARY\tVERSION\tPIN\tSTATUS")
			failed := 0
			for _, r := range reports {
				status := "ok"
				if !r.OK() {
					status = r.Err.Error()
					failed++
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Tool, r.Binary, orDash(r.Found), orDash(r.Constraint), status)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if failed > 0 {
				return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d tool(s) failed verification", failed)}
			}
			return nil
		},
	})
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func newVersionCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the kernforge version",
		Args:  noArgs,
		RunE: func(*cobra.Command, []string) error {
			fmt.Fprintf(e.out, "kernforge %s\n", Version)
			return nil
		},
	}
}
