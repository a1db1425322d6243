package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBuildCmd(e *env, target, short string) *cobra.Command {
	return &cobra.Command{
		Use:   target,
		Short: short,
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.build(cmd, target)
		},
	}
}

func (e *env) build(cmd *cobra.Command, target string) error {
	a, err := e.newApp()
	if err != nil {
		return err
	}
	report, err := a.Build(cmd.Context(), target)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%s: %d built, %d up to date\n", target, len(report.Built), len(report.Fresh))
	return nil
}
