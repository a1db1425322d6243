package cli

import (
	"github.com/spf13/cobra"

	"github.com/vk/kernforge/internal/app"
	"github.com/vk/kernforge/internal/harness"
)

func newRunCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Build the disc image and boot it in the emulator",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.newApp()
			if err != nil {
				return err
			}
			return a.Launch(cmd.Context(), harness.Run, app.LaunchOptions{})
		},
	}
}

func newDebugCmd(e *env) *cobra.Command {
	var opts app.LaunchOptions
	cmd := &cobra.Command{
		Use:   "debug",
		Short: "Boot the disc image halted at reset with a GDB stub",
		Long: `Boot the disc image in the emulator, halted before the first instruction,
with a GDB server listening on the configured port.

Attach with:
  gdb build/kernel.bin -ex "target remote :1234"`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.newApp()
			if err != nil {
				return err
			}
			return a.Launch(cmd.Context(), harness.Debug, opts)
		},
	}
	cmd.Flags().IntVar(&opts.GDBPort, "gdb-port", 0, "GDB server port (default: from the project file)")
	cmd.Flags().BoolVar(&opts.WaitStatus, "wait-status", false, "Confirm over QMP that the machine is halted")
	return cmd
}
