package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vk/kernforge/internal/app"
	"github.com/vk/kernforge/internal/builder"
	"github.com/vk/kernforge/internal/hcl"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

// globals are the flags shared by every command.
type globals struct {
	file      string
	toolchain string
	buildDir  string
	jobs      int
	keepGoing bool
	logLevel  string
	logFormat string
}

// env is what the commands need from the process.
type env struct {
	out     io.Writer
	errOut  io.Writer
	environ []string
	opts    []app.Option
	g       globals
}

// newApp validates the global flags and builds an App.
func (e *env) newApp() (*app.App, error) {
	cfg, err := app.NewConfig(app.Config{
		ProjectFile:   e.g.file,
		ToolchainFile: e.g.toolchain,
		BuildDir:      e.g.buildDir,
		Jobs:          e.g.jobs,
		KeepGoing:     e.g.keepGoing,
		LogFormat:     e.g.logFormat,
		LogLevel:      e.g.logLevel,
		Environ:       e.environ,
	})
	if err != nil {
		return nil, usageError{err}
	}
	return app.NewApp(e.errOut, cfg, hcl.NewLoader(e.environ), e.opts...), nil
}

// Execute parses args, runs the selected command and returns an *ExitError
// on failure. Logs go to errOut; command results go to out.
func Execute(ctx context.Context, args []string, out, errOut io.Writer, environ []string, opts ...app.Option) error {
	e := &env{out: out, errOut: errOut, environ: environ, opts: opts}
	root := newRootCmd(e)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	return toExitError(root.ExecuteContext(ctx))
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:   "kernforge",
		Short: "Build, package and boot a hobby kernel",
		Long: `kernforge builds a bootable disc image from an assembly boot trampoline
and a freestanding kernel library, rebuilding only what changed.

Without a command it builds the disc image, like "kernforge iso".`,
		Args:          noArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.build(cmd, builder.TargetISO)
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	f := root.PersistentFlags()
	f.StringVarP(&e.g.file, "file", "f", app.ProjectFile, "Project file")
	f.StringVar(&e.g.toolchain, "toolchain", "", "Toolchain file (default: toolchain.toml next to the project file)")
	f.StringVar(&e.g.buildDir, "build-dir", "", "Build directory, overriding the project file and BUILD_DIR")
	f.IntVarP(&e.g.jobs, "jobs", "j", 0, "Number of concurrent jobs (default: number of CPUs)")
	f.BoolVarP(&e.g.keepGoing, "keep-going", "k", false, "Keep building independent artifacts after a failure")
	f.StringVar(&e.g.logLevel, "log-level", "info", "Logging level: debug, info, warn or error")
	f.StringVar(&e.g.logFormat, "log-format", "text", "Log output format: text or json")

	root.AddCommand(
		newBuildCmd(e, builder.TargetKernel, "Build the kernel static library"),
		newBuildCmd(e, builder.TargetLink, "Link the kernel binary"),
		newBuildCmd(e, builder.TargetISO, "Package the bootable disc image"),
		newRunCmd(e),
		newDebugCmd(e),
		newCleanCmd(e),
		newPlanCmd(e),
		newInitCmd(e),
		newToolchainCmd(e),
		newVersionCmd(e),
	)
	return root
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usageError{fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())}
	}
	return nil
}

func maxArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) > n {
			return usageError{fmt.Errorf("%s accepts at most %d argument(s), received %d", cmd.CommandPath(), n, len(args))}
		}
		return nil
	}
}
