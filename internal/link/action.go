package link

import (
	"context"
	"fmt"
	"os"

	"github.com/vk/kernforge/internal/artifact"
	"github.com/vk/kernforge/internal/config"
	"github.com/vk/kernforge/internal/ctxlog"
	"github.com/vk/kernforge/internal/fsutil"
	"github.com/vk/kernforge/internal/target"
	"github.com/vk/kernforge/internal/toolchain"
)

// Action links trampoline objects and the kernel library into the image.
type Action struct {
	Layout     Layout
	GCSections bool
	Target     target.Descriptor
	// KernelEntry is the symbol the trampoline calls.
	KernelEntry string
	Objects     []string
	Library     string
	Script      string
	Output      string
}

// Args returns the linker arguments.
func (a *Action) Args() []string {
	args := []string{"-n"}
	if a.Target.PointerWidth == 32 {
		args = append(args, "-m", "elf_i386")
	}
	if a.GCSections {
		args = append(args, "--gc-sections")
	}
	args = append(args, "-T", a.Script, "-o", a.Output)
	args = append(args, a.Objects...)
	if a.Library != "" {
		args = append(args, a.Library)
	}
	return args
}

// Run implements artifact.Action.
func (a *Action) Run(ctx context.Context, env *artifact.Env) error {
	logger := ctxlog.FromContext(ctx)

	if err := a.Layout.Validate(); err != nil {
		return err
	}
	if err := a.checkInputs(); err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(a.Script, []byte(RenderScript(a.Layout)), 0o644); err != nil {
		return fmt.Errorf("write linker script: %w", err)
	}

	cmd, err := env.Toolchain.Command(toolchain.ToolLinker, a.Args()...)
	if err != nil {
		return err
	}
	logger.Debug("Linking.", "objects", len(a.Objects), "output", a.Output)
	if err := env.Runner.Run(ctx, cmd); err != nil {
		os.Remove(a.Output)
		return err
	}

	err = Verify(a.Output, Expect{
		Target:      a.Target,
		Symbols:     []string{a.Layout.Entry, a.KernelEntry},
		BootSection: a.Layout.BootSection(),
		BootAddress: a.Layout.BootAddress,
	})
	if err != nil {
		os.Remove(a.Output)
		return err
	}
	return nil
}

// checkInputs refuses to mix artifacts built for different targets. Every
// trampoline object and every object inside the kernel library must match
// the link target.
func (a *Action) checkInputs() error {
	var problems []string
	for _, obj := range a.Objects {
		if err := CheckObject(obj, a.Target); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if a.Library != "" {
		problems = append(problems, CheckArchive(a.Library, a.Target)...)
	}
	if len(problems) > 0 {
		return &config.Error{Problems: problems}
	}
	return nil
}
