package boot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/kernforge/internal/artifact"
	"github.com/vk/kernforge/internal/ctxlog"
	"github.com/vk/kernforge/internal/toolchain"
)

// AssembleAction assembles one trampoline source into one object file.
type AssembleAction struct {
	Source string
	Output string
	// Format is the assembler output format, e.g. "elf64".
	Format string
}

// Args returns the assembler arguments, used both to run and to key the
// node.
func (a *AssembleAction) Args() []string {
	return []string{"-f", a.Format, "-o", a.Output, a.Source}
}

// Run implements artifact.Action.
func (a *AssembleAction) Run(ctx context.Context, env *artifact.Env) error {
	logger := ctxlog.FromContext(ctx)

	cmd, err := env.Toolchain.Command(toolchain.ToolAssembler, a.Args()...)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(a.Output), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}

	logger.Debug("Assembling.", "source", a.Source, "output", a.Output)
	if err := env.Runner.Run(ctx, cmd); err != nil {
		os.Remove(a.Output)
		return err
	}
	return nil
}
