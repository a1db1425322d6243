// Package libbuild drives the kernel-language toolchain that turns the
// kernel crate into a static library: a format gate, a lint gate, then the
// cross compile against the target spec.
package libbuild

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/kernforge/internal/artifact"
	"github.com/vk/kernforge/internal/ctxlog"
	"github.com/vk/kernforge/internal/fsutil"
	"github.com/vk/kernforge/internal/target"
	"github.com/vk/kernforge/internal/toolchain"
)

// Gate names, reported when a gate fails.
const (
	GateFormat  = "format"
	GateLint    = "lint"
	GateCompile = "compile"
)

// GateError wraps the failure of one gate.
type GateError struct {
	Gate string
	Err  error
}

func (e *GateError) Error() string {
	return fmt.Sprintf("kernel %s gate failed: %v", e.Gate, e.Err)
}

func (e *GateError) Unwrap() error {
	return e.Err
}

// Action builds the kernel library.
type Action struct {
	// Dir is the crate directory; commands run there.
	Dir    string
	Crate  string
	Target target.Descriptor
	// SpecDir receives the rendered target spec JSON.
	SpecDir string
	// TargetDir is the compiler's own output directory.
	TargetDir string
	Profile   string
	Features  []string
	Format    bool
	Lint      bool
	// Output is the path the library is copied to.
	Output string
}

// Steps returns the argument lists of the enabled gates, in order. They are
// also part of the node's key.
func (a *Action) Steps() [][]string {
	var steps [][]string
	if a.Format {
		steps = append(steps, []string{"fmt", "--", "--check"})
	}
	if a.Lint {
		steps = append(steps, []string{"clippy", "--", "-D", "warnings"})
	}
	return append(steps, a.buildArgs())
}

func (a *Action) specPath() string {
	return filepath.Join(a.SpecDir, a.Target.Name()+".json")
}

func (a *Action) buildArgs() []string {
	args := []string{"build", "--target", a.specPath(), "--target-dir", a.TargetDir}
	if a.Profile == "release" {
		args = append(args, "--release")
	}
	for _, f := range a.Features {
		args = append(args, "--features", f)
	}
	return args
}

// Built is where the compiler leaves the archive.
func (a *Action) Built() string {
	profile := a.Profile
	if profile != "release" {
		profile = "debug"
	}
	return filepath.Join(a.TargetDir, a.Target.Name(), profile, "lib"+a.Crate+".a")
}

// Run implements artifact.Action.
func (a *Action) Run(ctx context.Context, env *artifact.Env) error {
	logger := ctxlog.FromContext(ctx)

	if _, err := a.Target.WriteSpec(a.SpecDir); err != nil {
		return fmt.Errorf("write target spec: %w", err)
	}

	steps := a.Steps()
	gates := make([]string, 0, len(steps))
	if a.Format {
		gates = append(gates, GateFormat)
	}
	if a.Lint {
		gates = append(gates, GateLint)
	}
	gates = append(gates, GateCompile)

	for i, args := range steps {
		cmd, err := env.Toolchain.Command(toolchain.ToolKernel, args...)
		if err != nil {
			return err
		}
		cmd.Dir = a.Dir
		cmd.Env = append(cmd.Env, "RUST_TARGET_PATH="+a.SpecDir)
		if env.Toolchain.CacheDir != "" {
			cmd.Env = append(cmd.Env, "CARGO_HOME="+env.Toolchain.CacheDir)
		}

		logger.Debug("Running kernel gate.", "gate", gates[i], "command", cmd.String())
		if err := env.Runner.Run(ctx, cmd); err != nil {
			os.Remove(a.Output)
			return &GateError{Gate: gates[i], Err: err}
		}
	}

	if err := fsutil.CopyFile(a.Built(), a.Output); err != nil {
		os.Remove(a.Output)
		return &GateError{Gate: GateCompile, Err: fmt.Errorf("collect library: %w", err)}
	}
	return nil
}
