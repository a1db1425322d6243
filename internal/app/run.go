package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/vk/kernforge/internal/artifact"
	"github.com/vk/kernforge/internal/builder"
	"github.com/vk/kernforge/internal/ctxlog"
	"github.com/vk/kernforge/internal/executor"
	"github.com/vk/kernforge/internal/harness"
	"github.com/vk/kernforge/internal/toolchain"
)

// Build brings target and everything it depends on up to date.
func (a *App) Build(ctx context.Context, target string) (*executor.Report, error) {
	_, _, report, err := a.build(a.Context(ctx), target)
	return report, err
}

// Plan reports what Build would do for target without running anything.
func (a *App) Plan(ctx context.Context, target string) (*builder.Plan, error) {
	ctx = a.Context(ctx)
	p, _, err := a.project(ctx)
	if err != nil {
		return nil, err
	}
	id, err := p.Resolve(target)
	if err != nil {
		return nil, err
	}
	return p.Plan(ctx, id)
}

func (a *App) build(ctx context.Context, target string) (*builder.Project, *toolchain.Environment, *executor.Report, error) {
	ctx, logger := ctxlog.With(ctx, "run_id", uuid.NewString())
	logger.Debug("App.build started.", "target", target)

	p, tc, err := a.project(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	id, err := p.Resolve(target)
	if err != nil {
		return nil, nil, nil, err
	}
	plan, err := p.Plan(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}

	logger.Info("🚀 Starting build.", "target", id, "nodes", len(plan.Order), "stale", len(plan.Stale()))
	env := &artifact.Env{Toolchain: tc, Runner: a.runner}
	exec := executor.New(plan, p.Stamps, env, executor.Options{Jobs: a.config.Jobs, KeepGoing: a.config.KeepGoing})
	report, err := exec.Run(ctx)
	if err != nil {
		return p, tc, report, fmt.Errorf("build %s: %w", id, err)
	}
	logger.Info("🏁 Build finished.", "built", len(report.Built), "fresh", len(report.Fresh))
	return p, tc, report, nil
}

// LaunchOptions adjust a single emulator launch.
type LaunchOptions struct {
	// GDBPort overrides the project's debugger port when non-zero.
	GDBPort int
	// WaitStatus confirms over QMP that a debug launch is halted.
	WaitStatus bool
}

// Launch builds the disc image and boots it in the emulator.
func (a *App) Launch(ctx context.Context, mode harness.Mode, opts LaunchOptions) error {
	ctx = a.Context(ctx)
	p, tc, _, err := a.build(ctx, mode.String())
	if err != nil {
		return err
	}

	emu := p.Model.Emulator
	if opts.GDBPort != 0 {
		emu.GDBPort = opts.GDBPort
	}
	h := &harness.Harness{
		Image:      p.Model.ImagePath(),
		Emulator:   emu,
		Toolchain:  tc,
		Runner:     a.runner,
		Stdout:     a.outW,
		Stderr:     a.outW,
		WaitStatus: opts.WaitStatus,
	}
	return h.Launch(ctx, mode)
}
