package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/vk/kernforge/internal/builder"
	"github.com/vk/kernforge/internal/config"
	"github.com/vk/kernforge/internal/ctxlog"
	"github.com/vk/kernforge/internal/toolchain"
)

// ToolchainFile is the default toolchain file name, looked up next to the
// project file.
const ToolchainFile = "toolchain.toml"

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
	loader config.Loader
	runner toolchain.Runner
}

// Option customizes an App.
type Option func(*App)

// WithRunner replaces the process runner used for every toolchain command.
func WithRunner(r toolchain.Runner) Option {
	return func(a *App) { a.runner = r }
}

// NewApp is the constructor for the main application. It returns an App with
// its own isolated logger. Nothing is loaded until an operation needs it.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader, opts ...Option) *App {
	a := &App{
		outW:   outW,
		logger: newLogger(cfg.LogLevel, cfg.LogFormat, outW),
		config: cfg,
		loader: loader,
		runner: toolchain.NewExecRunner(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger.Debug("Logger configured successfully.")
	return a
}

// Context returns ctx carrying the app's logger.
func (a *App) Context(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}

func (a *App) toolchainPath() string {
	if a.config.ToolchainFile != "" {
		return a.config.ToolchainFile
	}
	return filepath.Join(filepath.Dir(a.config.ProjectFile), ToolchainFile)
}

// load reads the project and toolchain files and layers the overrides on
// top: environment first, then command-line flags.
func (a *App) load(ctx context.Context) (*config.Model, *toolchain.Environment, error) {
	logger := ctxlog.FromContext(ctx)

	m, err := a.loader.Load(ctx, a.config.ProjectFile)
	if err != nil {
		return nil, nil, err
	}
	if err := m.Apply(config.FromEnviron(a.config.Environ)); err != nil {
		return nil, nil, err
	}
	if a.config.BuildDir != "" {
		dir, err := filepath.Abs(a.config.BuildDir)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve build dir: %w", err)
		}
		m.BuildDir = dir
	}

	tc, err := toolchain.Load(a.toolchainPath())
	if err != nil {
		return nil, nil, &config.Error{Path: a.toolchainPath(), Problems: []string{err.Error()}}
	}
	tc.Override(toolchain.ToolEmulator, m.Emulator.Binary)

	logger.Debug("Configuration loaded.", "project", m.Name, "root", m.Root, "build_dir", m.Path(m.BuildDir), "arch", m.Target.Arch)
	return m, tc, nil
}

// project loads the configuration and builds the artifact graph.
func (a *App) project(ctx context.Context) (*builder.Project, *toolchain.Environment, error) {
	m, tc, err := a.load(ctx)
	if err != nil {
		return nil, nil, err
	}
	p, err := builder.Build(ctx, m, tc)
	if err != nil {
		return nil, nil, err
	}
	return p, tc, nil
}
