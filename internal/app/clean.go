package app

import (
	"context"
	"fmt"
	"os"

	"github.com/vk/kernforge/internal/config"
	"github.com/vk/kernforge/internal/ctxlog"
	"github.com/vk/kernforge/internal/fsutil"
)

// Clean removes the build directory. It refuses when that directory holds
// any declared source directory or the project file.
func (a *App) Clean(ctx context.Context) error {
	ctx = a.Context(ctx)
	logger := ctxlog.FromContext(ctx)

	m, _, err := a.load(ctx)
	if err != nil {
		return err
	}
	buildDir := m.Path(m.BuildDir)

	protected := []string{m.Path(m.Trampoline.Dir), m.Path(m.Kernel.Dir), m.Root}
	if m.File != "" {
		protected = append(protected, m.File)
	}
	for _, p := range protected {
		inside, err := fsutil.Within(p, buildDir)
		if err != nil {
			return err
		}
		if inside {
			return config.Errorf("refusing to clean %s: it contains %s", buildDir, p)
		}
	}

	if err := os.RemoveAll(buildDir); err != nil {
		return fmt.Errorf("remove build directory: %w", err)
	}
	logger.Info("🧹 Build directory removed.", "path", buildDir)
	return nil
}
