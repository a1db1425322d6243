package app

import (
	"context"

	"github.com/vk/kernforge/internal/config"
	"github.com/vk/kernforge/internal/ctxlog"
	"github.com/vk/kernforge/internal/toolchain"
)

// VerifyToolchain probes every pinned tool. The project file is not needed.
func (a *App) VerifyToolchain(ctx context.Context) ([]toolchain.Report, error) {
	ctx = a.Context(ctx)
	logger := ctxlog.FromContext(ctx)

	tc, err := toolchain.Load(a.toolchainPath())
	if err != nil {
		return nil, &config.Error{Path: a.toolchainPath(), Problems: []string{err.Error()}}
	}
	reports := toolchain.Verify(ctx, a.runner, tc)
	for _, r := range reports {
		if r.OK() {
			logger.Debug("Tool verified.", "tool", r.Tool, "binary", r.Binary, "version", r.Found)
		} else {
			logger.Warn("Tool failed verification.", "tool", r.Tool, "binary", r.Binary, "error", r.Err)
		}
	}
	return reports, nil
}
