package executor

import (
	"context"
	"fmt"

	"github.com/vk/kernforge/internal/artifact"
	"github.com/vk/kernforge/internal/ctxlog"
)

// skipDependents recursively marks all downstream nodes as skipped and
// decrements the WaitGroup for each of them exactly once.
func (e *Executor) skipDependents(ctx context.Context, n *artifact.Node) {
	logger := ctxlog.FromContext(ctx)
	for _, dependent := range e.dependents[n.ID()] {
		dependent.SkipOnce(func() {
			logger.Warn("Skipping dependent node due to upstream failure.", "dependent", dependent.ID())
			dependent.Error = fmt.Errorf("skipped due to upstream failure of '%s'", n.ID())
			dependent.SetState(artifact.Skipped)
			e.wg.Done()
			e.skipDependents(ctx, dependent)
		})
	}
}
