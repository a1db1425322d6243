package executor

import (
	"context"
	"errors"

	"github.com/vk/kernforge/internal/artifact"
	"github.com/vk/kernforge/internal/ctxlog"
)

// errStopped marks nodes that were ready but not started after a failure.
var errStopped = errors.New("not started: build stopped after a failure")

// worker is the core processing loop for a single concurrent worker.
func (e *Executor) worker(ctx context.Context, readyChan chan *artifact.Node, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "worker", workerID)

	for n := range readyChan {
		nodeCtx, workerLogger := ctxlog.With(ctx, "node", n.ID(), "worker", workerID)

		if err := ctx.Err(); err != nil {
			e.skip(nodeCtx, n, err)
			continue
		}
		if e.stopped.Load() {
			e.skip(nodeCtx, n, errStopped)
			continue
		}

		workerLogger.Debug("Worker picked up node for execution.")
		n.SetState(artifact.Running)

		if err := e.execute(nodeCtx, e.plan.Entries[n.ID()]); err != nil {
			workerLogger.Error("❌ Failed", "error", err)
			n.Error = err
			n.SetState(artifact.Failed)
			if !e.keepGoing {
				e.stopped.Store(true)
			}
			e.skipDependents(nodeCtx, n)
			e.wg.Done()
			continue
		}

		for _, dependent := range e.dependents[n.ID()] {
			if dependent.DecrementDepCount() == 0 {
				workerLogger.Debug("Unlocking dependent node.", "dependent", dependent.ID())
				readyChan <- dependent
			}
		}
		e.wg.Done()
	}
	logger.Debug("Worker finished.", "worker", workerID)
}

// skip settles a ready node that will not run, together with everything
// downstream of it.
func (e *Executor) skip(ctx context.Context, n *artifact.Node, reason error) {
	n.SkipOnce(func() {
		ctxlog.FromContext(ctx).Warn("⏭️ Not started", "reason", reason)
		n.Error = reason
		n.SetState(artifact.Skipped)
		e.wg.Done()
	})
	e.skipDependents(ctx, n)
}
