package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/vk/kernforge/internal/artifact"
	"github.com/vk/kernforge/internal/builder"
	"github.com/vk/kernforge/internal/cache"
	"github.com/vk/kernforge/internal/ctxlog"
)

// execute brings one node up to date.
func (e *Executor) execute(ctx context.Context, entry *builder.Entry) error {
	logger := ctxlog.FromContext(ctx)
	n := entry.Node

	if entry.Fresh {
		n.SetState(artifact.Fresh)
		logger.Info("⏭️ Up to date")
		return nil
	}

	logger.Info("▶️ Building", "kind", n.Kind.String(), "reason", string(entry.Reason))
	start := time.Now()

	if err := e.stamps.Remove(n.ID()); err != nil {
		return fmt.Errorf("remove stale stamp: %w", err)
	}
	if n.Action == nil {
		return fmt.Errorf("node %s has no action", n.ID())
	}
	if err := n.Action.Run(ctx, e.env); err != nil {
		if !n.Atomic {
			removeOutputs(ctx, n)
		}
		return err
	}

	if !n.AlwaysRun {
		var targetHash string
		if n.Target != nil {
			targetHash = n.Target.Hash()
		}
		st, err := cache.Record(n.ID(), entry.Key, targetHash, n.Outputs)
		if err != nil {
			removeOutputs(ctx, n)
			return err
		}
		if err := e.stamps.Save(st); err != nil {
			return fmt.Errorf("save stamp: %w", err)
		}
	} else {
		for _, out := range n.Outputs {
			if _, err := os.Stat(out); err != nil {
				return fmt.Errorf("declared output %s not produced: %w", out, err)
			}
		}
	}

	n.SetState(artifact.Done)
	logger.Info("✅ Built", "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

// removeOutputs deletes whatever a failed action left behind.
func removeOutputs(ctx context.Context, n *artifact.Node) {
	for _, out := range n.Outputs {
		if err := os.Remove(out); err != nil && !errors.Is(err, os.ErrNotExist) {
			ctxlog.FromContext(ctx).Warn("Could not remove output of failed node.", "output", out, "error", err)
		}
	}
}
