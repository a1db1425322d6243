package executor

import (
	"context"
	"errors"

	"github.com/vk/kernforge/internal/artifact"
)

// Report lists node IDs by how they settled, each in plan order.
type Report struct {
	Built   []string
	Fresh   []string
	Failed  []string
	Skipped []string
}

// OK reports whether nothing failed or was skipped.
func (r *Report) OK() bool {
	return len(r.Failed) == 0 && len(r.Skipped) == 0
}

func (e *Executor) report() *Report {
	r := &Report{}
	for _, id := range e.plan.Order {
		switch e.plan.Entries[id].Node.State() {
		case artifact.Done:
			r.Built = append(r.Built, id)
		case artifact.Fresh:
			r.Fresh = append(r.Fresh, id)
		case artifact.Failed:
			r.Failed = append(r.Failed, id)
		case artifact.Skipped:
			r.Skipped = append(r.Skipped, id)
		}
	}
	return r
}

func (e *Executor) runError(ctx context.Context) error {
	var failed []string
	var rootCause error
	for _, id := range e.plan.Order {
		n := e.plan.Entries[id].Node
		if n.State() != artifact.Failed || n.Error == nil {
			continue
		}
		// An action interrupted by cancellation is a symptom.
		if errors.Is(n.Error, context.Canceled) && ctx.Err() != nil {
			continue
		}
		failed = append(failed, id)
		if rootCause == nil {
			rootCause = n.Error
		}
	}
	if rootCause != nil {
		return &RunError{Failed: failed, Err: rootCause}
	}
	return ctx.Err()
}
