package builder

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/vk/kernforge/internal/artifact"
	"github.com/vk/kernforge/internal/cache"
	"github.com/vk/kernforge/internal/config"
	"github.com/vk/kernforge/internal/ctxlog"
)

// Entry is the planner's verdict on one node.
type Entry struct {
	Node   *artifact.Node
	Key    string
	Fresh  bool
	Reason cache.Reason
}

// Plan covers the closure of one target, in dependency order.
type Plan struct {
	Target  string
	Order   []string
	Entries map[string]*Entry
}

// Stale returns the IDs of the nodes that will run, in order.
func (p *Plan) Stale() []string {
	var out []string
	for _, id := range p.Order {
		if !p.Entries[id].Fresh {
			out = append(out, id)
		}
	}
	return out
}

// Plan computes the freshness of every node the target depends on.
func (p *Project) Plan(ctx context.Context, targetID string) (*Plan, error) {
	logger := ctxlog.FromContext(ctx)

	closure, err := p.Graph.Closure(targetID)
	if err != nil {
		return nil, err
	}
	order, err := p.Graph.TopoOrder(closure)
	if err != nil {
		return nil, err
	}

	var sources []string
	for _, id := range order {
		n, _ := p.Graph.Node(id)
		sources = append(sources, n.Sources...)
	}
	digests, err := cache.HashFiles(ctx, sources)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &config.Error{Path: p.Model.File, Problems: []string{fmt.Sprintf("missing source: %v", err)}}
		}
		return nil, fmt.Errorf("hash sources: %w", err)
	}

	plan := &Plan{Target: targetID, Order: order, Entries: make(map[string]*Entry, len(order))}
	for _, id := range order {
		n, _ := p.Graph.Node(id)

		in := cache.KeyInput{
			Kind:        n.Kind.String(),
			Fingerprint: n.Fingerprint,
			Sources:     make(map[string]string, len(n.Sources)),
			Deps:        make(map[string]string, len(n.Deps)),
		}
		if n.Target != nil {
			in.TargetHash = n.Target.Hash()
		}
		for _, s := range n.Sources {
			in.Sources[s] = digests[s]
		}
		depStale := false
		for _, dep := range n.Deps {
			e := plan.Entries[dep.String()]
			in.Deps[dep.String()] = e.Key
			if !e.Fresh {
				depStale = true
			}
		}

		entry := &Entry{Node: n, Key: cache.Key(in)}
		switch {
		case n.AlwaysRun:
			entry.Reason = cache.ReasonAlwaysRun
		case depStale:
			entry.Reason = cache.ReasonDependencyStale
		default:
			st, err := p.Stamps.Load(id)
			if err != nil {
				return nil, err
			}
			entry.Reason, err = cache.Check(st, entry.Key, n.Outputs)
			if err != nil {
				return nil, fmt.Errorf("check %s: %w", id, err)
			}
		}
		entry.Fresh = entry.Reason == cache.ReasonNone
		plan.Entries[id] = entry
		logger.Debug("Planned node.", "node", id, "fresh", entry.Fresh, "reason", string(entry.Reason))
	}
	return plan, nil
}
