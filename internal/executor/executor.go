package executor

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/vk/kernforge/internal/artifact"
	"github.com/vk/kernforge/internal/builder"
	"github.com/vk/kernforge/internal/cache"
	"github.com/vk/kernforge/internal/ctxlog"
)

// Options tune a run.
type Options struct {
	// Jobs is the number of workers; zero means runtime.NumCPU().
	Jobs int
	// KeepGoing keeps scheduling independent nodes after a failure.
	KeepGoing bool
}

// Executor orchestrates the execution of one plan.
type Executor struct {
	plan       *builder.Plan
	stamps     *cache.Store
	env        *artifact.Env
	numWorkers int
	keepGoing  bool

	dependents map[string][]*artifact.Node
	stopped    atomic.Bool
	wg         sync.WaitGroup
}

// New creates an executor for plan. Stamps are read from and written to
// stamps; actions receive env.
func New(plan *builder.Plan, stamps *cache.Store, env *artifact.Env, opts Options) *Executor {
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	return &Executor{
		plan:       plan,
		stamps:     stamps,
		env:        env,
		numWorkers: jobs,
		keepGoing:  opts.KeepGoing,
	}
}

// Run executes the plan and blocks until every node has settled. It returns
// a *RunError when any node failed.
func (e *Executor) Run(ctx context.Context) (*Report, error) {
	logger := ctxlog.FromContext(ctx)

	roots := e.prepare()
	readyChan := make(chan *artifact.Node, len(e.plan.Order))
	logger.Debug("Initializing executor.", "nodes", len(e.plan.Order), "roots", len(roots))
	for _, n := range roots {
		readyChan <- n
	}

	e.wg.Add(len(e.plan.Order))

	logger.Debug("Starting worker pool.", "workers", e.numWorkers)
	for i := 0; i < e.numWorkers; i++ {
		go e.worker(ctx, readyChan, i)
	}

	e.wg.Wait()
	close(readyChan)
	logger.Debug("All nodes settled.")

	report := e.report()
	return report, e.runError(ctx)
}

// prepare resets every node in the plan, computes dependency counters
// restricted to the plan and returns the nodes that are ready at once.
func (e *Executor) prepare() []*artifact.Node {
	e.dependents = make(map[string][]*artifact.Node, len(e.plan.Order))
	e.stopped.Store(false)

	var roots []*artifact.Node
	for _, id := range e.plan.Order {
		n := e.plan.Entries[id].Node
		n.Reset()

		var count int32
		for _, dep := range n.Deps {
			if _, ok := e.plan.Entries[dep.String()]; !ok {
				continue
			}
			count++
			e.dependents[dep.String()] = append(e.dependents[dep.String()], n)
		}
		n.SetDepCount(count)
		if count == 0 {
			roots = append(roots, n)
		}
	}
	return roots
}
