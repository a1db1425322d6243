// Package artifact defines the Artifact Node: one derived file (or set of
// files) in the build graph, the sources and dependencies it is made from,
// and the action that makes it.
package artifact

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/vk/kernforge/internal/nodeid"
	"github.com/vk/kernforge/internal/target"
	"github.com/vk/kernforge/internal/toolchain"
)

// Kind classifies what an artifact node produces.
type Kind int

const (
	Object Kind = iota
	StaticLibrary
	LinkedBinary
	DiscImage
)

func (k Kind) String() string {
	switch k {
	case Object:
		return "object"
	case StaticLibrary:
		return "static-library"
	case LinkedBinary:
		return "linked-binary"
	case DiscImage:
		return "disc-image"
	default:
		return "unknown"
	}
}

// State is the run-time state of a node within one graph run.
type State int32

const (
	Pending State = iota
	Running
	Done
	// Fresh means the node was up to date and its action did not run.
	Fresh
	Failed
	// Skipped means an upstream node failed, so this one was not attempted.
	Skipped
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Done:
		return "done"
	case Fresh:
		return "fresh"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Env is what an action receives when it runs.
type Env struct {
	Toolchain *toolchain.Environment
	Runner    toolchain.Runner
}

// Action produces a node's outputs. Implementations must only write the
// node's declared outputs (and scratch space under their own directories).
type Action interface {
	Run(ctx context.Context, env *Env) error
}

// ActionFunc adapts a function to the Action interface.
type ActionFunc func(ctx context.Context, env *Env) error

// Run implements Action.
func (f ActionFunc) Run(ctx context.Context, env *Env) error {
	return f(ctx, env)
}

// Node is a single vertex in the build graph.
type Node struct {
	addr nodeid.Address

	Kind Kind
	// Sources are raw, non-derived input files.
	Sources []string
	// Deps are the addresses of the nodes whose outputs this node consumes.
	Deps []nodeid.Address
	// Outputs are the files this node owns. No other node may declare them.
	Outputs []string
	// Target is the descriptor the node is compiled for; nil for nodes that
	// do not compile (e.g. the disc image).
	Target *target.Descriptor
	// Fingerprint is extra key material such as flags or rendered scripts.
	Fingerprint []string
	// AlwaysRun disables freshness checks for this node.
	AlwaysRun bool
	// Atomic means the action publishes its outputs by rename, so a failed
	// run leaves the previous outputs in place.
	Atomic bool
	Action Action

	// Error holds the failure (or skip reason) after a run.
	Error error

	state    atomic.Int32
	depCount atomic.Int32
	skipOnce sync.Once
}

// New creates a node at addr.
func New(addr nodeid.Address, kind Kind) *Node {
	return &Node{addr: addr, Kind: kind}
}

// ID returns the canonical string form of the node's address.
func (n *Node) ID() string {
	return n.addr.String()
}

// Address returns the node's address.
func (n *Node) Address() nodeid.Address {
	return n.addr
}

// State returns the node's current run state.
func (n *Node) State() State {
	return State(n.state.Load())
}

// SetState stores the node's run state.
func (n *Node) SetState(s State) {
	n.state.Store(int32(s))
}

// SetDepCount initializes the number of unfinished dependencies.
func (n *Node) SetDepCount(count int32) {
	n.depCount.Store(count)
}

// DepCount returns the number of unfinished dependencies.
func (n *Node) DepCount() int32 {
	return n.depCount.Load()
}

// DecrementDepCount records one finished dependency and returns the remainder.
func (n *Node) DecrementDepCount() int32 {
	return n.depCount.Add(-1)
}

// SkipOnce runs fn the first time it is called for this node. It guards the
// transition into Skipped or canceled, which several workers may race for.
func (n *Node) SkipOnce(fn func()) {
	n.skipOnce.Do(fn)
}

// Reset clears run state so the node can take part in another run.
func (n *Node) Reset() {
	n.state.Store(int32(Pending))
	n.depCount.Store(0)
	n.skipOnce = sync.Once{}
	n.Error = nil
}
