// Package dag holds the build graph: artifact nodes keyed by address and the
// directed dependency edges between them.
//
// Edges point from a dependency to its dependent. The graph answers the
// structural questions the planner and executor need: which nodes a target
// transitively requires (Closure), a deterministic order that respects every
// edge (TopoOrder), and whether the edges form a cycle (DetectCycles). It also
// enforces that no two nodes declare the same output path.
package dag
