/*
Package executor runs a build plan on a pool of concurrent workers.

Execution of a plan proceeds in three phases:

 1. Setup: every node in the plan gets a counter of its unfinished
    dependencies, and the nodes with no dependencies are queued on the
    ready channel in plan order.

 2. Work: each worker takes a ready node and either marks it Fresh (its
    stamp is current, nothing runs) or removes its stamp, runs its action
    and records a new stamp. Finishing a node decrements the counters of
    its dependents and queues those that reach zero. A failing node marks
    every transitive dependent Skipped; unless keep-going is set, no new
    work starts afterwards, but actions already running finish.

 3. Report: once every node has settled, the per-node states are collected
    into a Report and the failures into a RunError naming the root cause.
*/
package executor
