/*
Package builder turns a project model into a validated artifact graph and
decides which parts of that graph need rebuilding.

Graph construction is a multi-phase process:

 1. Discovery: the trampoline and kernel source trees are scanned for the
    files that key each node. Missing sources are configuration errors.

 2. Node Creation: one object node per trampoline source, one static
    library node for the kernel crate, one linked binary, one disc image.
    Each node gets its outputs, fingerprint and action. Output ownership is
    enforced by the `dag` package as nodes are added.

 3. Linking and Validation: dependency edges are added and the graph is
    checked for cycles.

Planning then walks the closure of a requested target in dependency order,
computing each node's content key and comparing it with the recorded stamp.
The resulting *Plan says, for every node, whether it is fresh and if not why.
*/
package builder
