/*
Package nodeid provides a structured, type-safe representation for artifact
identifiers within the build graph, based on the canonical format `kind.name`.

The kind is a single segment naming the artifact class (`object`, `library`,
`binary`, `image`); the name is everything after the first dot, so it may
itself contain dots (e.g. `object.long_mode_start`).
*/
package nodeid
