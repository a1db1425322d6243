// Package app wires the loader, graph builder, executor and harness into the
// operations the command line exposes.
package app
