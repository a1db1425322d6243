// Package link owns the linker stage: the explicit section layout, its
// rendering as a GNU ld script, the link action, and verification of the
// produced kernel image against the boot protocol.
package link
