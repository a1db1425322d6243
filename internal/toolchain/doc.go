// Package toolchain holds the explicit, injected description of the pinned
// external tools (assembler, linker, kernel compiler, rescue-image builder,
// emulator) and the Runner abstraction every build action invokes them
// through. Nothing below the application layer looks tools up in the
// ambient environment; they receive an Environment value instead.
package toolchain
