// Package testutil holds shared helpers for kernforge tests: a thread-safe
// log buffer, a fake toolchain runner that produces plausible outputs, an
// ELF image builder, and a sleeper action for concurrency tests.
package testutil
