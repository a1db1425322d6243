// Package cli maps the kernforge command line onto the app layer: one cobra
// command per build target plus plan, clean, init and toolchain verify. It
// owns flag parsing and turns failures into process exit codes (1 for a
// failed build, 2 for usage and configuration errors).
package cli
