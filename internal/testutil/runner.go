package testutil

import (
	"context"
	"crypto/sha256"
	"debug/elf"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/vk/kernforge/internal/toolchain"
)

// Call records one command seen by a FakeRunner.
type Call struct {
	Tool string
	Path string
	Args []string
	Dir  string
	Env  []string
}

// Handler fakes one tool.
type Handler func(ctx context.Context, cmd toolchain.Command) error

// failure makes matching commands exit non-zero.
type failure struct {
	tool   string
	substr string
	status int
	stderr string
}

// FakeRunner is a toolchain.Runner that records invocations and writes the
// outputs real tools would, so graphs run end to end without compilers.
type FakeRunner struct {
	mu       sync.Mutex
	calls    []Call
	handlers map[string]Handler
	failures []failure

	// Crate names the static library the kernel tool produces.
	Crate string
	// Entry is the kernel entry symbol placed in linked images.
	Entry string
	// Versions is what version probes print, per tool. Unlisted tools
	// report 1.0.0.
	Versions map[string]string
}

// NewFakeRunner returns a runner with handlers for every well-known tool.
func NewFakeRunner() *FakeRunner {
	r := &FakeRunner{Crate: "kernel", Entry: "kmain"}
	r.handlers = map[string]Handler{
		toolchain.ToolAssembler: r.assemble,
		toolchain.ToolLinker:    r.link,
		toolchain.ToolKernel:    r.cargo,
		toolchain.ToolRescue:    r.rescue,
		toolchain.ToolEmulator:  func(context.Context, toolchain.Command) error { return nil },
	}
	return r
}

// Handle replaces the handler for tool.
func (r *FakeRunner) Handle(tool string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[tool] = h
}

// FailOn makes invocations of tool whose command line contains substr exit
// with status. An empty substr matches every invocation.
func (r *FakeRunner) FailOn(tool, substr string, status int, stderr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, failure{tool: tool, substr: substr, status: status, stderr: stderr})
}

// ClearFailures removes every FailOn rule.
func (r *FakeRunner) ClearFailures() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = nil
}

// Calls returns a copy of every recorded call.
func (r *FakeRunner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

// CallsFor returns the recorded calls of tool.
func (r *FakeRunner) CallsFor(tool string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Tool == tool {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets recorded calls.
func (r *FakeRunner) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// Run implements toolchain.Runner.
func (r *FakeRunner) Run(ctx context.Context, cmd toolchain.Command) error {
	r.mu.Lock()
	r.calls = append(r.calls, Call{
		Tool: cmd.Name,
		Path: cmd.Path,
		Args: slices.Clone(cmd.Args),
		Dir:  cmd.Dir,
		Env:  slices.Clone(cmd.Env),
	})
	h := r.handlers[cmd.Name]
	var fail *failure
	for i := range r.failures {
		f := r.failures[i]
		if f.tool == cmd.Name && strings.Contains(cmd.String(), f.substr) {
			fail = &f
			break
		}
	}
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if fail != nil {
		return &toolchain.ExitError{Tool: cmd.Name, Command: cmd.String(), Status: fail.status, Stderr: fail.stderr}
	}
	if isVersionProbe(cmd.Args) {
		if cmd.Stdout != nil {
			fmt.Fprintf(cmd.Stdout, "%s version %s\n", cmd.Path, r.version(cmd.Name))
		}
		return nil
	}
	if h == nil {
		return fmt.Errorf("fake runner: no handler for tool %q", cmd.Name)
	}
	return h(ctx, cmd)
}

func (r *FakeRunner) version(tool string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.Versions[tool]; ok {
		return v
	}
	return "1.0.0"
}

func isVersionProbe(args []string) bool {
	return len(args) == 1 && (args[0] == "--version" || args[0] == "-v")
}

// flag returns the value following name in args.
func flag(args []string, name string) string {
	for i, a := range args {
		if a == name && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func writeOutput(path string, data []byte) error {
	if path == "" {
		return fmt.Errorf("fake runner: missing -o")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// assemble writes an ELF header for the requested format followed by the
// source text, so the object changes whenever the source does.
func (r *FakeRunner) assemble(_ context.Context, cmd toolchain.Command) error {
	src, err := os.ReadFile(cmd.Args[len(cmd.Args)-1])
	if err != nil {
		return &toolchain.ExitError{Tool: cmd.Name, Command: cmd.String(), Status: 1, Stderr: err.Error()}
	}
	class, machine := elf.ELFCLASS64, elf.EM_X86_64
	if flag(cmd.Args, "-f") == "elf32" {
		class, machine = elf.ELFCLASS32, elf.EM_386
	}
	return writeOutput(flag(cmd.Args, "-o"), append(ObjectHeader(class, machine), src...))
}

// link writes a well-formed kernel image.
func (r *FakeRunner) link(_ context.Context, cmd toolchain.Command) error {
	if _, err := os.Stat(flag(cmd.Args, "-T")); err != nil {
		return &toolchain.ExitError{Tool: cmd.Name, Command: cmd.String(), Status: 1, Stderr: "cannot open linker script"}
	}
	return writeOutput(flag(cmd.Args, "-o"), KernelImage(r.Entry).Bytes())
}

// cargo handles the fmt, clippy and build subcommands. Only build writes an
// archive, to <target-dir>/<triple>/<profile>/lib<crate>.a, holding one
// object whose class follows the target's pointer width.
func (r *FakeRunner) cargo(_ context.Context, cmd toolchain.Command) error {
	if !slices.Contains(cmd.Args, "build") {
		return nil
	}
	spec := flag(cmd.Args, "--target")
	triple := strings.TrimSuffix(filepath.Base(spec), ".json")
	profile := "debug"
	if slices.Contains(cmd.Args, "--release") {
		profile = "release"
	}

	// The archive reflects the crate sources so that edits propagate.
	h := sha256.New()
	filepath.WalkDir(cmd.Dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(p, ".rs") {
			return nil
		}
		data, _ := os.ReadFile(p)
		h.Write(data)
		return nil
	})
	class, machine := elf.ELFCLASS64, elf.EM_X86_64
	if data, err := os.ReadFile(spec); err == nil {
		var desc struct {
			Width string `json:"target-pointer-width"`
		}
		if json.Unmarshal(data, &desc) == nil && desc.Width == "32" {
			class, machine = elf.ELFCLASS32, elf.EM_386
		}
	}
	archive := Archive(append(ObjectHeader(class, machine), h.Sum(nil)...))
	out := filepath.Join(flag(cmd.Args, "--target-dir"), triple, profile, "lib"+r.Crate+".a")
	return writeOutput(out, archive)
}

// rescue writes an "image" that digests the staged kernel and grub config.
func (r *FakeRunner) rescue(_ context.Context, cmd toolchain.Command) error {
	staging := cmd.Args[len(cmd.Args)-1]
	h := sha256.New()
	for _, rel := range []string{"boot/kernel.bin", "boot/grub/grub.cfg"} {
		data, err := os.ReadFile(filepath.Join(staging, rel))
		if err != nil {
			return &toolchain.ExitError{Tool: cmd.Name, Command: cmd.String(), Status: 1, Stderr: err.Error()}
		}
		h.Write(data)
	}
	return writeOutput(flag(cmd.Args, "-o"), append([]byte("CD001"), h.Sum(nil)...))
}
