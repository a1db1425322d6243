package toolchain

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/pelletier/go-toml/v2"
)

// Well-known tool names, used as keys in Environment.Tools.
const (
	ToolAssembler = "assembler"
	ToolLinker    = "linker"
	ToolKernel    = "kernel"
	ToolRescue    = "rescue"
	ToolEmulator  = "emulator"
)

// Tool pins one external program.
type Tool struct {
	// Binary is the executable name or path.
	Binary string `toml:"binary"`
	// Args are prepended to every invocation.
	Args []string `toml:"args,omitempty"`
	// Version is a version constraint, e.g. ">= 2.14, < 3".
	Version string `toml:"version,omitempty"`
	// VersionArgs are the arguments that make the tool print its version.
	VersionArgs []string `toml:"version_args,omitempty"`
}

// Environment is the process-wide toolchain state made explicit.
type Environment struct {
	Tools map[string]Tool `toml:"tools"`
	// CacheDir is handed to tools that keep their own caches.
	CacheDir string `toml:"cache_dir,omitempty"`
	// SourceDateEpoch pins embedded timestamps for reproducible images.
	SourceDateEpoch int64 `toml:"source_date_epoch,omitempty"`
	// Env is passed to every command in addition to PATH and HOME.
	Env map[string]string `toml:"env,omitempty"`
}

// Default returns the toolchain kernforge assumes when no toolchain file is
// present.
func Default() *Environment {
	return &Environment{
		Tools: map[string]Tool{
			ToolAssembler: {Binary: "nasm", VersionArgs: []string{"-v"}},
			ToolLinker:    {Binary: "ld", VersionArgs: []string{"--version"}},
			ToolKernel:    {Binary: "cargo", VersionArgs: []string{"--version"}},
			ToolRescue:    {Binary: "grub-mkrescue", VersionArgs: []string{"--version"}},
			ToolEmulator:  {Binary: "qemu-system-x86_64", VersionArgs: []string{"--version"}},
		},
		SourceDateEpoch: 1,
		Env:             map[string]string{},
	}
}

// Load reads a TOML toolchain file and layers it over Default. A missing file
// is not an error; the defaults are returned.
func Load(path string) (*Environment, error) {
	env := Default()
	if path == "" {
		return env, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return env, nil
		}
		return nil, fmt.Errorf("read toolchain file: %w", err)
	}
	return Parse(data)
}

// Parse decodes TOML toolchain data and layers it over Default.
func Parse(data []byte) (*Environment, error) {
	env := Default()

	var file Environment
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse toolchain file: %w", err)
	}

	for name, tool := range file.Tools {
		base := env.Tools[name]
		if tool.Binary != "" {
			base.Binary = tool.Binary
		}
		if tool.Args != nil {
			base.Args = tool.Args
		}
		if tool.Version != "" {
			base.Version = tool.Version
		}
		if tool.VersionArgs != nil {
			base.VersionArgs = tool.VersionArgs
		}
		env.Tools[name] = base
	}
	if file.CacheDir != "" {
		env.CacheDir = file.CacheDir
	}
	if file.SourceDateEpoch != 0 {
		env.SourceDateEpoch = file.SourceDateEpoch
	}
	for k, v := range file.Env {
		env.Env[k] = v
	}
	return env, nil
}

// Marshal renders the environment as TOML.
func (e *Environment) Marshal() ([]byte, error) {
	return toml.Marshal(e)
}

// Tool returns the pinned tool called name.
func (e *Environment) Tool(name string) (Tool, error) {
	tool, ok := e.Tools[name]
	if !ok || tool.Binary == "" {
		return Tool{}, fmt.Errorf("toolchain: no binary configured for %q", name)
	}
	return tool, nil
}

// Command builds an invocation of the named tool with args appended to the
// tool's pinned arguments.
func (e *Environment) Command(name string, args ...string) (Command, error) {
	tool, err := e.Tool(name)
	if err != nil {
		return Command{}, err
	}
	full := make([]string, 0, len(tool.Args)+len(args))
	full = append(full, tool.Args...)
	full = append(full, args...)
	return Command{
		Name: name,
		Path: tool.Binary,
		Args: full,
		Env:  e.environ(),
	}, nil
}

// Fingerprint lists what an artifact built with the named tool depends on
// besides its inputs: the binary, the pinned arguments and the command
// environment.
func (e *Environment) Fingerprint(name string) []string {
	tool := e.Tools[name]
	out := []string{"tool=" + tool.Binary}
	for _, arg := range tool.Args {
		out = append(out, "arg="+arg)
	}
	for _, kv := range e.environ() {
		out = append(out, "env="+kv)
	}
	return out
}

// environ renders Env as a sorted KEY=VALUE slice.
func (e *Environment) environ() []string {
	out := make([]string, 0, len(e.Env)+1)
	for k, v := range e.Env {
		out = append(out, k+"="+v)
	}
	if e.SourceDateEpoch != 0 {
		if _, ok := e.Env["SOURCE_DATE_EPOCH"]; !ok {
			out = append(out, fmt.Sprintf("SOURCE_DATE_EPOCH=%d", e.SourceDateEpoch))
		}
	}
	sort.Strings(out)
	return out
}

// Override replaces the binary of a tool, keeping its other pins.
func (e *Environment) Override(name, binary string) {
	if binary == "" {
		return
	}
	tool := e.Tools[name]
	tool.Binary = binary
	e.Tools[name] = tool
}
