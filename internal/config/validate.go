package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Path resolves p against the model root.
func (m *Model) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Root, p)
}

// BuildPath resolves elems below the build directory.
func (m *Model) BuildPath(elems ...string) string {
	return filepath.Join(append([]string{m.Path(m.BuildDir)}, elems...)...)
}

// ImagePath is where the published disc image lives.
func (m *Model) ImagePath() string {
	return m.BuildPath(m.Image.Output)
}

// Validate collects every problem with m into a single Error.
func (m *Model) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if err := m.Target.Validate(); err != nil {
		add("%v", err)
	}
	if strings.TrimSpace(m.BuildDir) == "" {
		add("build_dir must not be empty")
	}
	if m.Trampoline.Dir == "" {
		add("trampoline: dir must not be empty")
	}
	if m.Trampoline.Entry == "" {
		add("trampoline: entry must not be empty")
	}
	if len(m.Trampoline.Marker) != 4 {
		add("trampoline: marker must be exactly 4 characters, got %q", m.Trampoline.Marker)
	}
	for _, src := range m.Trampoline.Sources {
		if filepath.IsAbs(src) || strings.HasPrefix(filepath.Clean(src), "..") {
			add("trampoline: source %q must be relative to the trampoline dir", src)
		}
	}
	if m.Kernel.Dir == "" {
		add("kernel: dir must not be empty")
	}
	if m.Kernel.Crate == "" {
		add("kernel: crate must not be empty")
	}
	if len(m.Kernel.Extensions) == 0 {
		add("kernel: extensions must not be empty")
	}
	if m.Link.Entry == "" {
		add("link: entry must not be empty")
	}
	if m.Image.Output == "" || filepath.Base(m.Image.Output) != m.Image.Output {
		add("image: output must be a plain file name, got %q", m.Image.Output)
	}
	if m.Image.Timeout < 0 {
		add("image: timeout must not be negative")
	}
	if m.Emulator.Binary == "" {
		add("emulator: binary must not be empty")
	}
	if m.Emulator.GDBPort <= 0 || m.Emulator.GDBPort > 65535 {
		add("emulator: gdb_port %d out of range", m.Emulator.GDBPort)
	}

	if len(problems) > 0 {
		return &Error{Path: m.File, Problems: problems}
	}
	return nil
}
