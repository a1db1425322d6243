package config

import (
	"strings"

	"github.com/vk/kernforge/internal/target"
)

// Overrides are the environment-style variables that take precedence over
// the project file.
type Overrides struct {
	Arch      string
	CodeModel string
	KernelSrc string
	BootSrc   string
	BuildDir  string
	QEMU      string
}

// FromEnviron picks the overrides out of an environ-style list
// (os.Environ()). Empty values are ignored.
func FromEnviron(environ []string) Overrides {
	var o Overrides
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || v == "" {
			continue
		}
		switch k {
		case "ARCH":
			o.Arch = v
		case "CODE_MODEL":
			o.CodeModel = v
		case "KERNEL_SRC":
			o.KernelSrc = v
		case "BOOT_SRC":
			o.BootSrc = v
		case "BUILD_DIR":
			o.BuildDir = v
		case "QEMU":
			o.QEMU = v
		}
	}
	return o
}

// Apply layers o over m. Changing the architecture replaces the whole
// target descriptor with that architecture's preset.
func (m *Model) Apply(o Overrides) error {
	if o.Arch != "" {
		desc, ok := target.Default(o.Arch)
		if !ok {
			return Errorf("ARCH: unknown architecture %q", o.Arch)
		}
		if desc.Arch != m.Target.Arch {
			m.Target = desc
		}
	}
	if o.CodeModel != "" {
		m.Target.CodeModel = o.CodeModel
	}
	if o.KernelSrc != "" {
		m.Kernel.Dir = o.KernelSrc
	}
	if o.BootSrc != "" {
		m.Trampoline.Dir = o.BootSrc
	}
	if o.BuildDir != "" {
		m.BuildDir = o.BuildDir
	}
	if o.QEMU != "" {
		m.Emulator.Binary = o.QEMU
	}
	return nil
}
