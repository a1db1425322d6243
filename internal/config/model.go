package config

import (
	"github.com/vk/kernforge/internal/target"
)

// Well-known defaults.
const (
	DefaultArch      = "x86_64"
	DefaultBuildDir  = "build"
	DefaultEmulator  = "qemu-system-x86_64"
	DefaultGDBPort   = 1234
	DefaultEntry     = "kmain"
	DefaultStart     = "start"
	DefaultMarker    = "RET!"
	DefaultImageName = "os"
	// BootLoadAddress is where the boot protocol expects the header section.
	BootLoadAddress uint64 = 0x100000
	// BootHeaderSection is the output section holding the multiboot2 header.
	BootHeaderSection = ".boot"
)

// Model is the unified, format-agnostic representation of a kernforge
// project.
type Model struct {
	// Name labels the project; it titles the boot menu entry.
	Name string
	// Root is the directory relative paths are resolved against.
	Root string
	// File is the project file the model was loaded from, if any.
	File     string
	BuildDir string

	Target     target.Descriptor
	Trampoline Trampoline
	Kernel     Kernel
	Link       Link
	Image      Image
	Emulator   Emulator
}

// Trampoline describes the assembly sources of the boot trampoline.
type Trampoline struct {
	Dir string
	// Sources lists files under Dir; empty means every .asm file in Dir.
	Sources []string
	// Entry is the kernel symbol the trampoline calls.
	Entry string
	// Marker is the 4-character text written to the VGA buffer when the
	// entry returns.
	Marker string
}

// Kernel describes the kernel library crate.
type Kernel struct {
	Dir   string
	Crate string
	// Extensions selects the source files that key the library.
	Extensions []string
	Profile    string
	// Format and Lint enable the two quality gates that precede compilation.
	Format bool
	Lint   bool
	// Features are passed to the compiler as --features.
	Features []string
}

// Link describes the linker stage.
type Link struct {
	// Entry is the ELF entry symbol, the trampoline's first instruction.
	Entry      string
	GCSections bool
	Sections   []Section
}

// Section is one output section of the link layout, in placement order.
type Section struct {
	Name string
	// Address is the load address; zero means "follow the previous section".
	Address uint64
	Align   uint64
	// Inputs are input-section patterns such as ".text .text.*".
	Inputs []string
	// Keep protects the inputs from section garbage collection.
	Keep bool
}

// Image describes the bootable disc image.
type Image struct {
	Name    string
	Output  string
	Timeout int
}

// Emulator describes how the image is launched.
type Emulator struct {
	Binary    string
	Memory    string
	GDBPort   int
	QMPSocket string
	Args      []string
}

// Default returns a model populated with every default value. Loaders start
// from it and overwrite what the project file sets.
func Default() *Model {
	desc, _ := target.Default(DefaultArch)
	return &Model{
		Name:     "kernel",
		Root:     ".",
		BuildDir: DefaultBuildDir,
		Target:   desc,
		Trampoline: Trampoline{
			Dir:    "src/arch/x86_64",
			Entry:  DefaultEntry,
			Marker: DefaultMarker,
		},
		Kernel: Kernel{
			Dir:        ".",
			Crate:      "kernel",
			Extensions: []string{".rs", "Cargo.toml", "Cargo.lock"},
			Profile:    "release",
			Format:     true,
			Lint:       true,
		},
		Link: Link{
			Entry:      DefaultStart,
			GCSections: true,
			Sections:   DefaultSections(),
		},
		Image: Image{
			Name:   DefaultImageName,
			Output: DefaultImageName + ".iso",
		},
		Emulator: Emulator{
			Binary:  DefaultEmulator,
			Memory:  "128M",
			GDBPort: DefaultGDBPort,
		},
	}
}

// DefaultSections is the layout used when the project declares none: the
// boot header at 1 MiB followed by code, read-only data, data and bss.
func DefaultSections() []Section {
	return []Section{
		{Name: BootHeaderSection, Address: BootLoadAddress, Inputs: []string{".multiboot_header"}, Keep: true},
		{Name: ".text", Align: 4096, Inputs: []string{".text", ".text.*"}},
		{Name: ".rodata", Align: 4096, Inputs: []string{".rodata", ".rodata.*"}},
		{Name: ".data", Align: 4096, Inputs: []string{".data", ".data.*"}},
		{Name: ".bss", Align: 4096, Inputs: []string{".bss", ".bss.*", "COMMON"}},
	}
}
