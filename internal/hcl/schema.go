package hcl

import (
	"github.com/hashicorp/hcl/v2"
)

// fileRoot decodes every top-level item of a project file.
type fileRoot struct {
	Name       *string          `hcl:"name,optional"`
	BuildDir   *string          `hcl:"build_dir,optional"`
	Target     *targetBlock     `hcl:"target,block"`
	Trampoline *trampolineBlock `hcl:"trampoline,block"`
	Kernel     *kernelBlock     `hcl:"kernel,block"`
	Link       *linkBlock       `hcl:"link,block"`
	Image      *imageBlock      `hcl:"image,block"`
	Emulator   *emulatorBlock   `hcl:"emulator,block"`
}

type targetBlock struct {
	Arch           *string `hcl:"arch,optional"`
	LLVMTarget     *string `hcl:"llvm_target,optional"`
	DataLayout     *string `hcl:"data_layout,optional"`
	CodeModel      *string `hcl:"code_model,optional"`
	Features       *string `hcl:"features,optional"`
	DisableRedZone *bool   `hcl:"disable_red_zone,optional"`
}

type trampolineBlock struct {
	Dir     *string  `hcl:"dir,optional"`
	Sources []string `hcl:"sources,optional"`
	Entry   *string  `hcl:"entry,optional"`
	Marker  *string  `hcl:"marker,optional"`
}

type kernelBlock struct {
	Dir        *string  `hcl:"dir,optional"`
	Crate      *string  `hcl:"crate,optional"`
	Extensions []string `hcl:"extensions,optional"`
	Profile    *string  `hcl:"profile,optional"`
	Format     *bool    `hcl:"format,optional"`
	Lint       *bool    `hcl:"lint,optional"`
	Features   []string `hcl:"features,optional"`
}

type linkBlock struct {
	Entry      *string        `hcl:"entry,optional"`
	GCSections *bool          `hcl:"gc_sections,optional"`
	Sections   []sectionBlock `hcl:"section,block"`
}

type sectionBlock struct {
	Name string `hcl:"name,label"`
	// Address and Align accept numbers or strings such as "0x100000" or "1M".
	Address hcl.Expression `hcl:"address,optional"`
	Align   hcl.Expression `hcl:"align,optional"`
	Inputs  []string       `hcl:"inputs,optional"`
	Keep    *bool          `hcl:"keep,optional"`
}

type imageBlock struct {
	Name    *string `hcl:"name,optional"`
	Output  *string `hcl:"output,optional"`
	Timeout *int    `hcl:"timeout,optional"`
}

type emulatorBlock struct {
	Binary    *string  `hcl:"binary,optional"`
	Memory    *string  `hcl:"memory,optional"`
	GDBPort   *int     `hcl:"gdb_port,optional"`
	QMPSocket *string  `hcl:"qmp_socket,optional"`
	Args      []string `hcl:"args,optional"`
}
