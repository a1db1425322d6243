// Package target describes the freestanding compilation target that every
// object, library and the final link of a kernel image must share.
package target

import (
	"crypto/sha256"
	"debug/elf"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Code models accepted by the kernel-language compiler and the linker.
const (
	CodeModelSmall  = "small"
	CodeModelKernel = "kernel"
	CodeModelMedium = "medium"
	CodeModelLarge  = "large"
)

// Descriptor is the immutable description of a freestanding target.
type Descriptor struct {
	Arch           string `json:"arch"`
	LLVMTarget     string `json:"llvm-target"`
	DataLayout     string `json:"data-layout"`
	PointerWidth   int    `json:"pointer-width"`
	CodeModel      string `json:"code-model"`
	CallingConv    string `json:"calling-convention"`
	Features       string `json:"features"`
	DisableRedZone bool   `json:"disable-redzone"`
	Panic          string `json:"panic-strategy"`
	OS             string `json:"os"`
}

// presets holds the defaults for the architectures kernforge knows how to
// describe out of the box.
var presets = map[string]Descriptor{
	"x86_64": {
		Arch:           "x86_64",
		LLVMTarget:     "x86_64-unknown-none",
		DataLayout:     "e-m:e-p270:32:32-p271:32:32-p272:64:64-i64:64-i128:128-f80:128-n8:16:32:64-S128",
		PointerWidth:   64,
		CodeModel:      CodeModelKernel,
		CallingConv:    "sysv64",
		Features:       "-mmx,-sse,+soft-float",
		DisableRedZone: true,
		Panic:          "abort",
		OS:             "none",
	},
	"i686": {
		Arch:           "x86",
		LLVMTarget:     "i686-unknown-none",
		DataLayout:     "e-m:e-p:32:32-p270:32:32-p271:32:32-p272:64:64-i128:128-f64:32:64-f80:32-n8:16:32-S128",
		PointerWidth:   32,
		CodeModel:      CodeModelSmall,
		CallingConv:    "cdecl",
		Features:       "-mmx,-sse,+soft-float",
		DisableRedZone: true,
		Panic:          "abort",
		OS:             "none",
	},
}

// Default returns the preset descriptor for arch. The second result is false
// when arch has no preset.
func Default(arch string) (Descriptor, bool) {
	d, ok := presets[arch]
	return d, ok
}

// Validate rejects descriptors the toolchain could not honour.
func (d Descriptor) Validate() error {
	if d.Arch == "" {
		return fmt.Errorf("target: arch must not be empty")
	}
	if d.LLVMTarget == "" {
		return fmt.Errorf("target: llvm target must not be empty")
	}
	switch d.CodeModel {
	case CodeModelSmall, CodeModelKernel, CodeModelMedium, CodeModelLarge:
	default:
		return fmt.Errorf("target: unknown code model %q", d.CodeModel)
	}
	if d.PointerWidth != 32 && d.PointerWidth != 64 {
		return fmt.Errorf("target: pointer width must be 32 or 64, got %d", d.PointerWidth)
	}
	if d.OS != "none" {
		return fmt.Errorf("target: freestanding target must have os \"none\", got %q", d.OS)
	}
	return nil
}

// Hash returns the hex sha256 of the descriptor's canonical JSON form. Two
// descriptors with equal hashes are interchangeable for every build action.
func (d Descriptor) Hash() string {
	data, err := json.Marshal(d)
	if err != nil {
		// Descriptor only holds strings, ints and bools.
		panic(fmt.Sprintf("target: marshal descriptor: %v", err))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Name is the target triple used to name the target-spec file and the compiler's
// output directory.
func (d Descriptor) Name() string {
	return d.LLVMTarget
}

// ELFClass is the ELF class objects built for this target must carry.
func (d Descriptor) ELFClass() elf.Class {
	if d.PointerWidth == 32 {
		return elf.ELFCLASS32
	}
	return elf.ELFCLASS64
}

// ELFMachine is the ELF machine objects built for this target must carry.
func (d Descriptor) ELFMachine() elf.Machine {
	switch d.Arch {
	case "x86_64":
		return elf.EM_X86_64
	case "x86":
		return elf.EM_386
	case "aarch64":
		return elf.EM_AARCH64
	case "riscv64":
		return elf.EM_RISCV
	default:
		return elf.EM_NONE
	}
}

// NASMFormat is the object format the assembler must emit for this target.
func (d Descriptor) NASMFormat() string {
	if d.PointerWidth == 32 {
		return "elf32"
	}
	return "elf64"
}
