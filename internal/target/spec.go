package target

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// specFile mirrors the custom target JSON understood by the kernel-language
// compiler.
type specFile struct {
	LLVMTarget         string `json:"llvm-target"`
	DataLayout         string `json:"data-layout"`
	Arch               string `json:"arch"`
	TargetEndian       string `json:"target-endian"`
	TargetPointerWidth string `json:"target-pointer-width"`
	TargetCIntWidth    string `json:"target-c-int-width"`
	OS                 string `json:"os"`
	Executables        bool   `json:"executables"`
	LinkerFlavor       string `json:"linker-flavor"`
	Linker             string `json:"linker"`
	PanicStrategy      string `json:"panic-strategy"`
	DisableRedZone     bool   `json:"disable-redzone"`
	Features           string `json:"features"`
	CodeModel          string `json:"code-model"`
}

// MarshalSpec renders the compiler target-spec JSON for d.
func (d Descriptor) MarshalSpec() ([]byte, error) {
	spec := specFile{
		LLVMTarget:         d.LLVMTarget,
		DataLayout:         d.DataLayout,
		Arch:               d.Arch,
		TargetEndian:       "little",
		TargetPointerWidth: strconv.Itoa(d.PointerWidth),
		TargetCIntWidth:    "32",
		OS:                 d.OS,
		Executables:        true,
		LinkerFlavor:       "ld.lld",
		Linker:             "rust-lld",
		PanicStrategy:      d.Panic,
		DisableRedZone:     d.DisableRedZone,
		Features:           d.Features,
		CodeModel:          d.CodeModel,
	}
	data, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal target spec: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteSpec writes the target-spec JSON into dir as `<triple>.json` and
// returns its path.
func (d Descriptor) WriteSpec(dir string) (string, error) {
	data, err := d.MarshalSpec()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create target spec dir: %w", err)
	}
	path := filepath.Join(dir, d.Name()+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write target spec: %w", err)
	}
	return path, nil
}
