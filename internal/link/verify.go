package link

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/blakesmith/ar"

	"github.com/vk/kernforge/internal/boot"
	"github.com/vk/kernforge/internal/target"
)

// Expect is what a linked kernel image must satisfy.
type Expect struct {
	Target target.Descriptor
	// Symbols must be defined, e.g. the start symbol and the kernel entry.
	Symbols     []string
	BootSection string
	BootAddress uint64
}

// VerifyError lists every way an image violates its expectations.
type VerifyError struct {
	Path     string
	Problems []string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("kernel image %s failed verification: %s", e.Path, strings.Join(e.Problems, "; "))
}

// Verify inspects the ELF file at path.
func Verify(path string, want Expect) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read kernel image: %w", err)
	}
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return &VerifyError{Path: path, Problems: []string{fmt.Sprintf("not an ELF file: %v", err)}}
	}
	defer f.Close()

	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if f.Class != want.Target.ELFClass() {
		add("ELF class %v, target %s needs %v", f.Class, want.Target.Name(), want.Target.ELFClass())
	}
	if f.Machine != want.Target.ELFMachine() {
		add("machine %v, target %s needs %v", f.Machine, want.Target.Name(), want.Target.ELFMachine())
	}

	defined := make(map[string]bool)
	if syms, err := f.Symbols(); err == nil {
		for _, s := range syms {
			if s.Section != elf.SHN_UNDEF {
				defined[s.Name] = true
			}
		}
	}
	for _, name := range want.Symbols {
		if !defined[name] {
			add("symbol %s is not defined", name)
		}
	}

	off, err := boot.FindHeader(data)
	if err != nil {
		add("%v", err)
	}

	if want.BootSection != "" {
		sec := f.Section(want.BootSection)
		switch {
		case sec == nil:
			add("boot section %s missing", want.BootSection)
		case sec.Addr != want.BootAddress:
			add("boot section %s loaded at %#x, want %#x", want.BootSection, sec.Addr, want.BootAddress)
		case err == nil && (uint64(off) < sec.Offset || uint64(off) >= sec.Offset+sec.Size):
			add("multiboot2 header at offset %#x is outside boot section %s", off, want.BootSection)
		}
	}

	problems = append(problems, overlaps(f.Sections)...)

	if len(problems) > 0 {
		return &VerifyError{Path: path, Problems: problems}
	}
	return nil
}

// overlaps reports allocated sections whose address ranges intersect.
func overlaps(sections []*elf.Section) []string {
	var alloc []*elf.Section
	for _, s := range sections {
		if s.Flags&elf.SHF_ALLOC != 0 && s.Size > 0 {
			alloc = append(alloc, s)
		}
	}
	sort.Slice(alloc, func(i, j int) bool { return alloc[i].Addr < alloc[j].Addr })

	var out []string
	for i := 1; i < len(alloc); i++ {
		prev, cur := alloc[i-1], alloc[i]
		if prev.Addr+prev.Size > cur.Addr {
			out = append(out, fmt.Sprintf("sections %s [%#x, %#x) and %s [%#x, %#x) overlap",
				prev.Name, prev.Addr, prev.Addr+prev.Size, cur.Name, cur.Addr, cur.Addr+cur.Size))
		}
	}
	return out
}

// CheckObject confirms an object file was built for d.
func CheckObject(path string, d target.Descriptor) error {
	f, err := elf.Open(path)
	if err != nil {
		return fmt.Errorf("object %s: %w", path, err)
	}
	defer f.Close()
	if f.Class != d.ELFClass() || f.Machine != d.ELFMachine() {
		return fmt.Errorf("object %s is %v/%v, target %s needs %v/%v",
			path, f.Class, f.Machine, d.Name(), d.ELFClass(), d.ELFMachine())
	}
	return nil
}

// CheckArchive inspects every ELF member of the static library at path and
// returns one problem per member that does not match d. Symbol and name
// tables are skipped.
func CheckArchive(path string, d target.Descriptor) []string {
	f, err := os.Open(path)
	if err != nil {
		return []string{fmt.Sprintf("library %s: %v", path, err)}
	}
	defer f.Close()

	var problems []string
	members := 0
	rd := ar.NewReader(f)
	for {
		hdr, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return append(problems, fmt.Sprintf("library %s: %v", path, err))
		}
		data, err := io.ReadAll(rd)
		if err != nil {
			return append(problems, fmt.Sprintf("library %s: member %s: %v", path, hdr.Name, err))
		}
		if !bytes.HasPrefix(data, []byte(elf.ELFMAG)) {
			continue
		}
		members++

		name := strings.TrimSuffix(strings.TrimSpace(hdr.Name), "/")
		ef, err := elf.NewFile(bytes.NewReader(data))
		if err != nil {
			problems = append(problems, fmt.Sprintf("library %s: member %s: %v", path, name, err))
			continue
		}
		if ef.Class != d.ELFClass() || ef.Machine != d.ELFMachine() {
			problems = append(problems, fmt.Sprintf("library %s: member %s is %v/%v, target %s needs %v/%v",
				path, name, ef.Class, ef.Machine, d.Name(), d.ELFClass(), d.ELFMachine()))
		}
	}
	if members == 0 && len(problems) == 0 {
		problems = append(problems, fmt.Sprintf("library %s has no object members", path))
	}
	return problems
}
