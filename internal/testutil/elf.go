package testutil

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

// Multiboot2 header constants, duplicated here so fixtures do not depend on
// the package under test.
const (
	mb2Magic     uint32 = 0xe85250d6
	mb2HeaderLen uint32 = 24
)

// MultibootHeader returns a minimal multiboot2 header: magic, architecture
// (i386), length, checksum and the end tag.
func MultibootHeader() []byte {
	buf := make([]byte, mb2HeaderLen)
	binary.LittleEndian.PutUint32(buf[0:], mb2Magic)
	binary.LittleEndian.PutUint32(buf[4:], 0)
	binary.LittleEndian.PutUint32(buf[8:], mb2HeaderLen)
	sum := mb2Magic + mb2HeaderLen
	binary.LittleEndian.PutUint32(buf[12:], -sum)
	// End tag: type 0, flags 0, size 8.
	binary.LittleEndian.PutUint32(buf[20:], 8)
	return buf
}

// ELFSection is one allocated section of an ELFImage.
type ELFSection struct {
	Name  string
	Addr  uint64
	Data  []byte
	Align uint64
	// Flags defaults to SHF_ALLOC|SHF_EXECINSTR.
	Flags elf.SectionFlag
}

// ELFSymbol is a global function symbol. An empty Section makes it undefined.
type ELFSymbol struct {
	Name    string
	Section string
	Value   uint64
}

// ELFImage describes a little-endian ELF64 file built for tests.
type ELFImage struct {
	Machine  elf.Machine
	Type     elf.Type
	Entry    uint64
	Sections []ELFSection
	Symbols  []ELFSymbol
}

// KernelImage returns a well-formed kernel: the multiboot2 header in .boot
// at 1 MiB, and .text holding the start and entry symbols.
func KernelImage(entry string) ELFImage {
	return ELFImage{
		Machine: elf.EM_X86_64,
		Type:    elf.ET_EXEC,
		Entry:   0x101000,
		Sections: []ELFSection{
			{Name: ".boot", Addr: 0x100000, Data: MultibootHeader(), Align: 8, Flags: elf.SHF_ALLOC},
			{Name: ".text", Addr: 0x101000, Data: bytes.Repeat([]byte{0x90}, 32), Align: 4096},
		},
		Symbols: []ELFSymbol{
			{Name: "start", Section: ".text", Value: 0x101000},
			{Name: entry, Section: ".text", Value: 0x101010},
		},
	}
}

// ObjectHeader returns a bare relocatable ELF header for class and machine,
// with no sections. It is enough for header inspection.
func ObjectHeader(class elf.Class, machine elf.Machine) []byte {
	var buf bytes.Buffer
	id := ident(class)
	if class == elf.ELFCLASS32 {
		binary.Write(&buf, binary.LittleEndian, elf.Header32{
			Ident:   id,
			Type:    uint16(elf.ET_REL),
			Machine: uint16(machine),
			Version: uint32(elf.EV_CURRENT),
			Ehsize:  52,
		})
		return buf.Bytes()
	}
	binary.Write(&buf, binary.LittleEndian, elf.Header64{
		Ident:   id,
		Type:    uint16(elf.ET_REL),
		Machine: uint16(machine),
		Version: uint32(elf.EV_CURRENT),
		Ehsize:  64,
	})
	return buf.Bytes()
}

func ident(class elf.Class) [elf.EI_NIDENT]byte {
	var id [elf.EI_NIDENT]byte
	copy(id[:], elf.ELFMAG)
	id[elf.EI_CLASS] = byte(class)
	id[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	id[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	return id
}

// strtab accumulates a string table.
type strtab struct {
	buf bytes.Buffer
}

func newStrtab() *strtab {
	s := &strtab{}
	s.buf.WriteByte(0)
	return s
}

func (s *strtab) add(name string) uint32 {
	off := uint32(s.buf.Len())
	s.buf.WriteString(name)
	s.buf.WriteByte(0)
	return off
}

// Bytes renders the image. Section data follows the ELF header in order,
// each placed at a file offset aligned to min(Align, 8), followed by the
// symbol table, string tables and the section header table.
func (img ELFImage) Bytes() []byte {
	const ehsize = 64

	shstr := newStrtab()
	symstr := newStrtab()

	var body bytes.Buffer
	body.Write(make([]byte, ehsize))
	pad := func(align int) {
		for body.Len()%align != 0 {
			body.WriteByte(0)
		}
	}

	headers := []elf.Section64{{}}
	index := make(map[string]uint16)
	for _, s := range img.Sections {
		pad(8)
		off := body.Len()
		body.Write(s.Data)
		flags := s.Flags
		if flags == 0 {
			flags = elf.SHF_ALLOC | elf.SHF_EXECINSTR
		}
		index[s.Name] = uint16(len(headers))
		headers = append(headers, elf.Section64{
			Name:      shstr.add(s.Name),
			Type:      uint32(elf.SHT_PROGBITS),
			Flags:     uint64(flags),
			Addr:      s.Addr,
			Off:       uint64(off),
			Size:      uint64(len(s.Data)),
			Addralign: max(s.Align, 1),
		})
	}

	var syms bytes.Buffer
	binary.Write(&syms, binary.LittleEndian, elf.Sym64{})
	for _, sym := range img.Symbols {
		shndx := uint16(elf.SHN_UNDEF)
		if sym.Section != "" {
			shndx = index[sym.Section]
		}
		binary.Write(&syms, binary.LittleEndian, elf.Sym64{
			Name:  symstr.add(sym.Name),
			Info:  elf.ST_INFO(elf.STB_GLOBAL, elf.STT_FUNC),
			Shndx: shndx,
			Value: sym.Value,
		})
	}

	symtabIdx := uint32(len(headers))
	pad(8)
	headers = append(headers, elf.Section64{
		Name:      shstr.add(".symtab"),
		Type:      uint32(elf.SHT_SYMTAB),
		Off:       uint64(body.Len()),
		Size:      uint64(syms.Len()),
		Link:      symtabIdx + 1,
		Info:      1,
		Addralign: 8,
		Entsize:   elf.Sym64Size,
	})
	body.Write(syms.Bytes())

	headers = append(headers, elf.Section64{
		Name:      shstr.add(".strtab"),
		Type:      uint32(elf.SHT_STRTAB),
		Off:       uint64(body.Len()),
		Size:      uint64(symstr.buf.Len()),
		Addralign: 1,
	})
	body.Write(symstr.buf.Bytes())

	shstrName := shstr.add(".shstrtab")
	headers = append(headers, elf.Section64{
		Name:      shstrName,
		Type:      uint32(elf.SHT_STRTAB),
		Off:       uint64(body.Len()),
		Size:      uint64(shstr.buf.Len()),
		Addralign: 1,
	})
	body.Write(shstr.buf.Bytes())

	pad(8)
	shoff := body.Len()
	for _, h := range headers {
		binary.Write(&body, binary.LittleEndian, h)
	}

	out := body.Bytes()
	var hdr bytes.Buffer
	binary.Write(&hdr, binary.LittleEndian, elf.Header64{
		Ident:     ident(elf.ELFCLASS64),
		Type:      uint16(img.Type),
		Machine:   uint16(img.Machine),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     img.Entry,
		Shoff:     uint64(shoff),
		Ehsize:    ehsize,
		Shentsize: 64,
		Shnum:     uint16(len(headers)),
		Shstrndx:  uint16(len(headers) - 1),
	})
	copy(out, hdr.Bytes())
	return out
}
