package boot

import (
	"encoding/binary"
	"fmt"
)

// Multiboot2 protocol constants.
const (
	// HeaderMagic starts the header embedded in the kernel image.
	HeaderMagic uint32 = 0xe85250d6
	// BootloaderMagic is what a compliant loader leaves in EAX.
	BootloaderMagic uint32 = 0x36d76289
	// ArchI386 is the only architecture value GRUB accepts for x86 kernels:
	// the machine is entered in 32-bit protected mode.
	ArchI386 uint32 = 0
	// HeaderAlign is the required alignment of the header within the file.
	HeaderAlign = 8
	// SearchLimit bounds how far into the file the loader looks.
	SearchLimit = 32 * 1024
	// VGABuffer is the text-mode buffer the trampoline writes to on return.
	VGABuffer uint64 = 0xb8000
	// MarkerAttribute is white-on-red, used for every marker character.
	MarkerAttribute byte = 0x4f
)

// Contract states what the trampoline relies on and what it guarantees.
type Contract struct {
	Requires []string
	Ensures  []string
}

// HandoffContract returns the boot handoff contract for a trampoline that
// calls entry.
func HandoffContract(entry string) Contract {
	return Contract{
		Requires: []string{
			"processor in 32-bit protected mode with paging disabled",
			fmt.Sprintf("EAX holds the multiboot2 magic %#x", BootloaderMagic),
			"EBX holds the physical address of the boot information structure",
			"the kernel image is loaded at the address of its boot header section",
		},
		Ensures: []string{
			"long mode is active with an identity-mapped first gigabyte",
			"segment registers ss, ds, es, fs and gs hold the null selector",
			fmt.Sprintf("%s is called exactly once with the boot information pointer as its first argument", entry),
			fmt.Sprintf("if %s returns, the marker is written to %#x and the processor halts forever", entry, VGABuffer),
		},
	}
}

// Checksum is the value that makes magic, arch, length and itself sum to
// zero modulo 2^32.
func Checksum(magic, arch, length uint32) uint32 {
	return -(magic + arch + length)
}

// FindHeader locates a valid multiboot2 header in image the way a loader
// does: at an 8-byte aligned offset within the first 32 KiB, with a
// checksum that balances. It returns the header's file offset.
func FindHeader(image []byte) (int, error) {
	limit := min(len(image), SearchLimit)
	for off := 0; off+16 <= limit; off += HeaderAlign {
		if binary.LittleEndian.Uint32(image[off:]) != HeaderMagic {
			continue
		}
		arch := binary.LittleEndian.Uint32(image[off+4:])
		length := binary.LittleEndian.Uint32(image[off+8:])
		sum := binary.LittleEndian.Uint32(image[off+12:])
		if Checksum(HeaderMagic, arch, length) != sum {
			return off, fmt.Errorf("multiboot2 header at offset %#x has bad checksum", off)
		}
		if length < 16 || int(length) > len(image)-off {
			return off, fmt.Errorf("multiboot2 header at offset %#x has invalid length %d", off, length)
		}
		return off, nil
	}
	return -1, fmt.Errorf("no multiboot2 header in the first %d bytes", SearchLimit)
}

// MarkerQword packs a 4-character marker into the quadword the trampoline
// stores at the VGA buffer: each character followed by its attribute byte.
func MarkerQword(marker string) (uint64, error) {
	if len(marker) != 4 {
		return 0, fmt.Errorf("marker must be 4 bytes, got %q", marker)
	}
	var b [8]byte
	for i := 0; i < 4; i++ {
		c := marker[i]
		if c < 0x20 || c > 0x7e {
			return 0, fmt.Errorf("marker %q has non-printable byte %#x", marker, c)
		}
		b[2*i] = c
		b[2*i+1] = MarkerAttribute
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}
