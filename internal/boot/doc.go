// Package boot owns the handoff between the bootloader and the kernel: the
// contract both sides agree on, the multiboot2 header that lets GRUB find
// the kernel, the NASM trampoline sources, and the action that assembles
// them into objects.
package boot
