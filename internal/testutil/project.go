package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/kernforge/internal/config"
)

// ProjectFiles is the source tree NewProject writes, relative to its root.
var ProjectFiles = map[string]string{
	"src/arch/x86_64/multiboot_header.asm": "section .multiboot_header\n",
	"src/arch/x86_64/boot.asm":             "global start\nbits 32\n",
	"src/arch/x86_64/long_mode_start.asm":  "global long_mode_start\nbits 64\n",
	"Cargo.toml":                           "[package]\nname = \"kernel\"\n",
	"src/lib.rs":                           "#![no_std]\n",
	"src/vga_buffer.rs":                    "pub fn print() {}\n",
}

// WriteTree writes files below root.
func WriteTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
}

// NewProject writes ProjectFiles into a temporary directory and returns the
// default model rooted there.
func NewProject(t *testing.T) *config.Model {
	t.Helper()
	root := t.TempDir()
	WriteTree(t, root, ProjectFiles)
	m := config.Default()
	m.Root = root
	return m
}
