package hcl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/kernforge/internal/config"
	"github.com/vk/kernforge/internal/ctxlog"
)

const fullProject = `
name      = "myos"
build_dir = env.OUT

target {
  arch       = "x86_64"
  code_model = "kernel"
}

trampoline {
  dir    = "boot"
  entry  = "rust_main"
  marker = "RET!"
}

kernel {
  dir    = "kernel"
  crate  = "myos"
  lint   = false
}

link {
  entry = "start"

  section ".boot" {
    address = "1M"
    inputs  = [".multiboot_header"]
    keep    = true
  }

  section ".text" {
    align = 4096
  }
}

image {
  timeout = 3
}

emulator {
  memory   = "256M"
  gdb_port = 4321
  args     = ["-serial", "stdio"]
}
`

func writeProject(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kernforge.hcl")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_FullProject(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	path := writeProject(t, fullProject)

	m, err := NewLoader([]string{"OUT=out", "IGNORED"}).Load(ctx, path)
	require.NoError(t, err)

	assert.Equal(t, "myos", m.Name)
	assert.Equal(t, "out", m.BuildDir)
	assert.Equal(t, filepath.Dir(path), m.Root)
	assert.Equal(t, path, m.File)
	assert.Equal(t, "boot", m.Trampoline.Dir)
	assert.Equal(t, "rust_main", m.Trampoline.Entry)
	assert.Equal(t, "myos", m.Kernel.Crate)
	assert.False(t, m.Kernel.Lint)
	assert.True(t, m.Kernel.Format, "unset attributes keep their default")
	assert.Equal(t, 3, m.Image.Timeout)
	assert.Equal(t, "os.iso", m.Image.Output)
	assert.Equal(t, "256M", m.Emulator.Memory)
	assert.Equal(t, 4321, m.Emulator.GDBPort)
	assert.Equal(t, []string{"-serial", "stdio"}, m.Emulator.Args)

	want := []config.Section{
		{Name: ".boot", Address: 0x100000, Inputs: []string{".multiboot_header"}, Keep: true},
		{Name: ".text", Align: 4096, Inputs: []string{".text", ".text.*"}},
	}
	assert.Empty(t, cmp.Diff(want, m.Link.Sections))
	require.NoError(t, m.Validate())
}

func TestLoad_Defaults(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	m, err := NewLoader(nil).Load(ctx, writeProject(t, ""))
	require.NoError(t, err)

	def := config.Default()
	assert.Equal(t, def.Target, m.Target)
	assert.Equal(t, def.Link.Sections, m.Link.Sections)
	assert.Equal(t, def.BuildDir, m.BuildDir)
}

func TestLoad_Errors(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())

	testCases := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "syntax", body: `name = `, wantErr: "invalid configuration"},
		{name: "unknown attribute", body: `colour = "red"`, wantErr: "Unsupported argument"},
		{name: "unknown arch", body: "target {\n arch = \"pdp11\"\n}", wantErr: `unknown architecture "pdp11"`},
		{name: "bad address", body: "link {\n section \".boot\" {\n address = \"lots\"\n }\n}", wantErr: `section ".boot": address: invalid size "lots"`},
		{name: "missing env var", body: `build_dir = env.NOPE`, wantErr: "Unsupported attribute"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewLoader(nil).Load(ctx, writeProject(t, tc.body))
			require.Error(t, err)
			assert.True(t, config.IsError(err), "got %T", err)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := NewLoader(nil).Load(ctx, filepath.Join(t.TempDir(), "nope.hcl"))
		assert.True(t, config.IsError(err))
		assert.ErrorContains(t, err, "project file not found")
	})
}

func TestParseSize(t *testing.T) {
	for in, want := range map[string]uint64{
		"1M":       1 << 20,
		"4K":       4096,
		"0x100000": 0x100000,
		"4096":     4096,
	} {
		got, err := ParseSize(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseSize("1G")
	assert.Error(t, err)

	got, err := ParseSize("17592186044415M")
	require.NoError(t, err)
	assert.Equal(t, uint64(17592186044415)<<20, got)

	_, err = ParseSize("17592186044416M")
	assert.ErrorContains(t, err, "overflows")
}

func TestLoad_ImageOutputFollowsName(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())

	testCases := []struct {
		name string
		body string
		want string
	}{
		{name: "default", body: "", want: "os.iso"},
		{name: "named", body: "image {\n name = \"testos\"\n}", want: "testos.iso"},
		{name: "explicit output wins", body: "image {\n name = \"testos\"\n output = \"boot.iso\"\n}", want: "boot.iso"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := NewLoader(nil).Load(ctx, writeProject(t, tc.body))
			require.NoError(t, err)
			assert.Equal(t, tc.want, m.Image.Output)
		})
	}
}

func TestLoad_SectionAddressFromEnv(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	body := "link {\n section \".boot\" {\n address = env.LOAD_ADDR\n }\n}"

	m, err := NewLoader([]string{"LOAD_ADDR=2M"}).Load(ctx, writeProject(t, body))
	require.NoError(t, err)

	require.Len(t, m.Link.Sections, 1)
	assert.Equal(t, uint64(2<<20), m.Link.Sections[0].Address)
}
