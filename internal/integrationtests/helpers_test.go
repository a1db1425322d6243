package integrationtests

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/kernforge/internal/app"
	"github.com/vk/kernforge/internal/builder"
	"github.com/vk/kernforge/internal/executor"
	"github.com/vk/kernforge/internal/hcl"
	"github.com/vk/kernforge/internal/testutil"
)

const projectHCL = `
name      = "testos"
build_dir = "out"

trampoline {
  dir   = "boot"
  entry = "kmain"
}

kernel {
  dir   = "kernel"
  crate = "kernel"
}

link {
  section ".boot" {
    address = "1M"
    keep    = true
    inputs  = [".multiboot_header"]
  }
  section ".text" {
    align = "4K"
  }
  section ".rodata" {
    align = 4096
  }
  section ".data" {
    align = "0x1000"
  }
  section ".bss" {
    align = "4K"
  }
}

image {
  name    = "testos"
  timeout = 0
}
`

// defaultFiles is a complete, buildable project.
var defaultFiles = map[string]string{
	"kernforge.hcl":                projectHCL,
	"boot/multiboot_header.asm":    "section .multiboot_header\n",
	"boot/boot.asm":                "global start\nextern long_mode_start\nbits 32\n",
	"boot/long_mode_start.asm":     "global long_mode_start\nextern kmain\nbits 64\n",
	"kernel/Cargo.toml":            "[package]\nname = \"kernel\"\n",
	"kernel/src/lib.rs":            "#![no_std]\n#[no_mangle]\npub extern \"C\" fn kmain() {}\n",
	"kernel/src/vga_buffer.rs":     "pub struct Writer;\n",
	"kernel/src/interrupts/mod.rs": "pub fn init() {}\n",
}

// Project is a scratch project on disk plus the fakes observing its builds.
type Project struct {
	t      *testing.T
	Dir    string
	Runner *testutil.FakeRunner
	Logs   *testutil.SafeBuffer
	Config app.Config
}

// NewProject writes defaultFiles, overridden by files, into a temp dir.
func NewProject(t *testing.T, files map[string]string) *Project {
	t.Helper()
	dir := t.TempDir()
	merged := make(map[string]string, len(defaultFiles)+len(files))
	for k, v := range defaultFiles {
		merged[k] = v
	}
	for k, v := range files {
		merged[k] = v
	}
	testutil.WriteTree(t, dir, merged)

	p := &Project{
		t:      t,
		Dir:    dir,
		Runner: testutil.NewFakeRunner(),
		Logs:   &testutil.SafeBuffer{},
		Config: app.Config{
			ProjectFile: filepath.Join(dir, "kernforge.hcl"),
			LogLevel:    "debug",
			Jobs:        4,
		},
	}
	t.Cleanup(func() {
		if os.Getenv("KERNFORGE_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), p.Logs.String())
		}
	})
	return p
}

// App returns a fresh app over the project, as a new process would see it.
func (p *Project) App() *app.App {
	p.t.Helper()
	cfg, err := app.NewConfig(p.Config)
	require.NoError(p.t, err)
	return app.NewApp(p.Logs, cfg, hcl.NewLoader(cfg.Environ), app.WithRunner(p.Runner))
}

// Build runs one build of target with a fresh app.
func (p *Project) Build(target string) (*executor.Report, error) {
	return p.App().Build(context.Background(), target)
}

// MustBuild is Build that fails the test on error.
func (p *Project) MustBuild(target string) *executor.Report {
	p.t.Helper()
	report, err := p.Build(target)
	require.NoError(p.t, err)
	return report
}

// Plan computes the plan for target.
func (p *Project) Plan(target string) *builder.Plan {
	p.t.Helper()
	plan, err := p.App().Plan(context.Background(), target)
	require.NoError(p.t, err)
	return plan
}

// Path resolves rel inside the project.
func (p *Project) Path(rel string) string {
	return filepath.Join(p.Dir, filepath.FromSlash(rel))
}

// Write replaces a project file.
func (p *Project) Write(rel, body string) {
	p.t.Helper()
	testutil.WriteTree(p.t, p.Dir, map[string]string{rel: body})
}

// Read returns the contents of a project file.
func (p *Project) Read(rel string) []byte {
	p.t.Helper()
	data, err := os.ReadFile(p.Path(rel))
	require.NoError(p.t, err)
	return data
}
