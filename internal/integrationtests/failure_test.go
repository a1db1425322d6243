package integrationtests

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/kernforge/internal/cache"
	"github.com/vk/kernforge/internal/config"
	"github.com/vk/kernforge/internal/executor"
	"github.com/vk/kernforge/internal/toolchain"
)

func TestFailure_AssemblerErrorSkipsDependents(t *testing.T) {
	// --- Arrange ---
	p := NewProject(t, nil)
	p.Config.KeepGoing = true
	p.Runner.FailOn(toolchain.ToolAssembler, "boot.asm", 1, "boot.asm:2: error: symbol `long_mode_start' undefined")

	// --- Act ---
	report, err := p.Build("iso")

	// --- Assert ---
	require.Error(t, err)
	var runErr *executor.RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, []string{"object.boot"}, runErr.Failed)

	var exitErr *toolchain.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, toolchain.ToolAssembler, exitErr.Tool)
	assert.Equal(t, 1, exitErr.Status)
	assert.Contains(t, exitErr.Stderr, "undefined")

	assert.Equal(t, []string{"binary.kernel", "image.testos"}, report.Skipped)
	assert.Contains(t, report.Built, "library.kernel", "keep-going builds independent nodes")
	assert.NoFileExists(t, p.Path("out/boot/boot.o"))
	assert.NoFileExists(t, p.Path("out/kernel.bin"))
	assert.NoFileExists(t, p.Path("out/testos.iso"))
}

func TestFailure_RecoveryRebuildsOnlyWhatFailed(t *testing.T) {
	// --- Arrange ---
	p := NewProject(t, nil)
	p.Config.KeepGoing = true
	p.Runner.FailOn(toolchain.ToolKernel, "build", 101, "error[E0425]: cannot find value `x`")
	_, err := p.Build("link")
	require.Error(t, err)

	p.Runner.ClearFailures()
	p.Runner.Reset()

	// --- Act ---
	report := p.MustBuild("link")

	// --- Assert ---
	assert.Equal(t, []string{"library.kernel", "binary.kernel"}, report.Built)
	assert.Len(t, report.Fresh, 3)
	assert.Empty(t, p.Runner.CallsFor(toolchain.ToolAssembler))
}

func TestFailure_LinkLeavesNoPartialBinary(t *testing.T) {
	// --- Arrange ---
	p := NewProject(t, nil)
	p.MustBuild("link")
	p.Write("kernel/src/lib.rs", "#![no_std]\n// changed\n")
	p.Runner.Handle(toolchain.ToolLinker, func(_ context.Context, cmd toolchain.Command) error {
		out := cmd.Args[len(cmd.Args)-1]
		for i, a := range cmd.Args {
			if a == "-o" {
				out = cmd.Args[i+1]
			}
		}
		if err := os.WriteFile(out, []byte("\x7fELF truncated"), 0o644); err != nil {
			return err
		}
		return &toolchain.ExitError{Tool: cmd.Name, Command: cmd.String(), Status: 1, Stderr: "killed"}
	})

	// --- Act ---
	_, err := p.Build("iso")

	// --- Assert ---
	require.Error(t, err)
	assert.NoFileExists(t, p.Path("out/kernel.bin"))
	st, loadErr := cache.NewStore(p.Path("out/.kernforge/stamps")).Load("binary.kernel")
	require.NoError(t, loadErr)
	assert.Nil(t, st, "a failed node has no stamp")
	assert.Equal(t, cache.ReasonMissingStamp, p.Plan("link").Entries["binary.kernel"].Reason)
}

func TestFailure_PackagingKeepsPreviousImage(t *testing.T) {
	// --- Arrange ---
	p := NewProject(t, nil)
	p.MustBuild("iso")
	previous := p.Read("out/testos.iso")
	p.Runner.FailOn(toolchain.ToolRescue, "", 1, "xorriso : FAILURE : Cannot write")

	// --- Act ---
	_, err := p.Build("iso")

	// --- Assert ---
	require.Error(t, err)
	var runErr *executor.RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, []string{"image.testos"}, runErr.Failed)
	assert.Equal(t, previous, p.Read("out/testos.iso"), "a failed packaging run leaves the published image alone")
	staging, globErr := filepath.Glob(p.Path("out/iso/.staging-*"))
	require.NoError(t, globErr)
	assert.Empty(t, staging)
}

func TestFailure_MismatchedObjectIsFatalConfiguration(t *testing.T) {
	// --- Arrange ---
	// A toolchain pin forcing 32-bit objects into a 64-bit link.
	p := NewProject(t, map[string]string{
		"toolchain.toml": "[tools.assembler]\nbinary = \"nasm\"\nargs = [\"-f\", \"elf32\"]\n",
	})

	// --- Act ---
	_, err := p.Build("link")

	// --- Assert ---
	require.Error(t, err)
	assert.True(t, config.IsError(err), "got %v", err)
	assert.ErrorContains(t, err, "ELFCLASS32")
	assert.Empty(t, p.Runner.CallsFor(toolchain.ToolLinker), "the linker never runs")
	assert.NoFileExists(t, p.Path("out/kernel.bin"))
}

func TestFailure_ConfigurationErrorsRunNothing(t *testing.T) {
	testCases := []struct {
		name  string
		files map[string]string
		want  string
	}{
		{
			name:  "syntax error",
			files: map[string]string{"kernforge.hcl": "trampoline {\n"},
			want:  "kernforge.hcl",
		},
		{
			name: "boot section not at 1M",
			files: map[string]string{"kernforge.hcl": `
link {
  section ".boot" {
    address = "2M"
    keep    = true
  }
}
`},
			want: "must be loaded at 0x100000",
		},
		{
			name:  "unknown block",
			files: map[string]string{"kernforge.hcl": "floppy {}\n"},
			want:  "floppy",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewProject(t, tc.files)
			_, err := p.Build("iso")
			require.Error(t, err)
			assert.True(t, config.IsError(err), "got %T: %v", err, err)
			assert.ErrorContains(t, err, tc.want)
			assert.Empty(t, p.Runner.Calls())
		})
	}
}
