package integrationtests

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/kernforge/internal/cache"
	"github.com/vk/kernforge/internal/toolchain"
)

func TestBuild_FromScratch(t *testing.T) {
	// --- Arrange ---
	p := NewProject(t, nil)

	// --- Act ---
	report := p.MustBuild("iso")

	// --- Assert ---
	assert.Equal(t, []string{
		"object.boot",
		"object.long_mode_start",
		"object.multiboot_header",
		"library.kernel",
		"binary.kernel",
		"image.testos",
	}, sortedLike(report.Built, "object.", "library.", "binary.", "image."))
	assert.FileExists(t, p.Path("out/testos.iso"))
	assert.NoFileExists(t, p.Path("out/os.iso"))
	assert.FileExists(t, p.Path("out/kernel.bin"))
	assert.FileExists(t, p.Path("out/linker.ld"))
	assert.Len(t, p.Runner.CallsFor(toolchain.ToolAssembler), 3)

	script := string(p.Read("out/linker.ld"))
	assert.Contains(t, script, "KEEP(*(.multiboot_header))")
	assert.Contains(t, script, ". = 0x100000;")
}

func TestBuild_NoChangeRebuildsOnlyTheImage(t *testing.T) {
	// --- Arrange ---
	p := NewProject(t, nil)
	p.MustBuild("iso")
	p.Runner.Reset()

	// A touch without a content change.
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(p.Path("kernel/src/lib.rs"), later, later))
	require.NoError(t, os.Chtimes(p.Path("boot/boot.asm"), later, later))

	// --- Act ---
	report := p.MustBuild("iso")

	// --- Assert ---
	assert.Equal(t, []string{"image.testos"}, report.Built)
	assert.Len(t, report.Fresh, 5)
	assert.Empty(t, p.Runner.CallsFor(toolchain.ToolAssembler))
	assert.Empty(t, p.Runner.CallsFor(toolchain.ToolKernel))
	assert.Empty(t, p.Runner.CallsFor(toolchain.ToolLinker))
}

func TestBuild_KernelEditRebuildsItsDependentsOnly(t *testing.T) {
	// --- Arrange ---
	p := NewProject(t, nil)
	p.MustBuild("iso")
	before := p.Read("out/kernel.bin")
	p.Runner.Reset()

	p.Write("kernel/src/vga_buffer.rs", "pub struct Writer { column: usize }\n")

	// --- Act ---
	plan := p.Plan("iso")
	report := p.MustBuild("iso")

	// --- Assert ---
	assert.Equal(t, []string{"library.kernel", "binary.kernel", "image.testos"}, plan.Stale())
	assert.Equal(t, cache.ReasonKeyChanged, plan.Entries["library.kernel"].Reason)
	assert.Equal(t, cache.ReasonDependencyStale, plan.Entries["binary.kernel"].Reason)

	assert.Equal(t, []string{"library.kernel", "binary.kernel", "image.testos"}, report.Built)
	assert.Empty(t, p.Runner.CallsFor(toolchain.ToolAssembler), "trampoline objects stay fresh")
	// The fake linker output does not depend on its inputs.
	assert.Equal(t, before, p.Read("out/kernel.bin"))
}

func TestBuild_ToolchainPinChangeMakesNodesStale(t *testing.T) {
	// --- Arrange ---
	p := NewProject(t, nil)
	p.MustBuild("link")
	require.Empty(t, p.Plan("link").Stale())

	p.Write("toolchain.toml", "[tools.linker]\nbinary = \"ld.lld\"\n\n[env]\nRUSTFLAGS = \"-Cforce-frame-pointers=yes\"\n")

	// --- Act ---
	plan := p.Plan("link")

	// --- Assert ---
	assert.Len(t, plan.Stale(), 5)
	assert.Equal(t, cache.ReasonKeyChanged, plan.Entries["library.kernel"].Reason)
	assert.Equal(t, cache.ReasonKeyChanged, plan.Entries["object.boot"].Reason)
}

func TestBuild_TrampolineEditRebuildsOneObject(t *testing.T) {
	// --- Arrange ---
	p := NewProject(t, nil)
	p.MustBuild("link")
	p.Runner.Reset()

	p.Write("boot/long_mode_start.asm", "global long_mode_start\nextern kmain\nbits 64\ncall kmain\n")

	// --- Act ---
	report := p.MustBuild("link")

	// --- Assert ---
	assert.Equal(t, []string{"object.long_mode_start", "binary.kernel"}, report.Built)
	calls := p.Runner.CallsFor(toolchain.ToolAssembler)
	require.Len(t, calls, 1)
	assert.Equal(t, p.Path("boot/long_mode_start.asm"), calls[0].Args[len(calls[0].Args)-1])
	assert.Empty(t, p.Runner.CallsFor(toolchain.ToolKernel))
}

func TestBuild_TamperedOutputIsRebuilt(t *testing.T) {
	// --- Arrange ---
	p := NewProject(t, nil)
	p.MustBuild("link")
	p.Write("out/boot/boot.o", "garbage")

	// --- Act ---
	plan := p.Plan("link")
	report := p.MustBuild("link")

	// --- Assert ---
	assert.Equal(t, cache.ReasonOutputModified, plan.Entries["object.boot"].Reason)
	assert.Equal(t, []string{"object.boot", "binary.kernel"}, report.Built)
}

func TestBuild_ArchitectureChangeRebuildsEverything(t *testing.T) {
	// --- Arrange ---
	p := NewProject(t, nil)
	p.MustBuild("link")
	p.Config.Environ = []string{"CODE_MODEL=large"}

	// --- Act ---
	report := p.MustBuild("link")

	// --- Assert ---
	assert.Len(t, report.Built, 5)
	assert.Empty(t, report.Fresh)
}

func TestBuild_ImageIsIdempotent(t *testing.T) {
	// --- Arrange ---
	p := NewProject(t, nil)
	p.MustBuild("iso")
	first := p.Read("out/testos.iso")

	// --- Act ---
	p.MustBuild("iso")

	// --- Assert ---
	assert.Equal(t, first, p.Read("out/testos.iso"))
}

func TestClean_ThenRebuild(t *testing.T) {
	// --- Arrange ---
	p := NewProject(t, nil)
	p.MustBuild("iso")

	// --- Act ---
	require.NoError(t, p.App().Clean(t.Context()))

	// --- Assert ---
	assert.NoDirExists(t, p.Path("out"))
	assert.FileExists(t, p.Path("kernel/src/lib.rs"))
	report := p.MustBuild("iso")
	assert.Len(t, report.Built, 6)
}

// sortedLike orders ids by the index of their prefix in prefixes, keeping
// plan order within one prefix.
func sortedLike(ids []string, prefixes ...string) []string {
	var out []string
	for _, prefix := range prefixes {
		for _, id := range ids {
			if len(id) >= len(prefix) && id[:len(prefix)] == prefix {
				out = append(out, id)
			}
		}
	}
	return out
}
