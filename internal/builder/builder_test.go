package builder

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/kernforge/internal/artifact"
	"github.com/vk/kernforge/internal/cache"
	"github.com/vk/kernforge/internal/config"
	"github.com/vk/kernforge/internal/ctxlog"
	"github.com/vk/kernforge/internal/testutil"
	"github.com/vk/kernforge/internal/toolchain"
)

func build(t *testing.T, m *config.Model) *Project {
	t.Helper()
	p, err := Build(ctxlog.Discard(context.Background()), m, toolchain.Default())
	require.NoError(t, err)
	return p
}

func TestBuild_Graph(t *testing.T) {
	m := testutil.NewProject(t)
	p := build(t, m)

	var ids []string
	for _, n := range p.Graph.Nodes() {
		ids = append(ids, n.ID())
	}
	assert.Equal(t, []string{
		"binary.kernel",
		"image.os",
		"library.kernel",
		"object.boot",
		"object.long_mode_start",
		"object.multiboot_header",
	}, ids)

	deps, err := p.Graph.Dependencies("binary.kernel")
	require.NoError(t, err)
	assert.Equal(t, []string{"library.kernel", "object.boot", "object.long_mode_start", "object.multiboot_header"}, deps)

	bin, _ := p.Graph.Node("binary.kernel")
	assert.Equal(t, artifact.LinkedBinary, bin.Kind)
	assert.Equal(t, []string{m.BuildPath("kernel.bin")}, bin.Outputs)

	img, _ := p.Graph.Node("image.os")
	assert.True(t, img.AlwaysRun)
	assert.Nil(t, img.Target)

	lib, _ := p.Graph.Node("library.kernel")
	assert.Len(t, lib.Sources, 3, "Cargo.toml and two .rs files")
}

func TestBuild_ObjectsFollowLinkOrder(t *testing.T) {
	p := build(t, testutil.NewProject(t))
	bin, _ := p.Graph.Node("binary.kernel")
	require.Len(t, bin.Deps, 4)
	assert.Equal(t, "object.multiboot_header", bin.Deps[0].String())
	assert.Equal(t, "object.boot", bin.Deps[1].String())
}

func TestBuild_ConfigurationErrors(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())

	testCases := []struct {
		name    string
		mutate  func(m *config.Model)
		wantErr string
	}{
		{
			name:    "missing trampoline dir",
			mutate:  func(m *config.Model) { m.Trampoline.Dir = "nope" },
			wantErr: "trampoline: directory",
		},
		{
			name:    "listed source missing",
			mutate:  func(m *config.Model) { m.Trampoline.Sources = []string{"boot.asm", "gone.asm"} },
			wantErr: "gone.asm does not exist",
		},
		{
			name:    "layout invalid",
			mutate:  func(m *config.Model) { m.Link.Sections[0].Address = 0 },
			wantErr: "link: first section .boot must be loaded at 0x100000",
		},
		{
			name:    "image output collides with kernel",
			mutate:  func(m *config.Model) { m.Image.Output = "kernel.bin" },
			wantErr: "declared by both binary.kernel and image.os",
		},
		{
			name:    "model invalid",
			mutate:  func(m *config.Model) { m.Target.CodeModel = "huge" },
			wantErr: "unknown code model",
		},
		{
			name:    "kernel dir empty of sources",
			mutate:  func(m *config.Model) { m.Kernel.Dir = "src/arch" },
			wantErr: "kernel: no sources",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := testutil.NewProject(t)
			tc.mutate(m)
			_, err := Build(ctx, m, toolchain.Default())
			require.Error(t, err)
			assert.True(t, config.IsError(err), "got %T: %v", err, err)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestResolve(t *testing.T) {
	p := build(t, testutil.NewProject(t))
	for target, want := range map[string]string{
		"":               "image.os",
		"iso":            "image.os",
		"run":            "image.os",
		"debug":          "image.os",
		"kernel":         "library.kernel",
		"link":           "binary.kernel",
		"object.boot":    "object.boot",
		"library.kernel": "library.kernel",
	} {
		got, err := p.Resolve(target)
		require.NoError(t, err, target)
		assert.Equal(t, want, got, target)
	}
	_, err := p.Resolve("floppy")
	assert.True(t, config.IsError(err))
}

// stampAll records every node in the plan as built, producing its outputs.
func stampAll(t *testing.T, p *Project, plan *Plan) {
	t.Helper()
	for _, id := range plan.Order {
		e := plan.Entries[id]
		for _, out := range e.Node.Outputs {
			require.NoError(t, os.MkdirAll(filepath.Dir(out), 0o755))
			require.NoError(t, os.WriteFile(out, []byte(id), 0o644))
		}
		st, err := cache.Record(id, e.Key, "", e.Node.Outputs)
		require.NoError(t, err)
		require.NoError(t, p.Stamps.Save(st))
	}
}

func TestPlan_Staleness(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	m := testutil.NewProject(t)
	p := build(t, m)

	plan, err := p.Plan(ctx, "binary.kernel")
	require.NoError(t, err)
	assert.Len(t, plan.Order, 5)
	assert.Equal(t, "binary.kernel", plan.Order[4])
	assert.Len(t, plan.Stale(), 5)
	assert.Equal(t, cache.ReasonMissingStamp, plan.Entries["object.boot"].Reason)
	assert.Equal(t, cache.ReasonDependencyStale, plan.Entries["binary.kernel"].Reason)

	stampAll(t, p, plan)

	t.Run("nothing changed", func(t *testing.T) {
		plan, err := p.Plan(ctx, "binary.kernel")
		require.NoError(t, err)
		assert.Empty(t, plan.Stale())
	})

	t.Run("touch without content change", func(t *testing.T) {
		src := filepath.Join(m.Root, "src/lib.rs")
		data, err := os.ReadFile(src)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(src, data, 0o644))

		plan, err := p.Plan(ctx, "binary.kernel")
		require.NoError(t, err)
		assert.Empty(t, plan.Stale())
	})

	t.Run("one source edit rebuilds its dependents only", func(t *testing.T) {
		testutil.WriteTree(t, m.Root, map[string]string{"src/arch/x86_64/boot.asm": "global start\nbits 32\nnop\n"})

		plan, err := p.Plan(ctx, "binary.kernel")
		require.NoError(t, err)
		assert.Equal(t, []string{"object.boot", "binary.kernel"}, plan.Stale())
		assert.Equal(t, cache.ReasonKeyChanged, plan.Entries["object.boot"].Reason)
	})

	t.Run("image is always rebuilt", func(t *testing.T) {
		plan, err := p.Plan(ctx, "image.os")
		require.NoError(t, err)
		assert.Equal(t, cache.ReasonAlwaysRun, plan.Entries["image.os"].Reason)
	})

	t.Run("deleted output", func(t *testing.T) {
		require.NoError(t, os.Remove(m.BuildPath("kernel", "libkernel.a")))
		plan, err := p.Plan(ctx, "library.kernel")
		require.NoError(t, err)
		assert.Equal(t, []string{"library.kernel"}, plan.Order)
		assert.Equal(t, cache.ReasonOutputMissing, plan.Entries["library.kernel"].Reason)
	})
}

func TestPlan_TargetChangeInvalidatesEverything(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	m := testutil.NewProject(t)
	p := build(t, m)
	plan, err := p.Plan(ctx, "binary.kernel")
	require.NoError(t, err)
	stampAll(t, p, plan)

	m.Target.CodeModel = "large"
	p = build(t, m)
	plan, err = p.Plan(ctx, "binary.kernel")
	require.NoError(t, err)
	assert.Len(t, plan.Stale(), 5)
	assert.Equal(t, cache.ReasonKeyChanged, plan.Entries["library.kernel"].Reason)
}

func TestPlan_MissingSourceIsConfigurationError(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	m := testutil.NewProject(t)
	p := build(t, m)
	require.NoError(t, os.Remove(filepath.Join(m.Root, "src/lib.rs")))

	_, err := p.Plan(ctx, "library.kernel")
	assert.True(t, config.IsError(err))
	assert.ErrorContains(t, err, "missing source")
}

func TestPlan_ToolchainChangeInvalidatesItsNodes(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())

	testCases := []struct {
		name      string
		change    func(tc *toolchain.Environment)
		wantStale []string
		keyChange []string
	}{
		{
			name: "kernel tool args",
			change: func(tc *toolchain.Environment) {
				tool := tc.Tools[toolchain.ToolKernel]
				tool.Args = []string{"+nightly", "-Zbuild-std=core"}
				tc.Tools[toolchain.ToolKernel] = tool
			},
			wantStale: []string{"library.kernel", "binary.kernel"},
			keyChange: []string{"library.kernel"},
		},
		{
			name:      "linker binary",
			change:    func(tc *toolchain.Environment) { tc.Override(toolchain.ToolLinker, "ld.lld") },
			wantStale: []string{"binary.kernel"},
			keyChange: []string{"binary.kernel"},
		},
		{
			name:      "assembler binary",
			change:    func(tc *toolchain.Environment) { tc.Override(toolchain.ToolAssembler, "yasm") },
			wantStale: []string{"object.boot", "object.long_mode_start", "object.multiboot_header", "binary.kernel"},
			keyChange: []string{"object.boot", "object.long_mode_start", "object.multiboot_header"},
		},
		{
			name:   "command environment",
			change: func(tc *toolchain.Environment) { tc.Env["RUSTFLAGS"] = "-Cforce-frame-pointers=yes" },
			wantStale: []string{
				"object.boot", "object.long_mode_start", "object.multiboot_header",
				"library.kernel", "binary.kernel",
			},
			keyChange: []string{
				"object.boot", "object.long_mode_start", "object.multiboot_header",
				"library.kernel",
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// --- Arrange ---
			m := testutil.NewProject(t)
			p := build(t, m)
			plan, err := p.Plan(ctx, "binary.kernel")
			require.NoError(t, err)
			stampAll(t, p, plan)

			env := toolchain.Default()
			tc.change(env)

			// --- Act ---
			p, err = Build(ctx, m, env)
			require.NoError(t, err)
			plan, err = p.Plan(ctx, "binary.kernel")
			require.NoError(t, err)

			// --- Assert ---
			assert.ElementsMatch(t, tc.wantStale, plan.Stale())
			for _, id := range tc.keyChange {
				assert.Equal(t, cache.ReasonKeyChanged, plan.Entries[id].Reason, id)
			}
		})
	}
}
