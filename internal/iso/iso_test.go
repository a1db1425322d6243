package iso

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/kernforge/internal/artifact"
	"github.com/vk/kernforge/internal/ctxlog"
	"github.com/vk/kernforge/internal/testutil"
	"github.com/vk/kernforge/internal/toolchain"
)

func TestMenu(t *testing.T) {
	want := `set timeout=0
set default=0

menuentry "os" {
    multiboot2 /boot/kernel.bin
    boot
}
`
	assert.Equal(t, want, Menu("os", 0))
}

func newAction(t *testing.T) *Action {
	t.Helper()
	dir := t.TempDir()
	kernel := filepath.Join(dir, "kernel.bin")
	require.NoError(t, os.WriteFile(kernel, testutil.KernelImage("kmain").Bytes(), 0o644))
	return &Action{
		Kernel:  kernel,
		Name:    "os",
		Scratch: filepath.Join(dir, "iso"),
		Output:  filepath.Join(dir, "os.iso"),
	}
}

func TestAction_Run(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	action := newAction(t)
	runner := testutil.NewFakeRunner()
	env := &artifact.Env{Toolchain: toolchain.Default(), Runner: runner}

	require.NoError(t, action.Run(ctx, env))
	first, err := os.ReadFile(action.Output)
	require.NoError(t, err)

	calls := runner.CallsFor(toolchain.ToolRescue)
	require.Len(t, calls, 1)
	assert.Equal(t, "grub-mkrescue", calls[0].Path)
	assert.Contains(t, calls[0].Env, "SOURCE_DATE_EPOCH=1")

	entries, err := os.ReadDir(action.Scratch)
	require.NoError(t, err)
	assert.Empty(t, entries, "staging tree removed")
	assert.NoFileExists(t, filepath.Join(filepath.Dir(action.Output), ".os.iso.tmp"))

	t.Run("repeatable", func(t *testing.T) {
		require.NoError(t, action.Run(ctx, env))
		second, err := os.ReadFile(action.Output)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestAction_FailureKeepsPreviousImage(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	action := newAction(t)
	require.NoError(t, os.WriteFile(action.Output, []byte("previous"), 0o644))

	runner := testutil.NewFakeRunner()
	runner.FailOn(toolchain.ToolRescue, "", 1, "xorriso not found")
	env := &artifact.Env{Toolchain: toolchain.Default(), Runner: runner}

	err := action.Run(ctx, env)
	var isoErr *Error
	require.ErrorAs(t, err, &isoErr)
	assert.Equal(t, "build", isoErr.Stage)

	data, err := os.ReadFile(action.Output)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))
	assert.NoFileExists(t, filepath.Join(filepath.Dir(action.Output), ".os.iso.tmp"))
}

func TestAction_ToolWritesNothing(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	action := newAction(t)
	runner := testutil.NewFakeRunner()
	runner.Handle(toolchain.ToolRescue, func(context.Context, toolchain.Command) error { return nil })
	env := &artifact.Env{Toolchain: toolchain.Default(), Runner: runner}

	err := action.Run(ctx, env)
	assert.ErrorContains(t, err, "produced no image")
	assert.NoFileExists(t, action.Output)
}

func TestAction_MissingKernel(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	action := newAction(t)
	require.NoError(t, os.Remove(action.Kernel))
	env := &artifact.Env{Toolchain: toolchain.Default(), Runner: testutil.NewFakeRunner()}

	err := action.Run(ctx, env)
	var isoErr *Error
	require.ErrorAs(t, err, &isoErr)
	assert.Equal(t, "staging", isoErr.Stage)
}
