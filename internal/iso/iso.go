// Package iso packages a verified kernel image into a bootable GRUB rescue
// disc image. The image is staged, built to a temporary file and published
// with a rename, so a failed run never leaves a partial image behind.
package iso

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/kernforge/internal/artifact"
	"github.com/vk/kernforge/internal/ctxlog"
	"github.com/vk/kernforge/internal/fsutil"
	"github.com/vk/kernforge/internal/toolchain"
)

// Paths of the kernel and the boot menu inside the image.
const (
	KernelPath = "boot/kernel.bin"
	GrubConfig = "boot/grub/grub.cfg"
)

// Error reports a packaging failure. No image is left at the output path
// unless a previous valid image was already there.
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("image packaging failed during %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Menu renders grub.cfg for a single multiboot2 entry.
func Menu(name string, timeout int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "set timeout=%d\n", timeout)
	b.WriteString("set default=0\n\n")
	fmt.Fprintf(&b, "menuentry %q {\n", name)
	fmt.Fprintf(&b, "    multiboot2 /%s\n", KernelPath)
	b.WriteString("    boot\n}\n")
	return b.String()
}

// Action builds the disc image.
type Action struct {
	Kernel  string
	Name    string
	Timeout int
	// Scratch is the directory staging trees and temporary images live in.
	Scratch string
	Output  string
}

// Run implements artifact.Action.
func (a *Action) Run(ctx context.Context, env *artifact.Env) error {
	logger := ctxlog.FromContext(ctx)

	if err := os.MkdirAll(a.Scratch, 0o755); err != nil {
		return &Error{Stage: "staging", Err: err}
	}
	staging, err := os.MkdirTemp(a.Scratch, ".staging-*")
	if err != nil {
		return &Error{Stage: "staging", Err: err}
	}
	defer os.RemoveAll(staging)

	if err := fsutil.CopyFile(a.Kernel, filepath.Join(staging, KernelPath)); err != nil {
		return &Error{Stage: "staging", Err: err}
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(staging, GrubConfig), []byte(Menu(a.Name, a.Timeout)), 0o644); err != nil {
		return &Error{Stage: "staging", Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(a.Output), 0o755); err != nil {
		return &Error{Stage: "publish", Err: err}
	}
	tmp := filepath.Join(filepath.Dir(a.Output), "."+filepath.Base(a.Output)+".tmp")
	os.Remove(tmp)
	defer os.Remove(tmp)

	cmd, err := env.Toolchain.Command(toolchain.ToolRescue, "-o", tmp, staging)
	if err != nil {
		return err
	}
	logger.Debug("Building disc image.", "staging", staging, "command", cmd.String())
	if err := env.Runner.Run(ctx, cmd); err != nil {
		return &Error{Stage: "build", Err: err}
	}

	if info, err := os.Stat(tmp); err != nil || info.Size() == 0 {
		return &Error{Stage: "build", Err: fmt.Errorf("%s produced no image", cmd.Path)}
	}
	if err := os.Rename(tmp, a.Output); err != nil {
		return &Error{Stage: "publish", Err: err}
	}
	logger.Debug("Published disc image.", "path", a.Output)
	return nil
}
