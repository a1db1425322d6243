package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/vk/kernforge/internal/boot"
	"github.com/vk/kernforge/internal/config"
	"github.com/vk/kernforge/internal/ctxlog"
	"github.com/vk/kernforge/internal/fsutil"
	"github.com/vk/kernforge/internal/toolchain"
)

// ProjectFile is the default project file name.
const ProjectFile = "kernforge.hcl"

const projectTemplate = `name      = %q
build_dir = %q

target {
  arch = %q
}

trampoline {
  dir    = %q
  entry  = %q
  marker = %q
}

kernel {
  dir   = "."
  crate = %q
}

image {
  name = %q
}

emulator {
  memory = "128M"
}
`

// Init scaffolds a project in dir: a project file, a toolchain file and the
// boot trampoline sources. Existing files are never overwritten. It returns
// the paths written, relative to dir.
func (a *App) Init(ctx context.Context, dir string) ([]string, error) {
	ctx = a.Context(ctx)
	logger := ctxlog.FromContext(ctx)

	d := config.Default()
	tramp := filepath.Join(dir, filepath.FromSlash(d.Trampoline.Dir))
	rendered, err := boot.Render(tramp, boot.Params{Entry: config.DefaultEntry, Marker: config.DefaultMarker})
	if err != nil {
		return nil, fmt.Errorf("render trampoline: %w", err)
	}
	var written []string
	for _, name := range rendered {
		written = append(written, filepath.Join(filepath.FromSlash(d.Trampoline.Dir), name))
	}

	project := fmt.Sprintf(projectTemplate,
		d.Kernel.Crate, config.DefaultBuildDir, config.DefaultArch,
		d.Trampoline.Dir, config.DefaultEntry, config.DefaultMarker,
		d.Kernel.Crate, config.DefaultImageName)
	ok, err := writeNew(filepath.Join(dir, ProjectFile), []byte(project))
	if err != nil {
		return nil, err
	}
	if ok {
		written = append(written, ProjectFile)
	}

	tc, err := toolchain.Default().Marshal()
	if err != nil {
		return nil, err
	}
	ok, err = writeNew(filepath.Join(dir, ToolchainFile), tc)
	if err != nil {
		return nil, err
	}
	if ok {
		written = append(written, ToolchainFile)
	}

	sort.Strings(written)
	logger.Info("✅ Project initialized.", "dir", dir, "written", len(written))
	return written, nil
}

// writeNew writes path unless it already exists.
func writeNew(path string, data []byte) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return false, err
	}
	return true, nil
}
