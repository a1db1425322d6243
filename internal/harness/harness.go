// Package harness launches a disc image under the emulator, either running
// freely or halted at reset with a GDB stub listening.
package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vk/kernforge/internal/config"
	"github.com/vk/kernforge/internal/ctxlog"
	"github.com/vk/kernforge/internal/qmp"
	"github.com/vk/kernforge/internal/toolchain"
)

// Mode selects how the image is launched.
type Mode int

const (
	Run Mode = iota
	Debug
)

func (m Mode) String() string {
	if m == Debug {
		return "debug"
	}
	return "run"
}

// Harness launches one image. It is single-shot: each Launch starts a fresh
// emulator process and returns when that process exits.
type Harness struct {
	Image     string
	Emulator  config.Emulator
	Toolchain *toolchain.Environment
	Runner    toolchain.Runner
	Stdout    io.Writer
	Stderr    io.Writer
	// WaitStatus makes a debug launch confirm over QMP that the machine is
	// halted before reporting the debugger port.
	WaitStatus bool
	// PollInterval spaces QMP connection attempts.
	PollInterval time.Duration
}

// Args returns the emulator arguments for mode. The two modes differ only
// by the debug suffix.
func (h *Harness) Args(mode Mode) []string {
	mem := h.Emulator.Memory
	if mem == "" {
		mem = "128M"
	}
	args := []string{"-cdrom", h.Image, "-m", mem, "-no-reboot"}
	if h.Emulator.QMPSocket != "" {
		args = append(args, "-qmp", "unix:"+h.Emulator.QMPSocket+",server,nowait")
	}
	args = append(args, h.Emulator.Args...)
	if mode == Debug {
		args = append(args, "-S", "-gdb", "tcp::"+strconv.Itoa(h.port()))
	}
	return args
}

func (h *Harness) port() int {
	if h.Emulator.GDBPort == 0 {
		return config.DefaultGDBPort
	}
	return h.Emulator.GDBPort
}

// Launch starts the emulator and waits for it to exit.
func (h *Harness) Launch(ctx context.Context, mode Mode) error {
	ctx, logger := ctxlog.With(ctx, "mode", mode.String())

	if _, err := os.Stat(h.Image); err != nil {
		return fmt.Errorf("disc image: %w", err)
	}
	cmd, err := h.Toolchain.Command(toolchain.ToolEmulator, h.Args(mode)...)
	if err != nil {
		return err
	}
	if h.Emulator.Binary != "" {
		cmd.Path = h.Emulator.Binary
	}
	cmd.Stdout = h.Stdout
	cmd.Stderr = h.Stderr

	if mode == Debug {
		logger.Info("🐞 Machine halted at reset, attach a debugger.", "gdb", "target remote :"+strconv.Itoa(h.port()))
	} else {
		logger.Info("▶️ Launching emulator.", "image", h.Image)
	}

	if mode != Debug || !h.WaitStatus {
		return h.Runner.Run(ctx, cmd)
	}
	if h.Emulator.QMPSocket == "" {
		return config.Errorf("emulator: --wait-status needs qmp_socket")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return h.Runner.Run(gctx, cmd)
	})
	g.Go(func() error {
		st, err := h.waitHalted(gctx)
		if err != nil {
			return err
		}
		logger.Info("✅ Machine confirmed halted.", "status", st.Status)
		return nil
	})
	return g.Wait()
}

// waitHalted polls the QMP socket until the emulator answers, then checks
// that the guest has not started. A guest that is already running is shut
// down.
func (h *Harness) waitHalted(ctx context.Context) (qmp.Status, error) {
	interval := h.PollInterval
	if interval == 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		c, err := qmp.Dial(ctx, h.Emulator.QMPSocket)
		if err == nil {
			defer c.Close()
			st, err := c.Status(ctx)
			if err != nil {
				return qmp.Status{}, err
			}
			if !st.Halted() {
				if err := c.Quit(ctx); err != nil {
					ctxlog.FromContext(ctx).Warn("Could not shut down emulator.", "error", err)
				}
				return st, fmt.Errorf("machine is %s, expected it halted for the debugger", st.Status)
			}
			return st, nil
		}
		select {
		case <-ctx.Done():
			return qmp.Status{}, errors.Join(ctx.Err(), err)
		case <-ticker.C:
		}
	}
}
