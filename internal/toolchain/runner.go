package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/vk/kernforge/internal/ctxlog"
)

// stderrTail bounds how much of a failing command's stderr is kept on the
// error value.
const stderrTail = 4096

// Command is one synchronous invocation of an external tool.
type Command struct {
	// Name is the tool identity reported on failure (e.g. "assembler").
	Name string
	Path string
	Args []string
	Dir  string
	// Env is appended to the inherited PATH and HOME.
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// String renders the command line for logs and error messages.
func (c Command) String() string {
	return strings.TrimSpace(c.Path + " " + strings.Join(c.Args, " "))
}

// Runner executes toolchain commands. A non-nil error means the command did
// not exit with status zero.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExitError reports a toolchain command that ran and failed.
type ExitError struct {
	Tool    string
	Command string
	Status  int
	Stderr  string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s failed with exit status %d: %s", e.Tool, e.Status, e.Command)
	if e.Stderr != "" {
		msg += "\n" + e.Stderr
	}
	return msg
}

// ExecRunner runs commands as child processes.
type ExecRunner struct{}

// NewExecRunner returns a Runner backed by os/exec.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, c Command) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Running toolchain command.", "tool", c.Name, "cmd", c.String(), "dir", c.Dir)

	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(inheritedEnv(), c.Env...)

	var stderr bytes.Buffer
	cmd.Stdout = c.Stdout
	if c.Stderr != nil {
		cmd.Stderr = io.MultiWriter(c.Stderr, &stderr)
	} else {
		cmd.Stderr = &stderr
	}

	err := cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{
			Tool:    c.Name,
			Command: c.String(),
			Status:  exitErr.ExitCode(),
			Stderr:  tail(stderr.String(), stderrTail),
		}
	}
	return fmt.Errorf("%s: %w", c.Name, err)
}

// inheritedEnv keeps just enough of the host environment for tools to be
// found and to locate their per-user state.
func inheritedEnv() []string {
	var env []string
	for _, key := range []string{"PATH", "HOME", "TMPDIR"} {
		if v, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+v)
		}
	}
	return env
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
