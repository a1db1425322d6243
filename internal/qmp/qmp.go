// Package qmp is a minimal QEMU Machine Protocol client. It connects to the
// UNIX socket QEMU exposes with `-qmp unix:<path>,server,nowait`, negotiates
// capabilities, and issues the handful of commands kernforge needs.
package qmp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/vk/kernforge/internal/ctxlog"
)

// VM run states reported by query-status.
const (
	StatusRunning   = "running"
	StatusPaused    = "paused"
	StatusPrelaunch = "prelaunch"
	StatusShutdown  = "shutdown"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("qmp: connection closed")

// Status is the reply to query-status.
type Status struct {
	Running bool   `json:"running"`
	Status  string `json:"status"`
}

// Halted reports whether the VM has not started executing guest code.
func (s Status) Halted() bool {
	return !s.Running && (s.Status == StatusPaused || s.Status == StatusPrelaunch)
}

// CommandError is an error reply from QEMU.
type CommandError struct {
	Command string
	Class   string `json:"class"`
	Desc    string `json:"desc"`
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("qmp %s: %s: %s", e.Command, e.Class, e.Desc)
}

type request struct {
	Execute string `json:"execute"`
}

// response covers the greeting, command replies and asynchronous events.
type response struct {
	QMP    json.RawMessage `json:"QMP,omitempty"`
	Return json.RawMessage `json:"return,omitempty"`
	Error  *CommandError   `json:"error,omitempty"`
	Event  string          `json:"event,omitempty"`
}

// Client is a synchronous QMP connection. Commands are serialized.
type Client struct {
	mu     sync.Mutex
	conn   net.Conn
	dec    *json.Decoder
	enc    *json.Encoder
	closed bool
}

// Dial connects to the QMP socket at path and negotiates capabilities.
func Dial(ctx context.Context, path string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("qmp connect %s: %w", path, err)
	}
	c, err := NewClient(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// NewClient performs the QMP handshake over conn.
func NewClient(ctx context.Context, conn net.Conn) (*Client, error) {
	c := &Client{conn: conn, dec: json.NewDecoder(conn), enc: json.NewEncoder(conn)}
	c.deadline(ctx)

	var greeting response
	if err := c.dec.Decode(&greeting); err != nil {
		return nil, fmt.Errorf("qmp greeting: %w", err)
	}
	if greeting.QMP == nil {
		return nil, errors.New("qmp: peer did not send a greeting")
	}
	if _, err := c.execute(ctx, "qmp_capabilities"); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) deadline(ctx context.Context) {
	if dl, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(dl)
	} else {
		c.conn.SetDeadline(time.Time{})
	}
}

// execute sends cmd and waits for its reply, skipping events.
func (c *Client) execute(ctx context.Context, cmd string) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	c.deadline(ctx)

	if err := c.enc.Encode(request{Execute: cmd}); err != nil {
		return nil, fmt.Errorf("qmp %s: %w", cmd, err)
	}
	for {
		var resp response
		if err := c.dec.Decode(&resp); err != nil {
			return nil, fmt.Errorf("qmp %s: %w", cmd, err)
		}
		switch {
		case resp.Event != "":
			ctxlog.FromContext(ctx).Debug("QMP event.", "event", resp.Event)
			continue
		case resp.Error != nil:
			resp.Error.Command = cmd
			return nil, resp.Error
		case resp.Return != nil:
			return resp.Return, nil
		}
	}
}

// Status queries the VM run state.
func (c *Client) Status(ctx context.Context) (Status, error) {
	raw, err := c.execute(ctx, "query-status")
	if err != nil {
		return Status{}, err
	}
	var st Status
	if err := json.Unmarshal(raw, &st); err != nil {
		return Status{}, fmt.Errorf("qmp query-status: %w", err)
	}
	return st, nil
}

// Quit asks QEMU to exit.
func (c *Client) Quit(ctx context.Context) error {
	_, err := c.execute(ctx, "quit")
	return err
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}
