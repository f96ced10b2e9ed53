// Package lifecycle keeps the process alive until an opened buffer is
// closed. It plants a one-shot hook inside the editor that reports back over
// RPC, then blocks on the matching notification.
package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/nvopen/nvopen/internal/logging"
)

// NotificationMethod is the RPC method name the editor-side hook notifies on.
const NotificationMethod = "nvopen_buffer_closed"

// Mode selects which buffer event releases the wait.
type Mode int

const (
	// ModeNone plants no hook; files open without blocking.
	ModeNone Mode = iota
	// ModeKeep releases when the buffer is deleted.
	ModeKeep
	// ModeKeepUntilWrite releases on the buffer's first completed write and
	// deletes the buffer at that point. Without the delete a saved buffer
	// would stay open and the run would outlive its contract.
	ModeKeepUntilWrite
)

// String returns the mode name for logs.
func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeKeep:
		return "keep"
	case ModeKeepUntilWrite:
		return "keep-until-write"
	default:
		return "unknown"
	}
}

// ModeFor maps the two lifecycle flags to a mode. Keep-until-write wins when
// both are set; the flag layer rejects that combination before it gets here.
func ModeFor(keep, keepUntilWrite bool) Mode {
	switch {
	case keepUntilWrite:
		return ModeKeepUntilWrite
	case keep:
		return ModeKeep
	default:
		return ModeNone
	}
}

// Notification is one lifecycle message from the editor.
type Notification struct {
	// Token correlates the message to the run that planted the hook.
	Token string
}

// HookScript builds the Lua hook for the current buffer. The callback body
// is pcall-guarded so a failure inside it cannot surface as an editor error,
// but it still notifies the given channel with the run's token. The autocmd
// is one-shot; each opened buffer gets its own hook.
func HookScript(mode Mode, channelID int, token string) string {
	event, body := "BufDelete", ""
	if mode == ModeKeepUntilWrite {
		event = "BufWritePost"
		body = "vim.api.nvim_buf_delete(buf, { force = true })\n            "
	}

	var b strings.Builder
	fmt.Fprintf(&b, "local buf = vim.api.nvim_get_current_buf()\n")
	fmt.Fprintf(&b, "vim.api.nvim_create_autocmd('%s', {\n", event)
	fmt.Fprintf(&b, "    buffer = buf,\n")
	fmt.Fprintf(&b, "    once = true,\n")
	fmt.Fprintf(&b, "    callback = function()\n")
	fmt.Fprintf(&b, "        pcall(function()\n")
	fmt.Fprintf(&b, "            %svim.rpcnotify(%d, '%s', '%s')\n", body, channelID, NotificationMethod, token)
	fmt.Fprintf(&b, "        end)\n")
	fmt.Fprintf(&b, "    end\n")
	fmt.Fprintf(&b, "})\n")
	return b.String()
}

// ScriptRunner is the slice of the editor session the coordinator needs.
type ScriptRunner interface {
	RunScript(text string, args ...any) error
}

// Coordinator arms lifecycle hooks and waits out their notifications.
type Coordinator struct {
	notifications <-chan Notification
	logger        *logging.Logger
}

// NewCoordinator wires the coordinator to the session's notification stream.
func NewCoordinator(notifications <-chan Notification, logger *logging.Logger) *Coordinator {
	if notifications == nil {
		panic("lifecycle: notification stream is nil")
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Coordinator{
		notifications: notifications,
		logger:        logger.WithComponent("lifecycle"),
	}
}

// Arm plants the hook for the current buffer. ModeNone is a no-op.
func (c *Coordinator) Arm(runner ScriptRunner, mode Mode, channelID int, token string) error {
	if mode == ModeNone {
		return nil
	}
	c.logger.Debug("arming lifecycle hook", "mode", mode.String(), "token", token)
	return runner.RunScript(HookScript(mode, channelID, token))
}

// AwaitClose blocks until a notification carrying token arrives. A closed
// stream means the editor exited, which resolves the wait as done rather
// than as an error: the buffer cannot outlive its editor. Notifications for
// other tokens are logged and skipped.
func (c *Coordinator) AwaitClose(ctx context.Context, token string) error {
	c.logger.Debug("waiting for buffer close", "token", token)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-c.notifications:
			if !ok {
				c.logger.Debug("notification stream closed", "token", token)
				return nil
			}
			if n.Token != token {
				c.logger.Warn("dropping unmatched notification", "got", n.Token, "want", token)
				continue
			}
			c.logger.Debug("buffer closed", "token", token)
			return nil
		}
	}
}
