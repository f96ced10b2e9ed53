// Package editor owns the RPC link to the target editor. It either dials a
// running instance or launches one on the user's terminal and dials the
// socket it was told to listen on. Everything the rest of the program does
// to the editor goes through the Session returned by Connect.
package editor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/neovim/go-client/nvim"

	"github.com/nvopen/nvopen/internal/config"
	"github.com/nvopen/nvopen/internal/errors"
	"github.com/nvopen/nvopen/internal/lifecycle"
	"github.com/nvopen/nvopen/internal/logging"
)

// notificationBuffer bounds the inbound stream so a stray notification can
// never stall the RPC dispatch loop.
const notificationBuffer = 16

// socketPollInterval is the stat fallback cadence while waiting for a
// launched editor to bind its socket.
const socketPollInterval = 50 * time.Millisecond

// Params carries everything Connect needs.
type Params struct {
	// Address of a running editor. Empty means launch one.
	Address string

	// ScratchDir hosts the launch socket; SessionID names it.
	ScratchDir string
	SessionID  string

	// Editor is the launch configuration: binary, extra args, config file,
	// startup timeout. Unused when attaching to a running instance.
	Editor config.EditorConfig

	// ReattachTTY is set when stdin is a pipe: a launched editor still
	// needs the terminal for its UI, so its stdin is rebound to /dev/tty.
	ReattachTTY bool

	Logger *logging.Logger
}

// Session is the live editor connection. It is owned by exactly one caller
// and all calls on it are sequential.
type Session struct {
	conn          *nvim.Nvim
	notifications chan lifecycle.Notification

	initialWindow nvim.Window
	initialBuffer nvim.Buffer
	channelID     int

	child *exec.Cmd
	tty   *os.File

	logger *logging.Logger
}

// Connect establishes the session. With an address it dials directly;
// without one it launches the configured editor bound to a fresh socket
// inside the scratch directory and dials that. Failure is fatal to the run,
// there is no retry: a broken interactive link cannot be recovered quietly.
func Connect(ctx context.Context, p Params) (*Session, error) {
	logger := p.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	logger = logger.WithComponent("editor")

	s := &Session{
		notifications: make(chan lifecycle.Notification, notificationBuffer),
		logger:        logger,
	}

	address := p.Address
	if address == "" {
		socket := filepath.Join(p.ScratchDir, p.SessionID)
		if err := s.launch(ctx, p, socket); err != nil {
			return nil, err
		}
		address = socket
	}

	logger.Debug("dialing editor", "address", address)
	conn, err := nvim.Dial(address,
		nvim.DialServe(false),
		nvim.DialLogf(func(format string, args ...interface{}) {
			logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	if err != nil {
		s.cleanupLaunch()
		return nil, errors.NewConnectionError("dialing editor", err).WithAddress(address)
	}
	s.conn = conn

	// The handler must exist before any hook can fire.
	if err := conn.RegisterHandler(lifecycle.NotificationMethod, func(token string) {
		select {
		case s.notifications <- lifecycle.Notification{Token: token}:
		default:
			logger.Warn("dropping lifecycle notification, stream full", "token", token)
		}
	}); err != nil {
		conn.Close()
		s.cleanupLaunch()
		return nil, errors.NewConnectionError("registering notification handler", err).WithAddress(address)
	}

	// The serve loop owns the connection's lifetime: when it returns the
	// editor is gone, and closing the stream resolves any pending wait.
	go func() {
		if err := conn.Serve(); err != nil {
			logger.Debug("rpc serve loop ended", "error", err)
		}
		close(s.notifications)
	}()

	if s.initialWindow, err = conn.CurrentWindow(); err != nil {
		s.shutdown()
		return nil, errors.NewConnectionError("capturing initial window", err).WithAddress(address)
	}
	if s.initialBuffer, err = conn.CurrentBuffer(); err != nil {
		s.shutdown()
		return nil, errors.NewConnectionError("capturing initial buffer", err).WithAddress(address)
	}
	s.channelID = conn.ChannelID()

	logger.Info("editor connected",
		"address", address,
		"channel", s.channelID,
		"launched", s.child != nil)
	return s, nil
}

// launch starts the editor on the user's terminal, listening on socket, and
// waits for the socket to appear.
func (s *Session) launch(ctx context.Context, p Params, socket string) error {
	command := p.Editor.Command
	if command == "" {
		command = config.Default().Editor.Command
	}

	args := append([]string{}, p.Editor.Args...)
	args = append(args, "--listen", socket)
	if p.Editor.Config != "" {
		args = append(args, "-u", p.Editor.Config)
	}

	cmd := exec.Command(command, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if p.ReattachTTY {
		tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
		if err != nil {
			s.logger.Warn("cannot reattach terminal, editor keeps piped stdin", "error", err)
		} else {
			s.tty = tty
			cmd.Stdin = tty
		}
	}

	s.logger.Info("launching editor", "command", command, "socket", socket)
	if err := cmd.Start(); err != nil {
		s.closeTTY()
		return errors.NewConnectionError("launching editor",
			errors.Join(errors.ErrEditorLaunch, err)).WithSocket(socket)
	}
	s.child = cmd

	if err := s.waitForSocket(ctx, socket, p.Editor.StartupTimeout()); err != nil {
		s.cleanupLaunch()
		return err
	}
	return nil
}

// waitForSocket blocks until the launched editor binds its socket. A
// directory watch catches the creation; a slow poll backs it up in case the
// event slipped past before the watch was in place.
func (s *Session) waitForSocket(ctx context.Context, socket string, timeout time.Duration) error {
	var events chan fsnotify.Event
	watcher, werr := fsnotify.NewWatcher()
	if werr == nil {
		defer watcher.Close()
		if werr = watcher.Add(filepath.Dir(socket)); werr == nil {
			events = watcher.Events
		}
	}
	if events == nil {
		s.logger.Warn("socket watch unavailable, polling only", "error", werr)
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	poll := time.NewTicker(socketPollInterval)
	defer poll.Stop()

	for {
		if _, err := os.Stat(socket); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.NewConnectionError("waiting for editor socket", ctx.Err()).WithSocket(socket)
		case <-deadline.C:
			return errors.NewConnectionError("waiting for editor socket",
				errors.ErrStartupTimeout).WithSocket(socket)
		case <-events:
		case <-poll.C:
		}
	}
}

// Open loads path into the current window's buffer.
func (s *Session) Open(path string) error {
	return s.Command("e " + escapeFileName(path))
}

// Command runs an ex command, failing if the editor rejects it.
func (s *Session) Command(text string) error {
	s.logger.Debug("command", "text", text)
	if err := s.conn.Command(text); err != nil {
		return errors.NewCommandError("editor rejected command", err).WithCommand(text)
	}
	return nil
}

// RunScript executes a Lua snippet, failing if the editor rejects it.
func (s *Session) RunScript(text string, args ...any) error {
	s.logger.Debug("script", "bytes", len(text))
	if err := s.conn.ExecLua(text, nil, args...); err != nil {
		return errors.NewScriptError("editor rejected script", err).WithSnippet(text)
	}
	return nil
}

// Notifications exposes the inbound lifecycle stream. It closes when the
// editor exits.
func (s *Session) Notifications() <-chan lifecycle.Notification {
	return s.notifications
}

// InitialWindow returns the window that was current at connect time.
func (s *Session) InitialWindow() nvim.Window { return s.initialWindow }

// InitialBuffer returns the buffer that was current at connect time.
func (s *Session) InitialBuffer() nvim.Buffer { return s.initialBuffer }

// FocusInitial switches back to the window and buffer captured at connect.
func (s *Session) FocusInitial() error {
	if err := s.conn.SetCurrentWindow(s.initialWindow); err != nil {
		return errors.NewCommandError("returning to initial window", err)
	}
	if err := s.conn.SetCurrentBuffer(s.initialBuffer); err != nil {
		return errors.NewCommandError("returning to initial buffer", err)
	}
	return nil
}

// ChannelID identifies this client inside the editor, for rpcnotify.
func (s *Session) ChannelID() int { return s.channelID }

// Launched reports whether this session started its own editor.
func (s *Session) Launched() bool { return s.child != nil }

// Close releases the connection. For a launched editor it then waits for
// the editor process to exit, so the terminal is back in the user's shell
// state before nvopen returns.
func (s *Session) Close() error {
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.logger.Debug("closing connection", "error", err)
		}
	}
	if s.child != nil {
		if err := s.child.Wait(); err != nil {
			s.logger.Warn("editor exited abnormally", "error", err)
		}
	}
	s.closeTTY()
	return nil
}

// shutdown tears down a partially built session during Connect.
func (s *Session) shutdown() {
	if s.conn != nil {
		s.conn.Close()
	}
	s.cleanupLaunch()
}

// cleanupLaunch reaps a launched editor that never became usable.
func (s *Session) cleanupLaunch() {
	if s.child != nil {
		if s.child.Process != nil {
			s.child.Process.Kill()
		}
		s.child.Wait()
		s.child = nil
	}
	s.closeTTY()
}

func (s *Session) closeTTY() {
	if s.tty != nil {
		s.tty.Close()
		s.tty = nil
	}
}

// fnameEscapeChars are the characters that break a bare filename inside an
// ex command line, per the editor's own fnameescape().
const fnameEscapeChars = " \t*?[{`$\\%#'\"|!<"

// escapeFileName backslash-escapes path for use in an ex command.
func escapeFileName(path string) string {
	var b strings.Builder
	b.Grow(len(path))
	for _, r := range path {
		if strings.ContainsRune(fnameEscapeChars, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
