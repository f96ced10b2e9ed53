// Package orchestrator sequences one run: connect, lay out the window, feed
// every selected file into the editor with its per-file actions, then hand
// focus back. It drives the other components and owns no policy of its own
// beyond ordering.
package orchestrator

import (
	"context"
	"io"
	"os"

	"github.com/nvopen/nvopen/internal/editor"
	"github.com/nvopen/nvopen/internal/envctx"
	"github.com/nvopen/nvopen/internal/errors"
	"github.com/nvopen/nvopen/internal/files"
	"github.com/nvopen/nvopen/internal/layout"
	"github.com/nvopen/nvopen/internal/lifecycle"
	"github.com/nvopen/nvopen/internal/logging"
)

// Editor is the capability slice of a session the orchestrator needs.
type Editor interface {
	Open(path string) error
	Command(text string) error
	RunScript(text string, args ...any) error
	Notifications() <-chan lifecycle.Notification
	FocusInitial() error
	ChannelID() int
	Close() error
}

var _ Editor = (*editor.Session)(nil)

// ConnectFunc produces the session for this run.
type ConnectFunc func(ctx context.Context) (Editor, error)

// Params carries the orchestrator's collaborators.
type Params struct {
	Context *envctx.RunContext
	Source  *files.Source
	Connect ConnectFunc

	// Stdin is the piped input to capture; defaults to os.Stdin.
	Stdin io.Reader

	Logger *logging.Logger
}

// Orchestrator runs one invocation end to end.
type Orchestrator struct {
	runCtx  *envctx.RunContext
	source  *files.Source
	connect ConnectFunc
	stdin   io.Reader
	logger  *logging.Logger
}

// New builds an orchestrator. Context, source and connect are required.
func New(p Params) *Orchestrator {
	if p.Context == nil {
		panic("orchestrator: run context is nil")
	}
	if p.Source == nil {
		panic("orchestrator: file source is nil")
	}
	if p.Connect == nil {
		panic("orchestrator: connect func is nil")
	}
	stdin := p.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	logger := p.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Orchestrator{
		runCtx:  p.Context,
		source:  p.Source,
		connect: p.Connect,
		stdin:   stdin,
		logger:  logger.WithComponent("orchestrator"),
	}
}

// Run executes the sequence. Any error is fatal for the run; nothing is
// retried.
func (o *Orchestrator) Run(ctx context.Context) error {
	c := o.runCtx
	o.logger.Info("starting run",
		"selection", c.Selection.Mode.String(),
		"address", c.Address,
		"split", c.Split != nil)

	pipePath := ""
	if c.PipeBuffer != nil {
		captured, err := o.capturePipe()
		if err != nil {
			return err
		}
		pipePath = captured
	}

	session, err := o.connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			o.logger.Warn("closing session", "error", err)
		}
	}()

	coord := lifecycle.NewCoordinator(session.Notifications(), o.logger)

	// The window is prepared exactly once, before any buffer, so every
	// opened file lands in it.
	if c.Split != nil {
		script, err := layout.Plan(*c.Split)
		if err != nil {
			return err
		}
		if err := session.RunScript(script); err != nil {
			return err
		}
	}

	if pipePath != "" {
		o.logger.Info("opening piped input", "path", pipePath)
		if err := session.Open(pipePath); err != nil {
			return err
		}
	}

	mode := lifecycle.ModeFor(c.Options.Keep, c.Options.KeepUntilWrite)
	if err := o.source.Each(func(cand files.Candidate) error {
		return o.openOne(ctx, session, coord, mode, cand)
	}); err != nil {
		return err
	}

	if c.Options.Back || c.Options.BackRestore {
		if err := session.FocusInitial(); err != nil {
			return err
		}
		if c.Options.BackRestore {
			if err := session.Command("norm! A"); err != nil {
				return err
			}
		}
	}

	o.logger.Info("run complete")
	return nil
}

// openOne performs the per-file sequence: open, at most one motion, arm the
// lifecycle hook, user script, user command, then block on the hook if one
// was armed. Blocking last lets the script and command act on the buffer
// while it is still open.
func (o *Orchestrator) openOne(ctx context.Context, session Editor, coord *lifecycle.Coordinator, mode lifecycle.Mode, cand files.Candidate) error {
	c := o.runCtx
	o.logger.Info("opening file", "path", cand.Display, "text", cand.IsText)

	if err := session.Open(cand.Path); err != nil {
		return err
	}

	switch {
	case c.Options.Follow:
		if err := session.Command("norm! G"); err != nil {
			return err
		}
	case c.Options.Pattern != "":
		if err := session.Command("norm! /" + c.Options.Pattern + "\r"); err != nil {
			return err
		}
	case c.Options.PatternBackwards != "":
		if err := session.Command("norm! ?" + c.Options.PatternBackwards + "\r"); err != nil {
			return err
		}
	}

	if err := coord.Arm(session, mode, session.ChannelID(), c.SessionID); err != nil {
		return err
	}

	if c.Options.Lua != "" {
		if err := session.RunScript(c.Options.Lua); err != nil {
			return err
		}
	}
	if c.Options.Command != "" {
		if err := session.Command(c.Options.Command); err != nil {
			return err
		}
	}

	if mode != lifecycle.ModeNone {
		return coord.AwaitClose(ctx, c.SessionID)
	}
	return nil
}

// capturePipe drains stdin into the run's capture file and returns its path.
func (o *Orchestrator) capturePipe() (string, error) {
	path := o.runCtx.PipeBuffer.Path(o.runCtx.ScratchDir)
	f, err := os.Create(path)
	if err != nil {
		return "", errors.NewContextError("creating pipe capture file", err).WithPath(path)
	}
	defer f.Close()

	n, err := io.Copy(f, o.stdin)
	if err != nil {
		return "", errors.NewContextError("capturing piped input", err).WithPath(path)
	}
	o.logger.Debug("captured piped input", "bytes", n, "path", path)
	return path, nil
}
