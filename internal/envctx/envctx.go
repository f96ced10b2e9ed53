// Package envctx resolves the parsed command line and the inherited process
// environment into a single immutable run context. Everything downstream
// reads derived state from here and never consults the environment again.
package envctx

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"

	"github.com/nvopen/nvopen/internal/errors"
	"github.com/nvopen/nvopen/internal/layout"
)

// ScratchDirName is the directory under the system temp root that holds
// sockets, logs and pipe-capture files for every nvopen run on the host.
const ScratchDirName = "nvopen"

// ScratchDir returns the scratch directory location under a temp root.
func ScratchDir(tempRoot string) string {
	return filepath.Join(tempRoot, ScratchDirName)
}

// Options carries the parsed command line, one field per flag plus the
// positional file arguments. The flag layer fills it; Resolve consumes it.
type Options struct {
	// Address is the target editor address. AddressGiven distinguishes an
	// explicitly empty address, which suppresses the legacy-variable
	// fallback, from an address that was never supplied at all.
	Address      string
	AddressGiven bool

	// ConfigFile is an editor config to load on launch instead of the default.
	ConfigFile string

	Files        []string
	RecurseDepth int

	Follow           bool
	Pattern          string
	PatternBackwards string

	Keep           bool
	KeepUntilWrite bool

	Back        bool
	BackRestore bool

	Lua     string
	Command string

	OpenNonText bool

	Split layout.Request
}

// SplitImplied reports whether any split size was requested.
func (o Options) SplitImplied() bool {
	return o.Split.Implied()
}

// Environment is the slice of the process environment the resolver reads.
// Capturing it as a value keeps Resolve testable without touching the real
// environment.
type Environment struct {
	// LegacyAddress is the value of NVIM_LISTEN_ADDRESS, the address
	// variable older editor versions exported.
	LegacyAddress string

	// WorkDir is the logical working directory, preferring $PWD so paths
	// keep the spelling the invoking shell used.
	WorkDir string

	// TempRoot is the system temp directory the scratch dir lives under.
	TempRoot string

	// StdinIsTTY is false when input is piped into the process.
	StdinIsTTY bool
}

// CaptureEnvironment reads the live process environment.
func CaptureEnvironment() Environment {
	workDir := os.Getenv("PWD")
	if workDir == "" {
		if wd, err := os.Getwd(); err == nil {
			workDir = wd
		}
	}
	return Environment{
		LegacyAddress: os.Getenv("NVIM_LISTEN_ADDRESS"),
		WorkDir:       workDir,
		TempRoot:      os.TempDir(),
		StdinIsTTY:    isatty.IsTerminal(os.Stdin.Fd()),
	}
}

// SelectionMode says how the set of files to open was chosen.
type SelectionMode int

const (
	// SelectExplicit opens the files named on the command line.
	SelectExplicit SelectionMode = iota
	// SelectMostRecent opens the most recently modified text file in the
	// working directory. Chosen when no files and no walk were requested.
	SelectMostRecent
	// SelectWalk opens every text file under the working directory up to
	// a depth. A requested walk wins over explicitly named files.
	SelectWalk
)

// String returns the mode name for logs.
func (m SelectionMode) String() string {
	switch m {
	case SelectExplicit:
		return "explicit"
	case SelectMostRecent:
		return "most-recent"
	case SelectWalk:
		return "walk"
	default:
		return "unknown"
	}
}

// Selection is the resolved file-selection strategy.
type Selection struct {
	Mode SelectionMode

	// Files holds the named files, explicit mode only.
	Files []string

	// WalkDepth bounds the walk, walk mode only.
	WalkDepth int
}

// PipeBuffer describes the scratch file that captures piped stdin so it can
// be opened as a buffer alongside the requested files.
type PipeBuffer struct {
	// Name is the buffer name, unique per run.
	Name string
}

// Path returns the capture file location inside the scratch directory.
func (p PipeBuffer) Path(scratchDir string) string {
	return filepath.Join(scratchDir, p.Name)
}

// RunContext is the resolved, immutable state of one invocation.
type RunContext struct {
	// Options is the command line as parsed, kept verbatim for the parts
	// that need no resolution.
	Options Options

	// Address is the final editor address. Empty means no running editor
	// is targeted and one must be launched.
	Address string

	// WorkDir anchors relative file arguments and the walk.
	WorkDir string

	// ScratchDir exists by the time Resolve returns.
	ScratchDir string

	// SessionID names everything this run creates: socket, log, pipe buffer.
	SessionID string

	Selection Selection

	// Split is the window to create before opening files, nil when no
	// split applies. A split is only meaningful inside an editor that is
	// already showing something, so it is never derived for a fresh
	// launch even if sizes were given.
	Split *layout.Request

	// PipeBuffer is non-nil when stdin is piped.
	PipeBuffer *PipeBuffer
}

// Launches reports whether the run starts its own editor instead of
// attaching to a running one.
func (c *RunContext) Launches() bool {
	return c.Address == ""
}

// Resolve derives the run context from options and environment.
//
// Address resolution runs first: the flag value if given, otherwise the
// legacy variable, and an empty result in either branch means unset. The
// scratch directory is created here so every later component can assume it
// exists; failure to create it is fatal because the log, the launch socket
// and pipe capture all live inside it.
func Resolve(opts Options, env Environment) (*RunContext, error) {
	if opts.RecurseDepth < 0 {
		return nil, errors.NewContextError("recurse depth must not be negative", nil)
	}

	address := opts.Address
	if !opts.AddressGiven {
		address = env.LegacyAddress
	}

	if env.WorkDir == "" {
		return nil, errors.NewContextError("resolving working directory", errors.ErrWorkDirUnknown)
	}

	scratchDir := ScratchDir(env.TempRoot)
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return nil, errors.NewContextError("creating scratch directory",
			errors.Join(errors.ErrScratchDirCreate, err)).WithPath(scratchDir)
	}

	selection := Selection{Mode: SelectMostRecent}
	switch {
	case opts.RecurseDepth > 0:
		selection = Selection{Mode: SelectWalk, WalkDepth: opts.RecurseDepth}
	case len(opts.Files) > 0:
		selection = Selection{Mode: SelectExplicit, Files: opts.Files}
	}

	sessionID := uuid.NewString()

	ctx := &RunContext{
		Options:    opts,
		Address:    address,
		WorkDir:    env.WorkDir,
		ScratchDir: scratchDir,
		SessionID:  sessionID,
		Selection:  selection,
	}

	if address != "" && opts.SplitImplied() {
		split := opts.Split
		ctx.Split = &split
	}

	if !env.StdinIsTTY {
		ctx.PipeBuffer = &PipeBuffer{Name: sessionID + "-read"}
	}

	return ctx, nil
}
