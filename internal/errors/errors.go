// Package errors provides centralized error definitions and error handling
// utilities for the nvopen codebase. It defines domain-specific errors, error
// constructors with context wrapping, and error classification helpers.
//
// # Error Types
//
// Each stage of a run has its own error type:
//   - ContextError: run-context resolution failed (scratch dir, environment)
//   - ConnectionError: the editor could not be dialed or launched
//   - ClassificationError: the content-type probe failed on a candidate
//   - WalkError: a directory enumeration failed
//   - CommandError: the editor rejected a command
//   - ScriptError: the editor rejected a script
//   - SplitSpecError: a split request was malformed (programming error)
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewConnectionError("cannot dial editor", cause).WithAddress(addr)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrConnection) { ... }
//
//	var connErr *errors.ConnectionError
//	if errors.As(err, &connErr) { ... }
//
// All nvopen errors are fatal at the point of occurrence: a run is a single
// shot and is simply re-invoked by the user. There is no retry classification.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Kind sentinels, one per error type. Typed errors match their kind sentinel
// through errors.Is regardless of wrapping depth.
var (
	// ErrContext indicates that run-context resolution failed.
	ErrContext = New("context resolution failed")
	// ErrConnection indicates that the editor could not be reached.
	ErrConnection = New("editor connection failed")
	// ErrClassification indicates that the content-type probe failed.
	ErrClassification = New("content classification failed")
	// ErrWalk indicates that a directory enumeration failed.
	ErrWalk = New("directory walk failed")
	// ErrCommand indicates that the editor rejected a command.
	ErrCommand = New("editor command failed")
	// ErrScript indicates that the editor rejected a script.
	ErrScript = New("editor script failed")
	// ErrSplitSpec indicates a malformed split request.
	ErrSplitSpec = New("malformed split request")
)

// Condition sentinels, used as causes where the condition is known.
var (
	// ErrScratchDirCreate indicates that the scratch directory could not be created.
	ErrScratchDirCreate = New("cannot create scratch directory")
	// ErrWorkDirUnknown indicates that no working directory could be determined.
	ErrWorkDirUnknown = New("working directory cannot be determined")
	// ErrEditorLaunch indicates that the embedded editor failed to start.
	ErrEditorLaunch = New("editor failed to launch")
	// ErrStartupTimeout indicates that a launched editor never exposed its socket.
	ErrStartupTimeout = New("editor socket did not appear")
	// ErrNoSplitSize indicates a split request with no size field set.
	ErrNoSplitSize = New("no split size set")
	// ErrAmbiguousSplitSize indicates a split request with several size fields set.
	ErrAmbiguousSplitSize = New("multiple split sizes set")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// BridgeError is the base interface for all nvopen errors.
// It extends the standard error interface with methods for classification.
type BridgeError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	// This is used by errors.Is() for error comparison.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsFatal reports whether the error aborts the run. Every nvopen error
	// does; the method exists so callers state the contract explicitly.
	IsFatal() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	kind       error
	severity   Severity
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if target == e.kind {
		return true
	}
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsFatal reports whether the error aborts the run.
func (e *baseError) IsFatal() bool {
	return true
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// ContextError represents a failure while resolving the run context.
//
// Example:
//
//	err := errors.NewContextError("cannot create scratch directory", cause)
//	err = err.WithPath("/tmp/nvopen")
type ContextError struct {
	baseError
	Path     string
	Variable string
}

// NewContextError creates a new ContextError.
func NewContextError(message string, cause error) *ContextError {
	return &ContextError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			kind:       ErrContext,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithPath adds the filesystem path involved to the error context.
func (e *ContextError) WithPath(path string) *ContextError {
	e.Path = path
	return e
}

// WithVariable adds the environment variable involved to the error context.
func (e *ContextError) WithVariable(name string) *ContextError {
	e.Variable = name
	return e
}

// Error returns the formatted error message.
func (e *ContextError) Error() string {
	var parts []string
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}
	if e.Variable != "" {
		parts = append(parts, fmt.Sprintf("var=%s", e.Variable))
	}
	return format("context error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ContextError) Is(target error) bool {
	if _, ok := target.(*ContextError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ConnectionError represents a failure to dial or launch the editor.
//
// Example:
//
//	err := errors.NewConnectionError("cannot dial editor", cause).WithAddress(addr)
type ConnectionError struct {
	baseError
	Address string
	Socket  string
}

// NewConnectionError creates a new ConnectionError.
func NewConnectionError(message string, cause error) *ConnectionError {
	return &ConnectionError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			kind:       ErrConnection,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithAddress adds the dialed address to the error context.
func (e *ConnectionError) WithAddress(address string) *ConnectionError {
	e.Address = address
	return e
}

// WithSocket adds the launch socket path to the error context.
func (e *ConnectionError) WithSocket(path string) *ConnectionError {
	e.Socket = path
	return e
}

// Error returns the formatted error message.
func (e *ConnectionError) Error() string {
	var parts []string
	if e.Address != "" {
		parts = append(parts, fmt.Sprintf("address=%s", e.Address))
	}
	if e.Socket != "" {
		parts = append(parts, fmt.Sprintf("socket=%s", e.Socket))
	}
	return format("connection error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ConnectionError) Is(target error) bool {
	if _, ok := target.(*ConnectionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ClassificationError represents a content-type probe failure.
type ClassificationError struct {
	baseError
	Path  string
	Probe string
}

// NewClassificationError creates a new ClassificationError.
func NewClassificationError(message string, cause error) *ClassificationError {
	return &ClassificationError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			kind:       ErrClassification,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithPath adds the probed path to the error context.
func (e *ClassificationError) WithPath(path string) *ClassificationError {
	e.Path = path
	return e
}

// WithProbe adds the probe name (classifier mode or command) to the error context.
func (e *ClassificationError) WithProbe(probe string) *ClassificationError {
	e.Probe = probe
	return e
}

// Error returns the formatted error message.
func (e *ClassificationError) Error() string {
	var parts []string
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}
	if e.Probe != "" {
		parts = append(parts, fmt.Sprintf("probe=%s", e.Probe))
	}
	return format("classification error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ClassificationError) Is(target error) bool {
	if _, ok := target.(*ClassificationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// WalkError represents a directory enumeration failure. Partial silent
// omission is unacceptable, so any unreadable entry aborts the run.
type WalkError struct {
	baseError
	Dir   string
	Entry string
}

// NewWalkError creates a new WalkError.
func NewWalkError(message string, cause error) *WalkError {
	return &WalkError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			kind:       ErrWalk,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithDir adds the enumerated directory to the error context.
func (e *WalkError) WithDir(dir string) *WalkError {
	e.Dir = dir
	return e
}

// WithEntry adds the offending entry to the error context.
func (e *WalkError) WithEntry(entry string) *WalkError {
	e.Entry = entry
	return e
}

// Error returns the formatted error message.
func (e *WalkError) Error() string {
	var parts []string
	if e.Dir != "" {
		parts = append(parts, fmt.Sprintf("dir=%s", e.Dir))
	}
	if e.Entry != "" {
		parts = append(parts, fmt.Sprintf("entry=%s", e.Entry))
	}
	return format("walk error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *WalkError) Is(target error) bool {
	if _, ok := target.(*WalkError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// CommandError represents an editor-rejected command.
type CommandError struct {
	baseError
	Command string
}

// NewCommandError creates a new CommandError.
func NewCommandError(message string, cause error) *CommandError {
	return &CommandError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			kind:       ErrCommand,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithCommand adds the rejected command text to the error context.
func (e *CommandError) WithCommand(command string) *CommandError {
	e.Command = command
	return e
}

// Error returns the formatted error message.
func (e *CommandError) Error() string {
	var parts []string
	if e.Command != "" {
		parts = append(parts, fmt.Sprintf("command=%q", e.Command))
	}
	return format("command error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *CommandError) Is(target error) bool {
	if _, ok := target.(*CommandError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ScriptError represents an editor-rejected script.
type ScriptError struct {
	baseError
	Snippet string
}

// NewScriptError creates a new ScriptError.
func NewScriptError(message string, cause error) *ScriptError {
	return &ScriptError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			kind:       ErrScript,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithSnippet adds the head of the rejected script to the error context.
func (e *ScriptError) WithSnippet(snippet string) *ScriptError {
	e.Snippet = Snip(snippet, 60)
	return e
}

// Error returns the formatted error message.
func (e *ScriptError) Error() string {
	var parts []string
	if e.Snippet != "" {
		parts = append(parts, fmt.Sprintf("script=%q", e.Snippet))
	}
	return format("script error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ScriptError) Is(target error) bool {
	if _, ok := target.(*ScriptError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// SplitSpecError represents a malformed split request. This is a
// programming-contract violation, not a user-input error: the options layer
// constructs only coherent requests.
type SplitSpecError struct {
	baseError
	FieldCount int
}

// NewSplitSpecError creates a new SplitSpecError.
func NewSplitSpecError(message string, cause error) *SplitSpecError {
	return &SplitSpecError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			kind:       ErrSplitSpec,
			severity:   SeverityCritical,
			userFacing: false,
		},
		FieldCount: -1,
	}
}

// WithFieldCount records how many size fields were set.
func (e *SplitSpecError) WithFieldCount(n int) *SplitSpecError {
	e.FieldCount = n
	return e
}

// Error returns the formatted error message.
func (e *SplitSpecError) Error() string {
	var parts []string
	if e.FieldCount >= 0 {
		parts = append(parts, fmt.Sprintf("fields=%d", e.FieldCount))
	}
	return format("split spec error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *SplitSpecError) Is(target error) bool {
	if _, ok := target.(*SplitSpecError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// format builds the shared "<prefix> [k=v, ...]: message: cause" layout.
func format(prefix string, parts []string, message string, cause error) string {
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", prefix, strings.Join(parts, ", "))
	}
	if cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, message, cause)
	}
	return fmt.Sprintf("%s: %s", prefix, message)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsFatal returns true if the error aborts the run. Every BridgeError is
// fatal; unknown non-nil errors are treated as fatal too, since nothing in
// nvopen retries.
func IsFatal(err error) bool {
	return err != nil
}

// IsUserFacing returns true if the error message is safe to display to end
// users. Unknown errors are not user-facing: they are logged and replaced by
// a generic message.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var bridgeErr BridgeError
	if As(err, &bridgeErr) {
		return bridgeErr.IsUserFacing()
	}

	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement BridgeError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var bridgeErr BridgeError
	if As(err, &bridgeErr) {
		return bridgeErr.Severity()
	}

	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
//
// Example:
//
//	err := errors.Wrap(baseErr, "opening file buffer")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Snip shortens a string to at most n runes for inclusion in messages.
func Snip(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
