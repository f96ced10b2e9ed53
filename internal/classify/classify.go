// Package classify decides whether a path refers to text the editor should
// open. Two probes are provided: a built-in MIME sniffer and the classic
// external file(1) command. Selection candidates that fail the text check are
// silently skipped unless the user asked to open non-text entries.
package classify

import (
	"os"
	"os/exec"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/nvopen/nvopen/internal/config"
)

// Classifier is the content-type probe consulted for every candidate.
// A (false, nil) result means "not text, skip quietly"; an error means the
// probe itself failed and the run must abort.
type Classifier interface {
	// IsText reports whether the path holds text content.
	IsText(path string) (bool, error)

	// Name identifies the probe in logs and error context.
	Name() string
}

// FromConfig returns the classifier selected by the configuration.
func FromConfig(cfg config.ClassifierConfig) Classifier {
	if cfg.Mode == config.ClassifierModeFile {
		return &CommandClassifier{Command: cfg.Command}
	}
	return &MIMEClassifier{}
}

// MIMEClassifier detects content types by sniffing file bytes.
// Anything in the text family counts as text; directories, special files,
// and entries that no longer exist are non-text rather than errors, so a
// directory scan does not abort on them.
type MIMEClassifier struct{}

var _ Classifier = (*MIMEClassifier)(nil)

// IsText reports whether the path holds text content.
func (c *MIMEClassifier) IsText(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if !info.Mode().IsRegular() {
		return false, nil
	}
	if info.Size() == 0 {
		// Nothing to sniff; an empty file is as text as it gets.
		return true, nil
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return false, err
	}
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true, nil
		}
	}
	return false, nil
}

// Name identifies the probe.
func (c *MIMEClassifier) Name() string {
	return "mime"
}

// CommandClassifier shells out to a file(1)-style command and accepts only
// the description "ASCII text". This reproduces the strict legacy behavior,
// where even UTF-8 content with non-ASCII bytes is skipped.
type CommandClassifier struct {
	// Command is the probe binary; "file" when empty.
	Command string
}

var _ Classifier = (*CommandClassifier)(nil)

// IsText reports whether the probe describes the path as ASCII text.
func (c *CommandClassifier) IsText(path string) (bool, error) {
	out, err := exec.Command(c.command(), path).Output()
	if err != nil {
		return false, err
	}

	// Output is "<path>: <description>\n". Take the last ": "-separated
	// field so colons inside the path cannot confuse the parse.
	fields := strings.Split(string(out), ": ")
	description := fields[len(fields)-1]

	return description == "ASCII text\n", nil
}

// Name identifies the probe.
func (c *CommandClassifier) Name() string {
	return c.command()
}

func (c *CommandClassifier) command() string {
	if c.Command == "" {
		return "file"
	}
	return c.Command
}
