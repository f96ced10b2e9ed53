// Package files turns the resolved file selection into the ordered sequence
// of candidates to open. Enumeration is single-pass and callback-driven so a
// caller can act on each candidate, and block on it, before the next one is
// discovered.
package files

import (
	"os"
	"path/filepath"
	"time"

	"github.com/nvopen/nvopen/internal/classify"
	"github.com/nvopen/nvopen/internal/envctx"
	"github.com/nvopen/nvopen/internal/errors"
)

// Candidate is one file selected for opening.
type Candidate struct {
	// Path is absolute, resolved against the run's working directory.
	Path string

	// Display is the path as the user would recognize it: the argument as
	// given for explicit files, otherwise relative to the working directory.
	Display string

	// IsText is the classifier verdict. Non-text candidates only appear
	// when opening non-text files was requested.
	IsText bool

	// ModTime is set in most-recent mode only, where it decided the pick.
	ModTime time.Time
}

// Source enumerates candidates for one run.
type Source struct {
	selection   envctx.Selection
	workDir     string
	openNonText bool
	classifier  classify.Classifier
}

// New builds a source for the given selection. The classifier is required;
// every enumerated entry passes through it.
func New(sel envctx.Selection, workDir string, openNonText bool, cl classify.Classifier) *Source {
	if cl == nil {
		panic("files: classifier is nil")
	}
	return &Source{
		selection:   sel,
		workDir:     workDir,
		openNonText: openNonText,
		classifier:  cl,
	}
}

// Each invokes fn for every candidate in selection order and stops at the
// first error, whether fn's or the enumeration's. Enumeration errors are
// fatal by contract: silently opening a partial set would misrepresent the
// selection.
func (s *Source) Each(fn func(Candidate) error) error {
	switch s.selection.Mode {
	case envctx.SelectExplicit:
		return s.eachExplicit(fn)
	case envctx.SelectMostRecent:
		return s.mostRecent(fn)
	case envctx.SelectWalk:
		return s.walk(fn)
	default:
		return errors.NewWalkError("unknown selection mode", nil)
	}
}

// eachExplicit yields the named files in input order, one per argument.
// Arguments that fail the text filter are dropped, not errors: pointing the
// tool at a binary is an everyday occurrence, not a fault.
func (s *Source) eachExplicit(fn func(Candidate) error) error {
	for _, arg := range s.selection.Files {
		path := arg
		if !filepath.IsAbs(path) {
			path = filepath.Join(s.workDir, arg)
		}
		isText, err := s.classify(path)
		if err != nil {
			return err
		}
		if !isText && !s.openNonText {
			continue
		}
		if err := fn(Candidate{Path: path, Display: arg, IsText: isText}); err != nil {
			return err
		}
	}
	return nil
}

// mostRecent scans the immediate children of the working directory and
// yields at most one candidate, the filter-passing entry with the latest
// modification time. Enumeration order is lexical, and only a strictly newer
// time displaces the current pick, so equal times resolve to the lexically
// smaller name.
func (s *Source) mostRecent(fn func(Candidate) error) error {
	entries, err := os.ReadDir(s.workDir)
	if err != nil {
		return errors.NewWalkError("reading working directory", err).WithDir(s.workDir)
	}

	var best *Candidate
	for _, entry := range entries {
		path := filepath.Join(s.workDir, entry.Name())
		isText, err := s.classify(path)
		if err != nil {
			return err
		}
		if !isText && !s.openNonText {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return errors.NewWalkError("reading entry metadata", err).
				WithDir(s.workDir).WithEntry(entry.Name())
		}

		if best == nil || best.ModTime.Before(info.ModTime()) {
			best = &Candidate{
				Path:    path,
				Display: entry.Name(),
				IsText:  isText,
				ModTime: info.ModTime(),
			}
		}
	}

	if best == nil {
		return nil
	}
	return fn(*best)
}

// walk yields every filter-passing entry under the working directory up to
// the configured depth, contents first: a directory's entries come before
// the directory itself, and the working directory closes the sequence.
// Symlinks are yielded where found but never descended into.
func (s *Source) walk(fn func(Candidate) error) error {
	if err := s.walkDir(s.workDir, 1, fn); err != nil {
		return err
	}
	return s.admit(s.workDir, ".", fn)
}

func (s *Source) walkDir(dir string, depth int, fn func(Candidate) error) error {
	if depth > s.selection.WalkDepth {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.NewWalkError("reading directory", err).WithDir(dir)
	}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			if err := s.walkDir(path, depth+1, fn); err != nil {
				return err
			}
		}
		display, rerr := filepath.Rel(s.workDir, path)
		if rerr != nil {
			display = path
		}
		if err := s.admit(path, display, fn); err != nil {
			return err
		}
	}
	return nil
}

// admit classifies path and hands it to fn unless the filter drops it.
func (s *Source) admit(path, display string, fn func(Candidate) error) error {
	isText, err := s.classify(path)
	if err != nil {
		return err
	}
	if !isText && !s.openNonText {
		return nil
	}
	return fn(Candidate{Path: path, Display: display, IsText: isText})
}

func (s *Source) classify(path string) (bool, error) {
	isText, err := s.classifier.IsText(path)
	if err != nil {
		return false, errors.NewClassificationError("probing content type", err).
			WithPath(path).WithProbe(s.classifier.Name())
	}
	return isText, nil
}
