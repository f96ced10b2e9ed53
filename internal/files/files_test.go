package files

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvopen/nvopen/internal/classify"
	"github.com/nvopen/nvopen/internal/envctx"
	"github.com/nvopen/nvopen/internal/errors"
	"github.com/nvopen/nvopen/internal/testutil"
)

func collect(t *testing.T, s *Source) []Candidate {
	t.Helper()
	var out []Candidate
	if err := s.Each(func(c Candidate) error {
		out = append(out, c)
		return nil
	}); err != nil {
		t.Fatalf("Each() error = %v", err)
	}
	return out
}

func displays(cands []Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Display
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestExplicitOrder(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{
		"a.txt": "alpha\n",
		"b.txt": "beta\n",
	})

	sel := envctx.Selection{Mode: envctx.SelectExplicit, Files: []string{"b.txt", "a.txt", "b.txt"}}
	got := collect(t, New(sel, dir, false, &classify.MIMEClassifier{}))

	if want := []string{"b.txt", "a.txt", "b.txt"}; !equalStrings(displays(got), want) {
		t.Errorf("candidates = %v, want %v", displays(got), want)
	}
	for _, c := range got {
		if !filepath.IsAbs(c.Path) {
			t.Errorf("Path %q should be absolute", c.Path)
		}
		if c.Path != filepath.Join(dir, c.Display) {
			t.Errorf("Path = %q, want joined against the working directory", c.Path)
		}
		if !c.IsText {
			t.Errorf("%q should classify as text", c.Display)
		}
	}
}

func TestExplicitAbsolutePathKept(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{"a.txt": "alpha\n"})
	abs := filepath.Join(dir, "a.txt")

	sel := envctx.Selection{Mode: envctx.SelectExplicit, Files: []string{abs}}
	got := collect(t, New(sel, t.TempDir(), false, &classify.MIMEClassifier{}))

	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1", len(got))
	}
	if got[0].Path != abs || got[0].Display != abs {
		t.Errorf("candidate = %+v, want the absolute argument verbatim", got[0])
	}
}

func TestExplicitNonTextFilter(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{
		"a.txt": "alpha\n",
		"a.bin": testutil.BinaryContent(),
	})
	sel := envctx.Selection{Mode: envctx.SelectExplicit, Files: []string{"a.bin", "a.txt"}}

	got := collect(t, New(sel, dir, false, &classify.MIMEClassifier{}))
	if want := []string{"a.txt"}; !equalStrings(displays(got), want) {
		t.Errorf("filtered candidates = %v, want %v", displays(got), want)
	}

	got = collect(t, New(sel, dir, true, &classify.MIMEClassifier{}))
	if want := []string{"a.bin", "a.txt"}; !equalStrings(displays(got), want) {
		t.Errorf("open-non-text candidates = %v, want %v", displays(got), want)
	}
	if got[0].IsText {
		t.Error("binary candidate should keep its non-text verdict")
	}
}

func TestExplicitMissingFileSkipped(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{"a.txt": "alpha\n"})
	sel := envctx.Selection{Mode: envctx.SelectExplicit, Files: []string{"gone.txt", "a.txt"}}

	got := collect(t, New(sel, dir, false, &classify.MIMEClassifier{}))
	if want := []string{"a.txt"}; !equalStrings(displays(got), want) {
		t.Errorf("candidates = %v, want missing argument dropped", displays(got))
	}
}

func TestMostRecentPicksNewestText(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{
		"old.txt":    "old\n",
		"middle.txt": "middle\n",
		"new.txt":    "new\n",
		"newest.bin": testutil.BinaryContent(),
	})
	base := time.Now().Add(-24 * time.Hour).Truncate(time.Second)
	testutil.Touch(t, filepath.Join(dir, "old.txt"), base)
	testutil.Touch(t, filepath.Join(dir, "middle.txt"), base.Add(time.Hour))
	testutil.Touch(t, filepath.Join(dir, "new.txt"), base.Add(2*time.Hour))
	testutil.Touch(t, filepath.Join(dir, "newest.bin"), base.Add(3*time.Hour))

	sel := envctx.Selection{Mode: envctx.SelectMostRecent}
	got := collect(t, New(sel, dir, false, &classify.MIMEClassifier{}))

	if len(got) != 1 {
		t.Fatalf("got %d candidates, want exactly 1", len(got))
	}
	if got[0].Display != "new.txt" {
		t.Errorf("picked %q, want the newest text file", got[0].Display)
	}
	if got[0].ModTime.IsZero() {
		t.Error("most-recent candidate should carry its modification time")
	}
}

func TestMostRecentTieBreaksLexically(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{
		"b.txt": "b\n",
		"a.txt": "a\n",
		"c.txt": "c\n",
	})
	when := time.Now().Add(-time.Hour).Truncate(time.Second)
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		testutil.Touch(t, filepath.Join(dir, name), when)
	}

	sel := envctx.Selection{Mode: envctx.SelectMostRecent}
	got := collect(t, New(sel, dir, false, &classify.MIMEClassifier{}))

	if len(got) != 1 || got[0].Display != "a.txt" {
		t.Errorf("candidates = %v, want the lexically smallest of the tie", displays(got))
	}
}

func TestMostRecentSkipsDirectories(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{
		"a.txt":     "a\n",
		"sub/b.txt": "b\n",
	})
	base := time.Now().Add(-24 * time.Hour).Truncate(time.Second)
	testutil.Touch(t, filepath.Join(dir, "a.txt"), base)
	testutil.Touch(t, filepath.Join(dir, "sub"), base.Add(time.Hour))

	sel := envctx.Selection{Mode: envctx.SelectMostRecent}
	got := collect(t, New(sel, dir, false, &classify.MIMEClassifier{}))

	if len(got) != 1 || got[0].Display != "a.txt" {
		t.Errorf("candidates = %v, want the file, never the newer directory", displays(got))
	}
}

func TestMostRecentEmptyDirectory(t *testing.T) {
	sel := envctx.Selection{Mode: envctx.SelectMostRecent}
	got := collect(t, New(sel, t.TempDir(), false, &classify.MIMEClassifier{}))
	if len(got) != 0 {
		t.Errorf("candidates = %v, want none for an empty directory", displays(got))
	}
}

func TestWalkContentsFirst(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{
		"a.txt":     "a\n",
		"sub/b.txt": "b\n",
	})

	sel := envctx.Selection{Mode: envctx.SelectWalk, WalkDepth: 2}
	got := collect(t, New(sel, dir, false, &classify.MIMEClassifier{}))
	if want := []string{"a.txt", filepath.Join("sub", "b.txt")}; !equalStrings(displays(got), want) {
		t.Errorf("candidates = %v, want %v", displays(got), want)
	}

	// With the filter lifted, directories surface after their contents and
	// the working directory itself closes the sequence.
	got = collect(t, New(sel, dir, true, &classify.MIMEClassifier{}))
	want := []string{"a.txt", filepath.Join("sub", "b.txt"), "sub", "."}
	if !equalStrings(displays(got), want) {
		t.Errorf("open-non-text candidates = %v, want %v", displays(got), want)
	}
}

func TestWalkDepthBound(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{
		"a.txt":          "a\n",
		"sub/b.txt":      "b\n",
		"sub/deep/c.txt": "c\n",
	})

	tests := []struct {
		depth int
		want  []string
	}{
		{1, []string{"a.txt"}},
		{2, []string{"a.txt", filepath.Join("sub", "b.txt")}},
		{3, []string{"a.txt", filepath.Join("sub", "b.txt"), filepath.Join("sub", "deep", "c.txt")}},
	}

	for _, tt := range tests {
		sel := envctx.Selection{Mode: envctx.SelectWalk, WalkDepth: tt.depth}
		got := collect(t, New(sel, dir, false, &classify.MIMEClassifier{}))
		if !equalStrings(displays(got), tt.want) {
			t.Errorf("depth %d: candidates = %v, want %v", tt.depth, displays(got), tt.want)
		}
	}
}

func TestWalkDoesNotFollowSymlinks(t *testing.T) {
	outside := testutil.WriteTree(t, map[string]string{"c.txt": "c\n"})
	dir := testutil.WriteTree(t, map[string]string{"a.txt": "a\n"})
	if err := os.Symlink(outside, filepath.Join(dir, "link")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	sel := envctx.Selection{Mode: envctx.SelectWalk, WalkDepth: 3}
	got := collect(t, New(sel, dir, false, &classify.MIMEClassifier{}))

	for _, c := range got {
		if filepath.Base(c.Display) == "c.txt" {
			t.Fatalf("walk descended into a symlinked directory: %v", displays(got))
		}
	}
	if want := []string{"a.txt"}; !equalStrings(displays(got), want) {
		t.Errorf("candidates = %v, want %v", displays(got), want)
	}
}

func TestWalkUnreadableRootFatal(t *testing.T) {
	sel := envctx.Selection{Mode: envctx.SelectWalk, WalkDepth: 1}
	src := New(sel, filepath.Join(t.TempDir(), "gone"), false, &classify.MIMEClassifier{})

	err := src.Each(func(Candidate) error { return nil })
	if !errors.Is(err, errors.ErrWalk) {
		t.Fatalf("Each() error = %v, want a walk error", err)
	}
	var walkErr *errors.WalkError
	if !errors.As(err, &walkErr) {
		t.Fatalf("error should be a *WalkError, got %T", err)
	}
	if walkErr.Dir == "" {
		t.Error("walk error should carry the offending directory")
	}
}

func TestMostRecentUnreadableDirFatal(t *testing.T) {
	sel := envctx.Selection{Mode: envctx.SelectMostRecent}
	src := New(sel, filepath.Join(t.TempDir(), "gone"), false, &classify.MIMEClassifier{})

	err := src.Each(func(Candidate) error { return nil })
	if !errors.Is(err, errors.ErrWalk) {
		t.Fatalf("Each() error = %v, want a walk error", err)
	}
}

type failingClassifier struct{}

func (failingClassifier) IsText(string) (bool, error) { return false, errors.New("probe exploded") }
func (failingClassifier) Name() string                { return "failing" }

func TestClassifierFailureFatal(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{"a.txt": "a\n"})
	sel := envctx.Selection{Mode: envctx.SelectExplicit, Files: []string{"a.txt"}}

	err := New(sel, dir, false, failingClassifier{}).Each(func(Candidate) error { return nil })
	if !errors.Is(err, errors.ErrClassification) {
		t.Fatalf("Each() error = %v, want a classification error", err)
	}
	var clErr *errors.ClassificationError
	if !errors.As(err, &clErr) {
		t.Fatalf("error should be a *ClassificationError, got %T", err)
	}
	if clErr.Probe != "failing" {
		t.Errorf("Probe = %q, want the classifier name", clErr.Probe)
	}
	if clErr.Path == "" {
		t.Error("classification error should carry the probed path")
	}
}

func TestEachStopsOnCallbackError(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{
		"a.txt": "a\n",
		"b.txt": "b\n",
	})
	sel := envctx.Selection{Mode: envctx.SelectExplicit, Files: []string{"a.txt", "b.txt"}}

	sentinel := errors.New("stop here")
	calls := 0
	err := New(sel, dir, false, &classify.MIMEClassifier{}).Each(func(Candidate) error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("Each() error = %v, want the callback's error", err)
	}
	if calls != 1 {
		t.Errorf("callback ran %d times, want iteration to stop at the first error", calls)
	}
}

func TestNewRequiresClassifier(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("New should panic on a nil classifier")
		}
	}()
	New(envctx.Selection{}, "/tmp", false, nil)
}
