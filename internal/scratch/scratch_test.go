package scratch

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvopen/nvopen/internal/testutil"
)

func writeArtifact(t *testing.T, dir, name, content string, mtime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	testutil.Touch(t, path, mtime)
	return path
}

func sessionByID(t *testing.T, sessions []Session, id string) Session {
	t.Helper()
	for _, sess := range sessions {
		if sess.ID == id {
			return sess
		}
	}
	t.Fatalf("No session %q in %d sessions", id, len(sessions))
	return Session{}
}

func TestScanGroupsArtifactsBySession(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-3 * time.Hour)
	newer := time.Now().Add(-1 * time.Hour)

	writeArtifact(t, dir, "aaa.log", "log line\n", old)
	writeArtifact(t, dir, "aaa-read", "piped input", newer)
	writeArtifact(t, dir, "aaa", "", old)
	writeArtifact(t, dir, "bbb.log", "x", old)

	sessions, err := Scan(dir)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("Scan() sessions = %d, want 2", len(sessions))
	}

	aaa := sessionByID(t, sessions, "aaa")
	if len(aaa.Artifacts) != 3 {
		t.Errorf("Session aaa artifacts = %d, want 3", len(aaa.Artifacts))
	}
	if want := int64(len("log line\n") + len("piped input")); aaa.Bytes != want {
		t.Errorf("Session aaa bytes = %d, want %d", aaa.Bytes, want)
	}
	if !aaa.LastUsed.Equal(newer) {
		t.Errorf("Session aaa LastUsed = %v, want %v", aaa.LastUsed, newer)
	}
	if aaa.Active {
		t.Error("Session aaa should not be active, no socket exists")
	}

	bbb := sessionByID(t, sessions, "bbb")
	if len(bbb.Artifacts) != 1 {
		t.Errorf("Session bbb artifacts = %d, want 1", len(bbb.Artifacts))
	}

	// Newest first.
	if sessions[0].ID != "aaa" {
		t.Errorf("Scan() first session = %s, want aaa", sessions[0].ID)
	}
}

func TestScanMissingDirectory(t *testing.T) {
	sessions, err := Scan(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("Scan() on missing dir error = %v", err)
	}
	if sessions != nil {
		t.Errorf("Scan() on missing dir = %v, want nil", sessions)
	}
}

func TestScanSkipsSubdirectories(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatalf("Failed to create subdirectory: %v", err)
	}
	writeArtifact(t, dir, "ccc.log", "x", time.Now())

	sessions, err := Scan(dir)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != "ccc" {
		t.Errorf("Scan() = %v, want only session ccc", sessions)
	}
}

func TestScanLiveSocketMarksActive(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "live")

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Skipf("Cannot listen on unix socket: %v", err)
	}
	defer func() { _ = listener.Close() }()

	sessions, err := Scan(dir)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	live := sessionByID(t, sessions, "live")
	if !live.Active {
		t.Error("Session with listening socket should be active")
	}
	if len(live.Artifacts) != 1 || !live.Artifacts[0].IsSocket {
		t.Errorf("Socket artifact not recognized: %+v", live.Artifacts)
	}
}

func TestScanStaleSocketInactive(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "gone")

	listener, err := net.ListenUnix("unix", &net.UnixAddr{Name: socketPath, Net: "unix"})
	if err != nil {
		t.Skipf("Cannot listen on unix socket: %v", err)
	}
	listener.SetUnlinkOnClose(false)
	if err := listener.Close(); err != nil {
		t.Fatalf("Failed to close listener: %v", err)
	}

	sessions, err := Scan(dir)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	gone := sessionByID(t, sessions, "gone")
	if gone.Active {
		t.Error("Session with dead socket should not be active")
	}
	if len(gone.Artifacts) != 1 || !gone.Artifacts[0].IsSocket {
		t.Errorf("Stale socket artifact not recognized: %+v", gone.Artifacts)
	}
}

func TestStaleFiltersByAgeAndActivity(t *testing.T) {
	now := time.Now()
	sessions := []Session{
		{ID: "active-old", Active: true, LastUsed: now.Add(-100 * time.Hour)},
		{ID: "idle-new", LastUsed: now.Add(-time.Minute)},
		{ID: "idle-old", LastUsed: now.Add(-100 * time.Hour)},
	}

	stale := Stale(sessions, time.Hour, false)
	if len(stale) != 1 || stale[0].ID != "idle-old" {
		t.Errorf("Stale(maxAge=1h) = %v, want only idle-old", ids(stale))
	}

	stale = Stale(sessions, time.Hour, true)
	if len(stale) != 2 {
		t.Fatalf("Stale(all) = %v, want idle-new and idle-old", ids(stale))
	}
	for _, sess := range stale {
		if sess.Active {
			t.Errorf("Stale(all) returned active session %s", sess.ID)
		}
	}
}

func ids(sessions []Session) []string {
	out := make([]string, len(sessions))
	for i, sess := range sessions {
		out[i] = sess.ID
	}
	return out
}

func TestSweepRemovesArtifacts(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-72 * time.Hour)
	writeArtifact(t, dir, "ddd.log", "12345", old)
	writeArtifact(t, dir, "ddd-read", "678", old)

	sessions, err := Scan(dir)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	report := Sweep(Stale(sessions, 48*time.Hour, false))

	if report.SessionsRemoved != 1 {
		t.Errorf("Sweep() SessionsRemoved = %d, want 1", report.SessionsRemoved)
	}
	if report.FilesRemoved != 2 {
		t.Errorf("Sweep() FilesRemoved = %d, want 2", report.FilesRemoved)
	}
	if report.BytesReclaimed != 8 {
		t.Errorf("Sweep() BytesReclaimed = %d, want 8", report.BytesReclaimed)
	}
	if len(report.Errors) != 0 {
		t.Errorf("Sweep() errors = %v, want none", report.Errors)
	}
	if _, err := os.Stat(filepath.Join(dir, "ddd.log")); !os.IsNotExist(err) {
		t.Error("Sweep() left ddd.log behind")
	}
}

func TestSweepRecordsFailures(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-72 * time.Hour)
	writeArtifact(t, dir, "eee.log", "abc", old)
	vanishing := writeArtifact(t, dir, "eee-read", "def", old)

	sessions, err := Scan(dir)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if err := os.Remove(vanishing); err != nil {
		t.Fatalf("Failed to remove artifact: %v", err)
	}

	report := Sweep(sessions)
	if report.SessionsRemoved != 0 {
		t.Errorf("Sweep() SessionsRemoved = %d, want 0 for a partial removal", report.SessionsRemoved)
	}
	if report.FilesRemoved != 1 {
		t.Errorf("Sweep() FilesRemoved = %d, want 1", report.FilesRemoved)
	}
	if len(report.Errors) != 1 {
		t.Errorf("Sweep() errors = %v, want exactly one", report.Errors)
	}
}

func TestSessionIDForSuffixes(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"f81d4fae-7dec.log", "f81d4fae-7dec"},
		{"f81d4fae-7dec-read", "f81d4fae-7dec"},
		{"f81d4fae-7dec", "f81d4fae-7dec"},
		{"stray.txt", "stray.txt"},
	}
	for _, tt := range tests {
		if got := sessionIDFor(tt.name); got != tt.want {
			t.Errorf("sessionIDFor(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
