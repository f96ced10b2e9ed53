// Package scratch inventories the per-session files nvopen leaves in its
// scratch directory and removes the ones no live session still needs.
//
// A run never cleans up after itself: the log must survive for post-hoc
// reading and a keep-mode run cannot know when its capture file stops
// mattering. Sweeping is therefore a separate, explicit operation.
package scratch

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// socketProbeTimeout bounds the liveness dial on a session socket. A stale
// socket file refuses immediately; a live editor accepts immediately.
const socketProbeTimeout = 250 * time.Millisecond

// Artifact is one file a session left behind: its log, the listen socket of
// a launched editor, or the piped-input capture.
type Artifact struct {
	Path     string
	Size     int64
	ModTime  time.Time
	IsSocket bool
}

// Session groups the artifacts that share one session id.
type Session struct {
	ID        string
	Artifacts []Artifact

	// LastUsed is the newest artifact modification time.
	LastUsed time.Time

	// Bytes is the total artifact size.
	Bytes int64

	// Active means the session socket still accepts connections, so the
	// launched editor is still running. Active sessions are never swept.
	Active bool
}

// Scan inventories a scratch directory, grouping files by session id.
// Sessions come back newest first. A missing directory is an empty
// inventory, not an error.
func Scan(dir string) ([]Session, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read scratch directory: %w", err)
	}

	byID := make(map[string]*Session)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue // removed between listing and stat
		}

		name := entry.Name()
		id := sessionIDFor(name)
		sess, ok := byID[id]
		if !ok {
			sess = &Session{ID: id}
			byID[id] = sess
		}

		art := Artifact{
			Path:     filepath.Join(dir, name),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
			IsSocket: info.Mode()&os.ModeSocket != 0,
		}
		sess.Artifacts = append(sess.Artifacts, art)
		sess.Bytes += art.Size
		if art.ModTime.After(sess.LastUsed) {
			sess.LastUsed = art.ModTime
		}
		if art.IsSocket && probeSocket(art.Path) {
			sess.Active = true
		}
	}

	sessions := make([]Session, 0, len(byID))
	for _, sess := range byID {
		sessions = append(sessions, *sess)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].LastUsed.Equal(sessions[j].LastUsed) {
			return sessions[i].LastUsed.After(sessions[j].LastUsed)
		}
		return sessions[i].ID < sessions[j].ID
	})
	return sessions, nil
}

// sessionIDFor strips the known artifact suffixes. A name without one is the
// session id itself (the launch socket).
func sessionIDFor(name string) string {
	if strings.HasSuffix(name, ".log") {
		return strings.TrimSuffix(name, ".log")
	}
	if strings.HasSuffix(name, "-read") {
		return strings.TrimSuffix(name, "-read")
	}
	return name
}

// probeSocket reports whether a unix socket path still accepts connections.
func probeSocket(path string) bool {
	conn, err := net.DialTimeout("unix", path, socketProbeTimeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Stale filters an inventory down to the sessions a sweep may remove:
// inactive ones last used before the age cutoff, or every inactive one when
// all is set.
func Stale(sessions []Session, maxAge time.Duration, all bool) []Session {
	cutoff := time.Now().Add(-maxAge)

	var stale []Session
	for _, sess := range sessions {
		if sess.Active {
			continue
		}
		if !all && !sess.LastUsed.Before(cutoff) {
			continue
		}
		stale = append(stale, sess)
	}
	return stale
}

// Report is the outcome of one sweep.
type Report struct {
	SessionsRemoved int
	FilesRemoved    int
	BytesReclaimed  int64
	Errors          []string
}

// Sweep removes every artifact of the given sessions. Failures are recorded
// per file and never stop the sweep; a session counts as removed only when
// all of its files went.
func Sweep(sessions []Session) Report {
	var report Report
	for _, sess := range sessions {
		clean := true
		for _, art := range sess.Artifacts {
			if err := os.Remove(art.Path); err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("failed to remove %s: %v", art.Path, err))
				clean = false
				continue
			}
			report.FilesRemoved++
			report.BytesReclaimed += art.Size
		}
		if clean {
			report.SessionsRemoved++
		}
	}
	return report
}
