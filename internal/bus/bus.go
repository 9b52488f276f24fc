// Package bus carries cross-process coordination state through files: the
// per-session tool counter, the daemon PID file, and the session id. Hook
// processes are short-lived and share no memory with the daemon; every piece
// of state here must survive a process boundary and a crash.
//
// All writes land atomically via a temp file in the target directory plus
// rename, so a reader never observes a partial write.
package bus

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// writeAtomic stages content next to path and renames it into place.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to stage write for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close staged %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to commit %s: %w", path, err)
	}
	return nil
}

// ============================================================================
// PID FILE
// ============================================================================

// WritePIDFile records pid as the only content of path.
func WritePIDFile(path string, pid int) error {
	return writeAtomic(path, []byte(strconv.Itoa(pid)))
}

// ReadPIDFile parses the decimal pid stored at path.
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("malformed pid file %s: %w", path, err)
	}
	return pid, nil
}

// RemovePIDFile deletes the pid file; a missing file is not an error.
func RemovePIDFile(path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// IsRunning reports the recorded pid and whether it names a live process:
// the file must parse and signal 0 must be deliverable.
func IsRunning(path string) (int, bool) {
	pid, err := ReadPIDFile(path)
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, ProcessAlive(pid)
}

// ProcessAlive probes a pid with signal 0.
func ProcessAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// ============================================================================
// SESSION ID FILE
// ============================================================================

// WriteSessionID records the current session id atomically.
func WriteSessionID(path, id string) error {
	return writeAtomic(path, []byte(id))
}

// ReadSessionID returns the recorded session id, or "" when the file is
// absent or unreadable.
func ReadSessionID(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
