package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"

	"engram/internal/logging"
)

// ============================================================================
// BACKUP / RESTORE
// ============================================================================
//
// Backups cover the metadata store only. The vector index is derived state;
// after a restore, a reindex run repairs any drift.

// BackupInfo describes one snapshot file.
type BackupInfo struct {
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// Backup writes a consistent snapshot of the database into dir using VACUUM
// INTO and returns the snapshot path. Concurrent backup and restore across
// processes are excluded by a lock file next to the live database.
func (s *Store) Backup(dir string) (string, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Backup")
	defer timer.Stop()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup dir: %w", err)
	}

	lock := flock.New(s.lockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return "", fmt.Errorf("acquiring backup lock: %w", err)
	}
	if !locked {
		return "", fmt.Errorf("another backup or restore is in progress")
	}
	defer func() { _ = lock.Unlock() }()

	name := fmt.Sprintf("engram-%s.db", time.Now().UTC().Format("20060102-150405"))
	dest := filepath.Join(dir, name)
	if _, err := os.Stat(dest); err == nil {
		return "", fmt.Errorf("backup %s already exists", dest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`VACUUM INTO ?`, dest); err != nil {
		return "", fmt.Errorf("vacuum into failed: %w", err)
	}
	logging.Store("Backed up metadata store to %s", dest)
	return dest, nil
}

// RestoreBackup replaces the live database with the given snapshot. The
// connection is closed, the snapshot copied into place, and the connection
// reopened. Vector-store state is untouched; run a reindex afterwards.
func (s *Store) RestoreBackup(backupPath string) error {
	timer := logging.StartTimer(logging.CategoryStore, "RestoreBackup")
	defer timer.Stop()

	if _, err := os.Stat(backupPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("backup %s: %w", backupPath, ErrNotFound)
		}
		return fmt.Errorf("failed to stat backup: %w", err)
	}

	lock := flock.New(s.lockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring backup lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another backup or restore is in progress")
	}
	defer func() { _ = lock.Unlock() }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close live database: %w", err)
	}
	// Drop stale WAL sidecars so the restored file is read as-is.
	os.Remove(s.dbPath + "-wal")
	os.Remove(s.dbPath + "-shm")

	if err := copyFile(backupPath, s.dbPath); err != nil {
		return fmt.Errorf("failed to copy backup into place: %w", err)
	}

	db, err := openDB(s.dbPath)
	if err != nil {
		return fmt.Errorf("failed to reopen database: %w", err)
	}
	s.db = db
	logging.Store("Restored metadata store from %s", backupPath)
	return nil
}

// ListBackups enumerates snapshots in dir, newest first.
func ListBackups(dir string) ([]BackupInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup dir: %w", err)
	}

	var backups []BackupInfo
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".db" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			Path:      filepath.Join(dir, entry.Name()),
			SizeBytes: info.Size(),
			CreatedAt: info.ModTime().UTC(),
		})
	}
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

func (s *Store) lockPath() string {
	return filepath.Join(filepath.Dir(s.dbPath), ".backup.lock")
}

// copyFile writes src to dst via a temp file and rename so a torn copy never
// lands at the destination path.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".restore-tmp"
	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
