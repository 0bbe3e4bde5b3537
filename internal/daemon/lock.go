package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// LockInfo describes the owner of a PID lock.
type LockInfo struct {
	PID       int       `json:"pid"`
	Root      string    `json:"root"`
	StartedAt time.Time `json:"started_at"`
}

// AcquireLock creates the lock file at path. Returns nil on success.
// If the lock exists and the owning PID is dead, the stale lock is reclaimed.
func AcquireLock(path, root string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}

	info := LockInfo{
		PID:       os.Getpid(),
		Root:      root,
		StartedAt: time.Now(),
	}

	err := writeLock(path, &info)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("create lock %s: %w", path, err)
	}

	existing, readErr := ReadLock(path)
	if readErr == nil && isProcessAlive(existing.PID) {
		return fmt.Errorf("purgelogs already running as PID %d since %s (root %s)",
			existing.PID, existing.StartedAt.Format(time.RFC3339), existing.Root)
	}

	// stale or unreadable lock
	slog.Warn("reclaiming stale lock", "path", path, "error", readErr)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale lock: %w", err)
	}
	if err := writeLock(path, &info); err != nil {
		return fmt.Errorf("acquire after stale removal: %w", err)
	}
	return nil
}

// ReleaseLock removes the lock file. It is idempotent.
func ReleaseLock(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to release lock", "path", path, "error", err)
	}
}

// ReadLock reads the lock file at path.
func ReadLock(path string) (*LockInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse lock: %w", err)
	}
	return &info, nil
}

// writeLock atomically creates the lock file using O_CREATE|O_EXCL.
func writeLock(path string, info *LockInfo) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	encErr := json.NewEncoder(f).Encode(info)
	closeErr := f.Close()
	if encErr != nil {
		return encErr
	}
	return closeErr
}

// isProcessAlive checks if a process with the given PID exists and is running.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// signal 0 checks existence without actually sending a signal
	return proc.Signal(syscall.Signal(0)) == nil
}
