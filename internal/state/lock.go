package state

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// RunLock guards a storage directory against concurrent pipeline runs.
type RunLock struct {
	lock *flock.Flock
	path string
}

// AcquireLock takes an exclusive advisory lock on path. It fails immediately
// when another process already holds it.
func AcquireLock(path string) (*RunLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("state: ensure lock dir: %w", err)
	}

	lock := flock.New(path)
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("state: acquire lock %s: %w", path, err)
	}
	if !acquired {
		return nil, fmt.Errorf("state: another run holds the lock at %s", path)
	}
	return &RunLock{lock: lock, path: path}, nil
}

// Release drops the lock and removes the lock file.
func (l *RunLock) Release() {
	if l == nil || l.lock == nil {
		return
	}
	_ = l.lock.Unlock()
	_ = os.Remove(l.path)
	l.lock = nil
}
