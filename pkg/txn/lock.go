package txn

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"rookpkg/pkg/helper/errors"
)

// Lock is the advisory exclusive lock enforcing that at most one
// transaction may be InProgress per root filesystem. Acquisition is
// blocking up to a configurable timeout; on timeout the caller gets a
// LockContention error naming the holding PID when discoverable.
type Lock struct {
	fl   *flock.Flock
	path string
}

// NewLock returns the lock for the given root filesystem, at its
// well-known reserved path.
func NewLock(root string) *Lock {
	path := filepath.Join(root, "var/lib/rookpkg/rookpkg.lock")
	return &Lock{fl: flock.New(path), path: path}
}

// Acquire blocks until the lock is held or timeout elapses. On success it
// stamps the lock file with this process's PID so a contending process can
// name the holder.
func (l *Lock) Acquire(ctx context.Context, timeout time.Duration) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return errors.Wrap(errors.ErrFilesystemIO, "creating lock directory: %v", err)
	}

	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	locked, err := l.fl.TryLockContext(lockCtx, 50*time.Millisecond)
	if err != nil || !locked {
		return errors.NewLockContention(l.readHolderPID())
	}

	_ = os.WriteFile(l.path, []byte(strconv.Itoa(os.Getpid())), 0o644)
	return nil
}

// Release drops the lock.
func (l *Lock) Release() error {
	if err := l.fl.Unlock(); err != nil {
		return errors.Wrap(errors.ErrFilesystemIO, "releasing lock: %v", err)
	}
	return nil
}

// readHolderPID best-effort reads the PID the current holder stamped into
// the lock file. A crashed holder may have left a stale PID; callers treat
// this as advisory, best-effort information only.
func (l *Lock) readHolderPID() int {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}
