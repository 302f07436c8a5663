package persist

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirLock is the advisory per-directory lock spec.md §5 describes: the
// on-disk cache directory is owned by whichever indexer/registry wrote
// it, and this lock file prevents two processes from racing to rebuild
// the same artifact. It is advisory only — nothing stops another process
// from touching dir without going through this type; it exists to fail
// the second of two concurrent rebuilders loudly rather than silently.
// A lock left behind by a crashed process is not auto-reclaimed; an
// operator clears a stale dir/.lock by hand.
type DirLock struct {
	path string
	file *os.File
}

// AcquireDirLock creates dir/.lock exclusively. Returns an error if the
// lock is already held.
func AcquireDirLock(dir string) (*DirLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	path := filepath.Join(dir, ".lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("acquire lock %q: %w", path, err)
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	return &DirLock{path: path, file: f}, nil
}

// Release removes the lock file. Idempotent.
func (l *DirLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.file.Close()
	err := os.Remove(l.path)
	l.file = nil
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
