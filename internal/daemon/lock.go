package daemon

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cloudhome/cloudhome/internal/utils"
	"github.com/gofrs/flock"
)

const lockFile = ".cloudhome.lock"

var ErrLocked = errors.New("cloudhome directory locked by another process")

// Lock keeps a second process from writing the same manifests.
type Lock struct {
	flock *flock.Flock
}

func NewLock(dir string) *Lock {
	return &Lock{flock: flock.New(filepath.Join(dir, lockFile))}
}

func (l *Lock) Path() string {
	return l.flock.Path()
}

// Acquire takes the lock without blocking. It returns ErrLocked if another process holds it.
func (l *Lock) Acquire() error {
	if err := utils.EnsureParent(l.flock.Path()); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	locked, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return ErrLocked
	}
	return nil
}

// Release unlocks. The file stays so every process locks the same inode.
func (l *Lock) Release() error {
	if !l.flock.Locked() {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
