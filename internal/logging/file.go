package logging

import (
	"fmt"
	"os"
	"sync"

	"github.com/cloudhome/cloudhome/internal/utils"
)

// File is an append-only log file that can be reopened in place after it has been
// renamed away by the Rotator.
type File struct {
	path string
	mu   sync.Mutex
	f    *os.File
}

func OpenFile(path string) (*File, error) {
	if err := utils.EnsureParent(path); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	lf := &File{path: path}
	if err := lf.open(); err != nil {
		return nil, err
	}
	return lf, nil
}

func (lf *File) Path() string {
	return lf.path
}

func (lf *File) open() error {
	f, err := os.OpenFile(lf.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", lf.path, err)
	}
	lf.f = f
	return nil
}

func (lf *File) Write(p []byte) (int, error) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if lf.f == nil {
		return 0, os.ErrClosed
	}
	return lf.f.Write(p)
}

// Reopen closes the current handle and opens lf.path again, creating it if needed.
func (lf *File) Reopen() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if lf.f != nil {
		lf.f.Close()
		lf.f = nil
	}
	return lf.open()
}

func (lf *File) Close() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if lf.f == nil {
		return nil
	}
	err := lf.f.Close()
	lf.f = nil
	return err
}
