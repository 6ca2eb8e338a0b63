// Package watch turns filesystem writes under the sync roots into early pass triggers.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudhome/cloudhome/internal/utils"
	"github.com/rjeczalik/notify"
)

const (
	DefaultDebounce = 200 * time.Millisecond
	eventBufferSize = 64
)

// Watcher emits at most one pending signal on Triggers per burst of writes.
type Watcher struct {
	dirs     []string
	debounce time.Duration
	triggers chan struct{}
	ready    chan struct{}
	logger   *slog.Logger
}

func New(dirs []string, logger *slog.Logger) *Watcher {
	return &Watcher{
		dirs:     dirs,
		debounce: DefaultDebounce,
		triggers: make(chan struct{}, 1),
		ready:    make(chan struct{}),
		logger:   logger.With("component", "watcher"),
	}
}

func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Triggers never closes.
func (w *Watcher) Triggers() <-chan struct{} {
	return w.triggers
}

// Ready is closed once every directory is being watched.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	raw := make(chan notify.EventInfo, eventBufferSize)
	defer notify.Stop(raw)

	for _, dir := range w.dirs {
		if err := utils.EnsureDir(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		if err := notify.Watch(filepath.Join(dir, "..."), raw, notify.Write|notify.Create); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		w.logger.Info("watching", "dir", dir)
	}
	close(w.ready)

	// one timer for all paths: a burst anywhere collapses into a single pass
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-raw:
			if ignored(event.Path()) {
				continue
			}
			w.logger.Debug("change", "event", event.Event(), "path", event.Path())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			select {
			case w.triggers <- struct{}{}:
			default:
				// a trigger is already pending
			}
		}
	}
}

// ignored filters the temp files written while saving manifests and downloading objects,
// and the process lock.
func ignored(path string) bool {
	base := filepath.Base(path)
	if !strings.HasPrefix(base, ".") {
		return false
	}
	return strings.Contains(base, ".tmp-") ||
		strings.Contains(base, ".download-") ||
		base == ".cloudhome.lock"
}
