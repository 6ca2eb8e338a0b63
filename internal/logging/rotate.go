package logging

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	DefaultRotateInterval  = 64 * time.Second
	DefaultRotateThreshold = 128 * 1024 * 1024
	archiveSuffix          = ".archived"
)

// Rotator periodically moves an oversized log file to <path>.archived and reopens the live
// file. Only one archive is kept; each rotation overwrites the previous one.
type Rotator struct {
	file      *File
	threshold int64
	interval  time.Duration
	logger    *slog.Logger
}

func NewRotator(file *File, logger *slog.Logger) *Rotator {
	return &Rotator{
		file:      file,
		threshold: DefaultRotateThreshold,
		interval:  DefaultRotateInterval,
		logger:    logger.With("component", "logrotate"),
	}
}

func (r *Rotator) SetThreshold(bytes int64) {
	r.threshold = bytes
}

func (r *Rotator) SetInterval(interval time.Duration) {
	r.interval = interval
}

// Run checks the file once per interval until ctx is cancelled.
func (r *Rotator) Run(ctx context.Context) error {
	timer := time.NewTimer(r.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			if _, err := r.RotateIfTooLarge(); err != nil {
				r.logger.Error("log rotation", "error", err)
			}
			timer.Reset(r.interval)
		}
	}
}

// RotateIfTooLarge performs a single check, returning true when the file was rotated.
func (r *Rotator) RotateIfTooLarge() (bool, error) {
	path := r.file.Path()
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, r.file.Reopen()
	} else if err != nil {
		return false, fmt.Errorf("stat log file: %w", err)
	}

	size := info.Size()
	if size <= r.threshold {
		r.logger.Debug("log file below threshold", "path", path, "size", humanize.IBytes(uint64(size)))
		return false, nil
	}

	archive := path + archiveSuffix
	if err := os.Rename(path, archive); err != nil {
		return false, fmt.Errorf("archive log file: %w", err)
	}
	if err := r.file.Reopen(); err != nil {
		return true, err
	}
	r.logger.Info("rotated log file", "path", path, "archive", archive, "size", humanize.IBytes(uint64(size)))
	return true, nil
}
