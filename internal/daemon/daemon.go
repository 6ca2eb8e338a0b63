// Package daemon drives reconciliation passes on a fixed cadence until shutdown.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudhome/cloudhome/internal/blob"
	"github.com/cloudhome/cloudhome/internal/reconcile"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultInterval = time.Second
	DefaultBackoff  = 10 * time.Second
)

// Passer runs one reconciliation pass over all targets.
type Passer interface {
	RunPass(ctx context.Context, targets []reconcile.Target) (*reconcile.PassStats, error)
}

// Runner is a background helper that lives as long as the daemon.
type Runner interface {
	Run(ctx context.Context) error
}

type Config struct {
	Targets  []reconcile.Target
	Interval time.Duration
	Backoff  time.Duration
	// Triggers, when set, start the next pass early.
	Triggers <-chan struct{}
}

type Daemon struct {
	passer  Passer
	config  Config
	helpers []Runner
	logger  *slog.Logger
}

func New(passer Passer, config Config, logger *slog.Logger) *Daemon {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.Backoff <= 0 {
		config.Backoff = DefaultBackoff
	}
	return &Daemon{
		passer: passer,
		config: config,
		logger: logger.With("component", "daemon"),
	}
}

// AddHelper registers r to run alongside the poll loop.
func (d *Daemon) AddHelper(r Runner) {
	d.helpers = append(d.helpers, r)
}

// Start runs the poll loop and every helper until ctx is cancelled or one of them fails.
func (d *Daemon) Start(ctx context.Context) error {
	d.logger.Info("daemon start", "manifests", len(d.config.Targets), "interval", d.config.Interval)

	eg, egCtx := errgroup.WithContext(ctx)
	for _, helper := range d.helpers {
		eg.Go(func() error {
			return helper.Run(egCtx)
		})
	}
	eg.Go(func() error {
		return d.Run(egCtx)
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		d.logger.Error("daemon failure", "error", err)
		return err
	}

	d.logger.Info("daemon stopped")
	return nil
}

// Run loops passes until ctx is cancelled. Connectivity failures back off and retry the
// whole pass; any other pass error is returned.
func (d *Daemon) Run(ctx context.Context) error {
	for {
		_, err := d.passer.RunPass(ctx, d.config.Targets)
		switch {
		case err == nil:
			if !d.wait(ctx, d.config.Interval, d.config.Triggers) {
				return nil
			}
		case ctx.Err() != nil:
			return nil
		case blob.IsConnectivity(err):
			d.logger.Warn("store unreachable, retrying", "backoff", d.config.Backoff, "error", err)
			// local edits do not cut a backoff short
			if !d.wait(ctx, d.config.Backoff, nil) {
				return nil
			}
		default:
			return fmt.Errorf("sync pass: %w", err)
		}
	}
}

// wait blocks for delay or until a trigger arrives. It returns false once ctx is done.
func (d *Daemon) wait(ctx context.Context, delay time.Duration, triggers <-chan struct{}) bool {
	// a fresh timer per wait so slow passes never queue ticks
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	case <-triggers:
		d.logger.Debug("pass triggered by local change")
	}
	return true
}
