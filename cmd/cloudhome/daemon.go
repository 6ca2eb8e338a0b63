package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/cloudhome/cloudhome/internal/blob"
	"github.com/cloudhome/cloudhome/internal/config"
	"github.com/cloudhome/cloudhome/internal/daemon"
	"github.com/cloudhome/cloudhome/internal/local"
	"github.com/cloudhome/cloudhome/internal/logging"
	"github.com/cloudhome/cloudhome/internal/manifest"
	"github.com/cloudhome/cloudhome/internal/reconcile"
	"github.com/cloudhome/cloudhome/internal/version"
	"github.com/cloudhome/cloudhome/internal/watch"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/spf13/cobra"
)

func runDaemon(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.Close()

	buckets, err := a.requireBuckets(nil)
	if err != nil {
		return err
	}

	// all good now, show header
	cmd.SilenceUsage = true
	showHeader(cmd.OutOrStdout(), a.cfg)

	lock := daemon.NewLock(a.cfg.CloudHome)
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer lock.Release()

	rec, err := newReconciler(cmd.Context(), a.cfg, a.log.Logger)
	if err != nil {
		return err
	}

	dcfg := daemon.Config{
		Targets:  targets(a.cfg, buckets),
		Interval: a.cfg.SyncInterval,
		Backoff:  a.cfg.BackoffInterval,
	}

	var watcher *watch.Watcher
	if a.cfg.Watch {
		watcher = watch.New(watchDirs(a.cfg, buckets), a.log.Logger)
		dcfg.Triggers = watcher.Triggers()
	}

	d := daemon.New(rec, dcfg, a.log.Logger)
	if a.log.File != nil {
		d.AddHelper(logging.NewRotator(a.log.File, a.log.Logger))
	}
	if watcher != nil {
		d.AddHelper(watcher)
	}

	defer a.log.Info("Bye!")
	return d.Start(cmd.Context())
}

// newStore builds the bucket accessor. Tests swap it for an in-memory bucket.
var newStore = func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (reconcile.MetadataStore, error) {
	client, err := blob.NewClientFromConfig(ctx, s3Config(cfg), logger)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func newReconciler(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*reconcile.Reconciler, error) {
	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	return reconcile.New(store, local.NewInspector(), logger), nil
}

// s3Config prefers static keys over the shared-config profile when both are set.
func s3Config(cfg *config.Config) *blob.S3Config {
	if cfg.AccessKey == "" {
		c := blob.WithProfile(cfg.CredentialProfile, cfg.Region)
		c.Endpoint = cfg.Endpoint
		return c
	}

	c := blob.WithMinioConfig(cfg.Endpoint, cfg.AccessKey, cfg.SecretKey)
	if cfg.Region != "" {
		c.Region = cfg.Region
	}
	return c
}

func targets(cfg *config.Config, buckets []string) []reconcile.Target {
	manifests := cfg.BucketManifests(buckets...)
	out := make([]reconcile.Target, 0, len(manifests))
	for _, bm := range manifests {
		out = append(out, reconcile.Target{Bucket: bm.Bucket, ManifestPath: bm.ManifestPath})
	}
	return out
}

// watchDirs is every bucket folder plus any manifest root that lives elsewhere.
func watchDirs(cfg *config.Config, buckets []string) []string {
	seen := mapset.NewThreadUnsafeSet[string]()
	dirs := make([]string, 0, len(buckets))
	add := func(dir string) {
		if !seen.Contains(dir) {
			seen.Add(dir)
			dirs = append(dirs, dir)
		}
	}

	for _, bm := range cfg.BucketManifests(buckets...) {
		add(filepath.Dir(bm.ManifestPath))

		m, err := manifest.Load(bm.ManifestPath)
		if err != nil {
			continue
		}
		if root, err := m.RootDir(); err == nil {
			add(root)
		}
	}
	return dirs
}

func showHeader(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, cyan.Render(version.AppName)+" "+gray.Render(version.Short()))
	fmt.Fprintln(w, gray.Render("cloudhome ")+cfg.CloudHome)
	for _, b := range cfg.BucketNames {
		fmt.Fprintln(w, gray.Render("bucket    ")+b)
	}
	fmt.Fprintln(w)
}
