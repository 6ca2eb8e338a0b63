// Package reconcile keeps the keys tracked by a manifest in agreement between a local root
// and a bucket.
//
// A pass visits every manifest in order. For each manifest the manifest file itself is
// synchronized first, then every tracked key is refreshed on both sides and exactly one
// action is taken: skip, download, upload or nothing. A manifest rewritten during the pass
// is synchronized once more at the end.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/cloudhome/cloudhome/internal/blob"
	"github.com/cloudhome/cloudhome/internal/manifest"
	"github.com/google/uuid"
)

// ErrManifestUnknown means the bucket's manifest could not be checked, so a fresh local one
// would risk replacing it.
var ErrManifestUnknown = errors.New("bucket manifest state unknown")

// MetadataStore is the remote side of a key.
type MetadataStore interface {
	// HeadObject returns manifest.MissingRemote() with a nil error for absent objects.
	HeadObject(ctx context.Context, bucket, key string) (*manifest.RemoteMetadata, error)
	Download(ctx context.Context, bucket, key, dest string) error
	Upload(ctx context.Context, bucket, key, src string) error
}

// LocalInspector is the local side of a key.
type LocalInspector interface {
	Inspect(path string) (manifest.LocalMetadata, error)
}

// Target is one manifest to reconcile.
type Target struct {
	Bucket       string
	ManifestPath string
}

type Reconciler struct {
	store  MetadataStore
	local  LocalInspector
	logger *slog.Logger
}

func New(store MetadataStore, local LocalInspector, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		local:  local,
		logger: logger.With("component", "reconcile"),
	}
}

// RunPass reconciles every target once, in order. It stops at the first error; an error
// wrapping blob.ErrConnectivity means the store could not be reached and the pass may be
// retried as a whole.
func (r *Reconciler) RunPass(ctx context.Context, targets []Target) (*PassStats, error) {
	stats := &PassStats{ID: uuid.NewString()}
	start := time.Now()
	logger := r.logger.With("pass", stats.ID)

	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := r.reconcileManifest(ctx, logger, target, stats); err != nil {
			return stats, fmt.Errorf("bucket %s: %w", target.Bucket, err)
		}
		stats.Manifests++
	}

	stats.Duration = time.Since(start)
	attrs := []any{
		"manifests", stats.Manifests,
		"keys", stats.Keys,
		"downloads", stats.Downloads,
		"uploads", stats.Uploads,
		"skipped", stats.Skipped,
		"noops", stats.NoOps,
		"conflicts", stats.Conflicts,
		"remoteErrors", stats.RemoteErrors,
		"failures", stats.Failures,
		"manifestWrites", stats.ManifestWrites,
		"tsTotal", stats.Duration,
	}
	if stats.HasChanges() {
		logger.Info("pass complete", attrs...)
	} else {
		logger.Debug("pass complete", attrs...)
	}
	return stats, nil
}

// ReconcileManifest runs a single target outside of a full pass.
func (r *Reconciler) ReconcileManifest(ctx context.Context, target Target) (*PassStats, error) {
	return r.RunPass(ctx, []Target{target})
}

// Bootstrap returns the manifest of target for editing. Without a local copy the bucket's
// manifest is downloaded first; if the bucket has none either, an empty unsaved manifest is
// returned.
func (r *Reconciler) Bootstrap(ctx context.Context, target Target) (*manifest.Manifest, error) {
	m, err := manifest.Load(target.ManifestPath)
	if !errors.Is(err, fs.ErrNotExist) {
		return m, err
	}

	logger := r.logger.With("bucket", target.Bucket)
	m = manifest.New(target.ManifestPath, target.Bucket, "")
	stats := &PassStats{ID: uuid.NewString()}
	downloaded, err := r.syncManifestFile(ctx, logger, m, stats)
	if err != nil {
		return nil, fmt.Errorf("bucket %s: %w", target.Bucket, err)
	}
	if stats.RemoteErrors > 0 || stats.Failures > 0 {
		return nil, fmt.Errorf("bucket %s: %w", target.Bucket, ErrManifestUnknown)
	}
	if !downloaded {
		logger.Info("no manifest in bucket, starting a new one")
		return m, nil
	}
	return manifest.Load(target.ManifestPath)
}

func (r *Reconciler) reconcileManifest(ctx context.Context, logger *slog.Logger, target Target, stats *PassStats) error {
	logger = logger.With("bucket", target.Bucket)

	m, err := manifest.Load(target.ManifestPath)
	if errors.Is(err, fs.ErrNotExist) {
		// nothing local yet: the bucket's copy, if any, is fetched by the self-sync below
		m = manifest.New(target.ManifestPath, target.Bucket, "")
	} else if err != nil {
		return err
	}

	downloaded, err := r.syncManifestFile(ctx, logger, m, stats)
	if err != nil {
		return err
	}
	if downloaded {
		logger.Info("manifest updated from bucket, reloading")
		if m, err = manifest.Load(target.ManifestPath); err != nil {
			return err
		}
	} else if !m.Exists() {
		logger.Warn("no manifest locally or in bucket, nothing to sync", "path", target.ManifestPath)
		return nil
	}

	if m.BucketName != target.Bucket {
		logger.Warn("manifest names a different bucket", "manifestBucket", m.BucketName)
	}

	root, err := m.RootDir()
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}

	writes := stats.ManifestWrites
	for _, key := range m.Keys() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if key == manifest.Basename {
			continue
		}
		if err := r.reconcileKey(ctx, logger, m, root, key, stats); err != nil {
			return err
		}
	}

	// publish what this pass learned so the next pass starts clean
	if stats.ManifestWrites > writes {
		if _, err := r.syncManifestFile(ctx, logger, m, stats); err != nil {
			return err
		}
	}
	return nil
}

// syncManifestFile runs the manifest file through the same refresh and decision as any key.
// Its state is never stored in Items. It reports whether the local manifest was replaced.
func (r *Reconciler) syncManifestFile(ctx context.Context, logger *slog.Logger, m *manifest.Manifest, stats *PassStats) (bool, error) {
	logger = logger.With("key", manifest.Basename)

	remote, err := r.store.HeadObject(ctx, m.BucketName, manifest.Basename)
	if err != nil {
		if blob.IsConnectivity(err) || ctx.Err() != nil {
			return false, fmt.Errorf("refresh manifest: %w", err)
		}
		logger.Error("refresh remote metadata", "error", err)
		stats.RemoteErrors++
		return false, nil
	}

	local, err := r.local.Inspect(m.Path())
	if err != nil {
		return false, err
	}

	op := Decide(local, remote)
	ok, err := r.execute(ctx, logger, op, m.BucketName, manifest.Basename, m.Path(), local, remote, stats)
	if err != nil {
		return false, err
	}
	return ok && op == OpDownload, nil
}

func (r *Reconciler) reconcileKey(ctx context.Context, logger *slog.Logger, m *manifest.Manifest, root, key string, stats *PassStats) error {
	logger = logger.With("key", key)
	stats.Keys++

	if !filepath.IsLocal(filepath.FromSlash(key)) {
		logger.Error("key escapes the sync root, ignoring")
		stats.Failures++
		return nil
	}
	localPath := filepath.Join(root, filepath.FromSlash(key))

	item := m.Items[key]
	remote, err := r.store.HeadObject(ctx, m.BucketName, key)
	if err != nil {
		if blob.IsConnectivity(err) || ctx.Err() != nil {
			return fmt.Errorf("refresh %s: %w", key, err)
		}
		logger.Error("refresh remote metadata", "error", err)
		stats.RemoteErrors++
		return nil
	}

	if !remote.Equal(item.Remote) {
		logger.Debug("remote metadata changed", "lastModified", remote.LastModified, "missing", remote.Missing())
		item.Remote = remote.Clone()
		if err := m.Save(); err != nil {
			return err
		}
		stats.ManifestWrites++
	}

	local, err := r.local.Inspect(localPath)
	if err != nil {
		return err
	}
	item.Local = local

	op := Decide(local, remote)
	ok, err := r.execute(ctx, logger, op, m.BucketName, key, localPath, local, remote, stats)
	if err != nil {
		return err
	}

	if !ok {
		return nil
	}
	switch op {
	case OpDownload:
		if item.Local, err = r.local.Inspect(localPath); err != nil {
			return err
		}
	case OpUpload:
		return r.refreshAfterUpload(ctx, logger, m, key, item, stats)
	}
	return nil
}

// refreshAfterUpload records the object just written so the next pass sees no change.
// A failed HEAD is only logged; the next pass refreshes the key anyway.
func (r *Reconciler) refreshAfterUpload(ctx context.Context, logger *slog.Logger, m *manifest.Manifest, key string, item *manifest.ItemState, stats *PassStats) error {
	remote, err := r.store.HeadObject(ctx, m.BucketName, key)
	if err != nil {
		logger.Warn("refresh after upload", "error", err)
		return nil
	}
	if remote.Equal(item.Remote) {
		return nil
	}
	item.Remote = remote.Clone()
	if err := m.Save(); err != nil {
		return err
	}
	stats.ManifestWrites++
	return nil
}

// execute carries out op. It returns false when a transfer failed; transfer failures are
// counted but never returned, except for context cancellation.
func (r *Reconciler) execute(
	ctx context.Context,
	logger *slog.Logger,
	op Op,
	bucket, key, localPath string,
	local manifest.LocalMetadata,
	remote *manifest.RemoteMetadata,
	stats *PassStats,
) (bool, error) {
	var err error
	switch op {
	case OpDownload:
		logger.Info("download", "remoteModified", remote.LastModified, "localModified", local.LastModified.Unix())
		err = r.store.Download(ctx, bucket, key, localPath)
	case OpUpload:
		logger.Info("upload", "remoteModified", remote.LastModified, "localModified", local.LastModified.Unix())
		err = r.store.Upload(ctx, bucket, key, localPath)
	case OpNoOp:
		if isConflict(op, local, remote) {
			logger.Warn("sync conflict", "localETag", *local.ETag, "remoteETag", *remote.ETag, "modified", remote.LastModified)
			stats.Conflicts++
		}
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		logger.Error("transfer failed", "op", op, "error", err)
		stats.Failures++
		return false, nil
	}

	stats.record(op)
	return true, nil
}
