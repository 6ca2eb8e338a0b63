package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cloudhome/cloudhome/internal/config"
	"github.com/cloudhome/cloudhome/internal/fingerprint"
	"github.com/cloudhome/cloudhome/internal/manifest"
	"github.com/cloudhome/cloudhome/internal/reconcile"
	"github.com/stretchr/testify/require"
)

type fakeObject struct {
	body     []byte
	modified int64
}

// fakeBucket stands in for S3. Objects are keyed by "bucket/key".
type fakeBucket struct {
	objects map[string]fakeObject
	heads   map[string]int
	headErr error
}

// useFakeBucket routes every command in the test to a fresh in-memory bucket.
func useFakeBucket(t *testing.T) *fakeBucket {
	t.Helper()
	fb := &fakeBucket{objects: map[string]fakeObject{}, heads: map[string]int{}}

	prev := newStore
	newStore = func(context.Context, *config.Config, *slog.Logger) (reconcile.MetadataStore, error) {
		return fb, nil
	}
	t.Cleanup(func() { newStore = prev })
	return fb
}

func (b *fakeBucket) put(bucket, key string, body []byte, modified int64) {
	b.objects[bucket+"/"+key] = fakeObject{body: body, modified: modified}
}

func (b *fakeBucket) putFile(t *testing.T, bucket, key, path string, modified int64) {
	t.Helper()
	body, err := os.ReadFile(path)
	require.NoError(t, err)
	b.put(bucket, key, body, modified)
}

// manifest decodes the manifest object stored in bucket.
func (b *fakeBucket) manifest(t *testing.T, bucket string) *manifest.Manifest {
	t.Helper()
	obj, ok := b.objects[bucket+"/"+manifest.Basename]
	require.True(t, ok, "no manifest in bucket %s", bucket)
	path := filepath.Join(t.TempDir(), manifest.Basename)
	require.NoError(t, os.WriteFile(path, obj.body, 0o644))
	m, err := manifest.Load(path)
	require.NoError(t, err)
	return m
}

func (b *fakeBucket) HeadObject(_ context.Context, bucket, key string) (*manifest.RemoteMetadata, error) {
	b.heads[key]++
	if b.headErr != nil {
		return nil, b.headErr
	}
	obj, ok := b.objects[bucket+"/"+key]
	if !ok {
		return manifest.MissingRemote(), nil
	}
	etag, err := fingerprint.Reader(bytes.NewReader(obj.body))
	if err != nil {
		return nil, err
	}
	return &manifest.RemoteMetadata{
		LastModified:  obj.modified,
		ETag:          manifest.StringPtr(etag),
		ContentLength: manifest.Int64Ptr(int64(len(obj.body))),
	}, nil
}

func (b *fakeBucket) Download(_ context.Context, bucket, key, dest string) error {
	obj, ok := b.objects[bucket+"/"+key]
	if !ok {
		return errors.New("no such object")
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, obj.body, 0o644)
}

func (b *fakeBucket) Upload(_ context.Context, bucket, key, src string) error {
	body, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	b.put(bucket, key, body, time.Now().Unix())
	return nil
}
