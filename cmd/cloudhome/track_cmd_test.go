package main

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/cloudhome/cloudhome/internal/blob"
	"github.com/cloudhome/cloudhome/internal/config"
	"github.com/cloudhome/cloudhome/internal/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrack_CreatesManifest(t *testing.T) {
	e := newCLIEnv(t)
	bucket := useFakeBucket(t)

	out, _, err := e.run("track", "photos", "a.txt", "albums/b.jpg", "./a.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "+ a.txt")
	assert.Contains(t, out, "+ albums/b.jpg")
	assert.Contains(t, out, "= a.txt")

	m, err := manifest.Load(filepath.Join(e.home, "photos", manifest.Basename))
	require.NoError(t, err)
	assert.Equal(t, "photos", m.BucketName)
	assert.Equal(t, []string{"a.txt", "albums/b.jpg"}, m.Keys())
	assert.Nil(t, m.Items["a.txt"].Remote)

	assert.Equal(t, 1, bucket.heads[manifest.Basename], "the bucket is checked for a manifest first")
}

func TestTrack_StartsFromBucketManifest(t *testing.T) {
	e := newCLIEnv(t)
	bucket := useFakeBucket(t)

	remote := manifest.New(filepath.Join(t.TempDir(), manifest.Basename), "photos", "")
	remote.Track("shared.txt")
	require.NoError(t, remote.Save())
	bucket.putFile(t, "photos", manifest.Basename, remote.Path(), 1000)
	bucket.put("photos", "shared.txt", []byte("from another machine"), 1000)

	out, _, err := e.run("track", "photos", "mine.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "+ mine.txt")

	path := filepath.Join(e.home, "photos", manifest.Basename)
	m, err := manifest.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"mine.txt", "shared.txt"}, m.Keys())

	_, _, err = e.run("sync", "--bucket", "photos")
	require.NoError(t, err)

	synced := bucket.manifest(t, "photos")
	assert.Equal(t, []string{"mine.txt", "shared.txt"}, synced.Keys())
	assert.FileExists(t, filepath.Join(e.home, "photos", "shared.txt"))
}

func TestTrack_RefusesWhenBucketUnreachable(t *testing.T) {
	e := newCLIEnv(t)
	bucket := useFakeBucket(t)
	bucket.headErr = fmt.Errorf("dial: %w", blob.ErrConnectivity)

	_, _, err := e.run("track", "photos", "mine.txt")
	assert.True(t, blob.IsConnectivity(err))
	assert.NoFileExists(t, filepath.Join(e.home, "photos", manifest.Basename))
}

func TestTrack_KeepsExistingState(t *testing.T) {
	e := newCLIEnv(t)
	path := filepath.Join(e.home, "photos", manifest.Basename)

	m := manifest.New(path, "photos", "")
	m.Track("a.txt")
	m.Items["a.txt"].Remote = &manifest.RemoteMetadata{LastModified: 100, ETag: manifest.StringPtr("abc")}
	require.NoError(t, m.Save())

	_, _, err := e.run("track", "photos", "b.txt")
	require.NoError(t, err)

	m, err = manifest.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, m.Keys())
	assert.Equal(t, int64(100), m.Items["a.txt"].Remote.LastModified)
}

func TestTrack_RejectsBadInput(t *testing.T) {
	e := newCLIEnv(t)

	_, _, err := e.run("track", "photos", "../escape.txt")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, _, err = e.run("track", "photos", manifest.Basename)
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, _, err = e.run("track", "..", "a.txt")
	assert.ErrorIs(t, err, config.ErrInvalidBucket)

	assert.NoFileExists(t, filepath.Join(e.home, "photos", manifest.Basename))
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"a.txt", "a.txt", true},
		{"./dir//b.txt", "dir/b.txt", true},
		{" dir/c.txt ", "dir/c.txt", true},
		{"dir/../d.txt", "d.txt", true},
		{".", "", false},
		{"", "", false},
		{"../up.txt", "", false},
		{"/etc/passwd", "", false},
		{"manifest.json", "", false},
	}

	for _, tt := range tests {
		got, err := normalizeKey(tt.raw)
		if !tt.ok {
			assert.ErrorIs(t, err, ErrInvalidKey, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got)
	}
}
