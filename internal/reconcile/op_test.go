package reconcile

import (
	"testing"
	"time"

	"github.com/cloudhome/cloudhome/internal/manifest"
	"github.com/stretchr/testify/assert"
)

func localAt(sec int64, etag string) manifest.LocalMetadata {
	return manifest.LocalMetadata{Present: true, LastModified: time.Unix(sec, 0), Size: 1, ETag: manifest.StringPtr(etag)}
}

func remoteAt(sec int64, etag string) *manifest.RemoteMetadata {
	return &manifest.RemoteMetadata{LastModified: sec, ETag: manifest.StringPtr(etag), ContentLength: manifest.Int64Ptr(1)}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name   string
		local  manifest.LocalMetadata
		remote *manifest.RemoteMetadata
		want   Op
	}{
		{name: "equal etags skip even when remote is newer", local: localAt(50, "abc"), remote: remoteAt(100, "abc"), want: OpSkip},
		{name: "equal etags skip even when local is newer", local: localAt(500, "abc"), remote: remoteAt(100, "abc"), want: OpSkip},
		{name: "remote newer downloads", local: localAt(50, "abc"), remote: remoteAt(100, "def"), want: OpDownload},
		{name: "local newer uploads", local: localAt(200, "def"), remote: remoteAt(100, "abc"), want: OpUpload},
		{name: "equal timestamps do nothing", local: localAt(100, "def"), remote: remoteAt(100, "abc"), want: OpNoOp},
		{name: "absent on both sides", local: manifest.AbsentLocal(), remote: manifest.MissingRemote(), want: OpNoOp},
		{name: "nil remote treated as missing", local: manifest.AbsentLocal(), remote: nil, want: OpNoOp},
		{name: "absent locally downloads", local: manifest.AbsentLocal(), remote: remoteAt(100, "abc"), want: OpDownload},
		{name: "absent remotely uploads", local: localAt(100, "abc"), remote: manifest.MissingRemote(), want: OpUpload},
		{
			name:   "subsecond local mtime within the remote second is newer",
			local:  manifest.LocalMetadata{Present: true, LastModified: time.Unix(100, 300_000_000), ETag: manifest.StringPtr("x")},
			remote: remoteAt(100, "y"),
			want:   OpUpload,
		},
		{
			name:   "subsecond local mtime before a later remote second downloads",
			local:  manifest.LocalMetadata{Present: true, LastModified: time.Unix(100, 900_000_000), ETag: manifest.StringPtr("x")},
			remote: remoteAt(101, "y"),
			want:   OpDownload,
		},
		{
			name:   "nil digests fall through to timestamps",
			local:  manifest.LocalMetadata{Present: true, LastModified: time.Unix(100, 0)},
			remote: &manifest.RemoteMetadata{LastModified: 100},
			want:   OpNoOp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.local, tt.remote))
		})
	}
}

func TestIsConflict(t *testing.T) {
	assert.True(t, isConflict(OpNoOp, localAt(100, "def"), remoteAt(100, "abc")))
	assert.False(t, isConflict(OpNoOp, manifest.AbsentLocal(), manifest.MissingRemote()))
	assert.False(t, isConflict(OpUpload, localAt(200, "def"), remoteAt(100, "abc")))
}

func TestPassStats(t *testing.T) {
	s := &PassStats{}
	assert.False(t, s.HasChanges())

	s.record(OpSkip)
	s.record(OpNoOp)
	assert.False(t, s.HasChanges())

	s.record(OpDownload)
	s.record(OpUpload)
	assert.Equal(t, 2, s.Transfers())
	assert.True(t, s.HasChanges())
}
