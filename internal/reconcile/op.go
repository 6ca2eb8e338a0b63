package reconcile

import (
	"github.com/cloudhome/cloudhome/internal/manifest"
)

// Op is the action chosen for one key in one pass.
type Op string

const (
	OpSkip     Op = "Skip"
	OpDownload Op = "Download"
	OpUpload   Op = "Upload"
	OpNoOp     Op = "NoOp"
)

// Decide picks exactly one action for a key given freshly refreshed local and remote state.
//
// Matching content wins over timestamps. Otherwise the newer side is copied over the older
// one. The local mtime keeps its sub-second part while the remote time is whole seconds, so
// a local write later in the same second as an upload counts as newer. A nil remote is
// treated as the absent-object sentinel.
func Decide(local manifest.LocalMetadata, remote *manifest.RemoteMetadata) Op {
	if remote == nil {
		remote = manifest.MissingRemote()
	}

	if local.ETag != nil && remote.ETag != nil && *local.ETag == *remote.ETag {
		return OpSkip
	}

	remoteTime := remote.Time()
	switch {
	case local.LastModified.Before(remoteTime):
		return OpDownload
	case remoteTime.Before(local.LastModified):
		return OpUpload
	default:
		return OpNoOp
	}
}

// isConflict reports content that differs on both sides while neither side is newer.
func isConflict(op Op, local manifest.LocalMetadata, remote *manifest.RemoteMetadata) bool {
	return op == OpNoOp &&
		local.ETag != nil && remote != nil && remote.ETag != nil &&
		*local.ETag != *remote.ETag
}
