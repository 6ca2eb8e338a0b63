package reconcile

import "time"

// PassStats counts what one pass did across all manifests.
type PassStats struct {
	ID        string
	Manifests int
	Keys      int
	Skipped   int
	Downloads int
	Uploads   int
	NoOps     int
	// Conflicts counts keys whose content differs while both timestamps are equal.
	Conflicts int
	// RemoteErrors counts keys left unreconciled because their HEAD failed.
	RemoteErrors int
	// Failures counts transfers that failed, and keys rejected as unsafe.
	Failures       int
	ManifestWrites int
	Duration       time.Duration
}

func (s *PassStats) record(op Op) {
	switch op {
	case OpSkip:
		s.Skipped++
	case OpDownload:
		s.Downloads++
	case OpUpload:
		s.Uploads++
	case OpNoOp:
		s.NoOps++
	}
}

// Transfers is the number of successful downloads and uploads.
func (s *PassStats) Transfers() int {
	return s.Downloads + s.Uploads
}

// HasChanges reports whether the pass moved data, rewrote a manifest or hit a problem.
func (s *PassStats) HasChanges() bool {
	return s.Transfers() > 0 ||
		s.ManifestWrites > 0 ||
		s.Conflicts > 0 ||
		s.RemoteErrors > 0 ||
		s.Failures > 0
}
