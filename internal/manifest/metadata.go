package manifest

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// RemoteMetadata is the cached result of a HEAD request against the bucket.
type RemoteMetadata struct {
	LastModified  int64   `json:"last-modified"`
	ETag          *string `json:"etag"`
	ContentLength *int64  `json:"content-length"`
}

// MissingRemote returns the sentinel recorded for an object the store reported as absent.
func MissingRemote() *RemoteMetadata {
	return &RemoteMetadata{}
}

// Missing reports whether m is the absent-object sentinel.
func (m *RemoteMetadata) Missing() bool {
	return m != nil && m.LastModified == 0 && m.ETag == nil && m.ContentLength == nil
}

// Time returns LastModified as a time.Time.
func (m *RemoteMetadata) Time() time.Time {
	if m == nil {
		return time.Unix(0, 0)
	}
	return time.Unix(m.LastModified, 0)
}

// Equal compares every field by value. Two nil records are equal.
func (m *RemoteMetadata) Equal(o *RemoteMetadata) bool {
	if m == nil || o == nil {
		return m == nil && o == nil
	}
	return m.LastModified == o.LastModified &&
		equalPtr(m.ETag, o.ETag) &&
		equalPtr(m.ContentLength, o.ContentLength)
}

func (m *RemoteMetadata) Clone() *RemoteMetadata {
	if m == nil {
		return nil
	}
	c := &RemoteMetadata{LastModified: m.LastModified}
	if m.ETag != nil {
		c.ETag = StringPtr(*m.ETag)
	}
	if m.ContentLength != nil {
		n := *m.ContentLength
		c.ContentLength = &n
	}
	return c
}

// UnmarshalJSON accepts numbers, decimal strings and nulls for the numeric fields, since
// older manifests stored raw header values.
func (m *RemoteMetadata) UnmarshalJSON(data []byte) error {
	var raw struct {
		LastModified  json.RawMessage `json:"last-modified"`
		ETag          *string         `json:"etag"`
		ContentLength json.RawMessage `json:"content-length"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	lastModified, err := parseLooseInt(raw.LastModified)
	if err != nil {
		return fmt.Errorf("last-modified: %w", err)
	}
	contentLength, err := parseLooseInt(raw.ContentLength)
	if err != nil {
		return fmt.Errorf("content-length: %w", err)
	}

	*m = RemoteMetadata{ContentLength: contentLength}
	if lastModified != nil {
		m.LastModified = *lastModified
	}
	if raw.ETag != nil {
		m.ETag = StringPtr(TrimETag(*raw.ETag))
	}
	return nil
}

// LocalMetadata describes the file on disk. It is recomputed every pass and never persisted.
type LocalMetadata struct {
	Present      bool
	LastModified time.Time
	Size         int64
	ETag         *string
}

// AbsentLocal is the record used when the file does not exist.
func AbsentLocal() LocalMetadata {
	return LocalMetadata{LastModified: time.Unix(0, 0)}
}

// TrimETag strips the quote characters S3 wraps around ETag values.
func TrimETag(etag string) string {
	return strings.Trim(etag, `"'`)
}

func StringPtr(s string) *string {
	return &s
}

func Int64Ptr(n int64) *int64 {
	return &n
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func parseLooseInt(raw json.RawMessage) (*int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, nil
		}
	}

	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return &n, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("not an integer: %s", raw)
	}
	n := int64(f)
	return &n, nil
}
