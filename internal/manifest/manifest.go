// Package manifest holds the per-bucket tracking document: which keys are synchronized
// between a local root and a bucket, and the last remote state observed for each.
//
// Only remote metadata is persisted. Local metadata is recomputed from disk every pass.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/cloudhome/cloudhome/internal/utils"
	"github.com/goccy/go-json"
)

// Basename is the file name of every manifest. The manifest syncs itself under this key.
const Basename = "manifest.json"

const indent = "    "

var ErrNoBucket = errors.New("manifest has no bucket_name")

// ItemState is the tracked state of one key.
type ItemState struct {
	// Remote is nil until the key has been observed at least once.
	Remote *RemoteMetadata
	Local  LocalMetadata
}

type itemJSON struct {
	Remote json.RawMessage `json:"s3_metadata"`
}

// itemDoc is the persisted form of an ItemState. Remote is either *RemoteMetadata or an
// empty object for a key that was never observed.
type itemDoc struct {
	Remote any `json:"s3_metadata"`
}

type manifestDoc struct {
	BucketName string             `json:"bucket_name"`
	Root       string             `json:"root"`
	Items      map[string]itemDoc `json:"items"`
}

func (s *ItemState) UnmarshalJSON(data []byte) error {
	var raw itemJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ItemState{Local: AbsentLocal()}

	body := bytes.TrimSpace(raw.Remote)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return fmt.Errorf("s3_metadata: %w", err)
	}
	if len(fields) == 0 {
		return nil
	}

	remote := &RemoteMetadata{}
	if err := json.Unmarshal(body, remote); err != nil {
		return fmt.Errorf("s3_metadata: %w", err)
	}
	s.Remote = remote
	return nil
}

// Manifest is the tracking document for one bucket/root pair.
type Manifest struct {
	BucketName string                `json:"bucket_name"`
	Root       string                `json:"root"`
	Items      map[string]*ItemState `json:"items"`

	path string
}

// New returns an empty manifest that will be saved at path.
func New(path, bucket, root string) *Manifest {
	return &Manifest{
		BucketName: bucket,
		Root:       root,
		Items:      make(map[string]*ItemState),
		path:       path,
	}
}

// Load reads and decodes the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	m := &Manifest{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	if m.BucketName == "" {
		return nil, fmt.Errorf("%s: %w", path, ErrNoBucket)
	}
	if m.Items == nil {
		m.Items = make(map[string]*ItemState)
	}
	for key, item := range m.Items {
		if item == nil {
			m.Items[key] = &ItemState{Local: AbsentLocal()}
		}
	}
	m.path = path
	return m, nil
}

// Save writes the manifest back to the path it was loaded from. The write is atomic.
func (m *Manifest) Save() error {
	doc := manifestDoc{
		BucketName: m.BucketName,
		Root:       m.Root,
		Items:      make(map[string]itemDoc, len(m.Items)),
	}
	for key, item := range m.Items {
		if item == nil || item.Remote == nil {
			doc.Items[key] = itemDoc{Remote: struct{}{}}
			continue
		}
		doc.Items[key] = itemDoc{Remote: item.Remote}
	}

	data, err := json.MarshalIndent(doc, "", indent)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	data = append(data, '\n')

	if err := utils.WriteFileAtomic(m.path, data, 0o644); err != nil {
		return fmt.Errorf("save manifest %s: %w", m.path, err)
	}
	return nil
}

// Path is where the manifest lives on disk.
func (m *Manifest) Path() string {
	return m.path
}

// Exists reports whether the manifest file is on disk.
func (m *Manifest) Exists() bool {
	return utils.FileExists(m.path)
}

// RootDir is Root with "~" expanded. When Root is empty the manifest's own directory is used.
func (m *Manifest) RootDir() (string, error) {
	if m.Root == "" {
		return filepath.Dir(m.path), nil
	}
	return utils.ResolvePath(m.Root)
}

// Keys returns the tracked keys in sorted order.
func (m *Manifest) Keys() []string {
	keys := make([]string, 0, len(m.Items))
	for k := range m.Items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Track adds key with no observed state. It returns false if the key was already tracked.
func (m *Manifest) Track(key string) bool {
	if _, ok := m.Items[key]; ok {
		return false
	}
	m.Items[key] = &ItemState{Local: AbsentLocal()}
	return true
}
