// Package local reads the on-disk side of a tracked key.
package local

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/cloudhome/cloudhome/internal/fingerprint"
	"github.com/cloudhome/cloudhome/internal/manifest"
)

// Inspector stats files and fingerprints their content.
type Inspector struct{}

func NewInspector() *Inspector {
	return &Inspector{}
}

// Inspect returns the current metadata of the file at path. A missing file is not an
// error; it yields manifest.AbsentLocal().
func (i *Inspector) Inspect(path string) (manifest.LocalMetadata, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return manifest.AbsentLocal(), nil
	} else if err != nil {
		return manifest.LocalMetadata{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return manifest.LocalMetadata{}, fmt.Errorf("%s is a directory", path)
	}

	etag, err := fingerprint.ETag(path)
	if errors.Is(err, fs.ErrNotExist) {
		// removed between stat and read
		return manifest.AbsentLocal(), nil
	} else if err != nil {
		return manifest.LocalMetadata{}, err
	}

	return manifest.LocalMetadata{
		Present:      true,
		LastModified: info.ModTime(),
		Size:         info.Size(),
		ETag:         &etag,
	}, nil
}
