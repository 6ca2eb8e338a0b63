// Package fingerprint computes local content digests comparable to S3 ETags.
//
// S3 reports the MD5 of the body as the ETag of an object written with a single PUT.
// Objects written through a multipart upload carry a digest of the part digests instead
// ("<md5>-<parts>"), which this package never reproduces. Such objects therefore never
// compare equal and are always decided by timestamp.
package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// BlockSize is the read size used while hashing.
const BlockSize = 10 * 1024

// ETag returns the hex MD5 of the file at path. A missing file yields an error that
// satisfies errors.Is(err, fs.ErrNotExist).
func ETag(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", path, err)
	}
	defer f.Close()

	return Reader(f)
}

// Reader hashes everything r yields.
func Reader(r io.Reader) (string, error) {
	h := md5.New()
	buf := make([]byte, BlockSize)
	if _, err := io.CopyBuffer(h, onlyReader{r}, buf); err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// onlyReader hides WriterTo/ReaderFrom so io.CopyBuffer actually uses the block buffer.
type onlyReader struct {
	io.Reader
}
