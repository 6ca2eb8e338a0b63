package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cloudhome/cloudhome/internal/manifest"
	"github.com/cloudhome/cloudhome/internal/utils"
	"github.com/dustin/go-humanize"
)

// S3API is the subset of the S3 client used here.
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var _ S3API = (*s3.Client)(nil)

// Client reads and writes whole objects and their metadata.
type Client struct {
	api    S3API
	logger *slog.Logger
}

func NewClient(api S3API, logger *slog.Logger) *Client {
	return &Client{
		api:    api,
		logger: logger.With("component", "blob"),
	}
}

// HeadObject fetches the current metadata of bucket/key. An absent object is reported as
// manifest.MissingRemote() with a nil error.
func (c *Client) HeadObject(ctx context.Context, bucket, key string) (*manifest.RemoteMetadata, error) {
	resp, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		err = classify("headObject", bucket, key, err)
		if errors.Is(err, errNotFound) {
			return manifest.MissingRemote(), nil
		}
		return nil, err
	}

	meta := &manifest.RemoteMetadata{}
	if resp.LastModified != nil {
		meta.LastModified = resp.LastModified.Unix()
	}
	if resp.ETag != nil {
		meta.ETag = manifest.StringPtr(manifest.TrimETag(*resp.ETag))
	}
	if resp.ContentLength != nil {
		meta.ContentLength = manifest.Int64Ptr(*resp.ContentLength)
	}
	return meta, nil
}

// Download writes bucket/key to dest. The body lands in a temp file beside dest that is
// renamed into place once complete.
func (c *Client) Download(ctx context.Context, bucket, key, dest string) error {
	resp, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return classify("getObject", bucket, key, err)
	}
	defer resp.Body.Close()

	if err := utils.EnsureParent(dest); err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".download-*")
	if err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	n, err := io.Copy(tmp, resp.Body)
	if err != nil {
		tmp.Close()
		return classify("getObject", bucket, key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}

	c.logger.Debug("downloaded", "bucket", bucket, "key", key, "size", humanize.IBytes(uint64(n)))
	return nil
}

// Upload writes the file at src to bucket/key.
func (c *Client) Upload(ctx context.Context, bucket, key, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}

	_, err = c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(utils.DetectContentType(key)),
	})
	if err != nil {
		return classify("putObject", bucket, key, err)
	}

	c.logger.Debug("uploaded", "bucket", bucket, "key", key, "size", humanize.IBytes(uint64(info.Size())))
	return nil
}
