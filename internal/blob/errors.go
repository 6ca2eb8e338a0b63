package blob

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// ErrConnectivity marks failures to reach the store at all. Callers back off and retry.
var ErrConnectivity = errors.New("s3: endpoint unreachable")

var errNotFound = errors.New("s3: object not found")

// Error is a failed S3 call with the object it was about.
type Error struct {
	Op     string
	Bucket string
	Key    string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("s3.%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op, bucket, key string, err error) *Error {
	return &Error{Op: op, Bucket: bucket, Key: key, Err: err}
}

// IsConnectivity reports whether err means the endpoint could not be reached.
func IsConnectivity(err error) bool {
	return errors.Is(err, ErrConnectivity)
}

// classify maps SDK errors onto errNotFound and ErrConnectivity, wrapping the rest in *Error.
func classify(op, bucket, key string, err error) error {
	switch {
	case isNotFound(err):
		return newError(op, bucket, key, fmt.Errorf("%w: %w", errNotFound, err))
	case isUnreachable(err):
		return newError(op, bucket, key, fmt.Errorf("%w: %w", ErrConnectivity, err))
	default:
		return newError(op, bucket, key, err)
	}
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}

	var status interface{ HTTPStatusCode() int }
	if errors.As(err, &status) {
		return status.HTTPStatusCode() == http.StatusNotFound
	}
	return false
}

func isUnreachable(err error) bool {
	var sendErr *smithyhttp.RequestSendError
	if errors.As(err, &sendErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
