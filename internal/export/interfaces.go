package export

import (
	"context"
)

// ObjectStore provides an interface for cloud storage operations.
// This interface enables mocking and testing of storage functionality.
type ObjectStore interface {
	// Write stores data under bucket/object, replacing any existing object.
	Write(ctx context.Context, bucket, object, contentType string, data []byte) error

	// Read returns the bytes of bucket/object.
	Read(ctx context.Context, bucket, object string) ([]byte, error)
}
