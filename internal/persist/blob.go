// Package persist stores whole snapshots as opaque blobs, either on the local
// file system or in Redis.
package persist

import "context"

// Blob is a single durable object that is always read and written whole.
type Blob interface {
	// Load returns the saved bytes or ErrNotExist.
	Load(ctx context.Context) ([]byte, error)
	// Save replaces the saved bytes.
	Save(ctx context.Context, data []byte) error
	// Location describes where the blob lives, for logs.
	Location() string
}
