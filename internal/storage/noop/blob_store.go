// Package noop discards blob writes. It serves deployments that keep reports
// only in the result cache.
package noop

import "context"

// BlobStore accepts and discards every object.
type BlobStore struct{}

// NewBlobStore creates a no-op blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{}
}

// PutObject discards the data and returns an empty URI.
func (*BlobStore) PutObject(context.Context, string, string, []byte) (string, error) {
	return "", nil
}
