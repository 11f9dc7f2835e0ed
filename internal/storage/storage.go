// Package storage provides object storage for archived event batches.
package storage

import (
	"context"
	"errors"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrUploadFailed   = errors.New("upload failed")
	ErrDownloadFailed = errors.New("download failed")
	ErrDeleteFailed   = errors.New("delete failed")
)

// ObjectStorage abstracts object storage operations.
// Implementations are S3 (and S3-compatible stores) and the local filesystem.
type ObjectStorage interface {
	// Put writes body to key, replacing any existing object.
	Put(ctx context.Context, key string, body []byte) error

	// Get returns the object at key, or ErrObjectNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether an object exists at key.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns all object keys under prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}
