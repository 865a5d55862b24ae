// Package storage provides S3-compatible object storage for the run archive.
// Raw actor-run payloads are written here so a job's source data can be
// re-examined after the structured rows have been persisted.
package storage

import (
	"context"
	"io"
)

// ObjectStorage is the contract the run archive writes through. Implementations
// cover AWS S3, Cloudflare R2 and any S3-compatible service (MinIO, Supabase
// Storage) behind one client.
type ObjectStorage interface {
	// Upload writes an object under the given key, overwriting any previous
	// version.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download opens an object for reading. The caller closes the reader.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// GetURL returns the externally reachable URL of an object.
	GetURL(key string) string

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether an object is present under the given key.
	Exists(ctx context.Context, key string) (bool, error)

	// EnsureBucket creates the backing bucket when the service supports it.
	EnsureBucket(ctx context.Context) error
}
