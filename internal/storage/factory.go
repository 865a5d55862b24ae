package storage

import "strings"

// NewStorage creates an ObjectStorage for the configured backend, detecting
// the storage type from the endpoint when none is set.
// Parameters:
//   - cfg: backend settings including endpoint, credentials and bucket.
// Returns:
//   - ObjectStorage: initialized storage client.
//   - error: non-nil if the client cannot be created.
func NewStorage(cfg *S3Config) (ObjectStorage, error) {
	if cfg.Type == "" {
		cfg.Type = detectStorageType(cfg.Endpoint)
	}
	return NewS3Storage(cfg)
}

// detectStorageType guesses the backend flavour from its endpoint. Anything
// unrecognized is treated as generic S3-compatible, which covers MinIO and
// Supabase Storage.
func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case strings.Contains(endpoint, "amazonaws.com"):
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}
