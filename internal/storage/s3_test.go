package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectStorageType(t *testing.T) {
	testCases := []struct {
		endpoint string
		want     StorageType
	}{
		{"abc123.r2.cloudflarestorage.com", StorageTypeR2},
		{"https://ABC.R2.CLOUDFLARESTORAGE.COM", StorageTypeR2},
		{"s3.us-east-1.amazonaws.com", StorageTypeS3},
		{"minio.internal:9000", StorageTypeS3Compatible},
		{"xyz.supabase.co/storage/v1/s3", StorageTypeS3Compatible},
		{"", StorageTypeS3Compatible},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, detectStorageType(tc.endpoint), "endpoint %q", tc.endpoint)
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{"https://minio.internal:9000", "minio.internal:9000"},
		{"http://minio.internal:9000/", "minio.internal:9000"},
		{"xyz.supabase.co/storage/v1/s3", "xyz.supabase.co"},
		{"minio.internal", "minio.internal"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, normalizeEndpoint(tc.in), "endpoint %q", tc.in)
	}
}

func TestGetURL(t *testing.T) {
	withPublic, err := NewS3Storage(&S3Config{
		Type:      StorageTypeR2,
		Endpoint:  "abc123.r2.cloudflarestorage.com",
		UseSSL:    true,
		Bucket:    "runs",
		PublicURL: "https://pub-abc.r2.dev/",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://pub-abc.r2.dev/runs/job-1/comments.json", withPublic.GetURL("runs/job-1/comments.json"))

	withoutPublic, err := NewS3Storage(&S3Config{
		Endpoint: "minio.internal:9000",
		Bucket:   "runs",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://minio.internal:9000/runs/runs/job-1/comments.json", withoutPublic.GetURL("runs/job-1/comments.json"))
}
