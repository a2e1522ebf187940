package gcs

import (
	"context"
)

// StorageService provides an interface for cloud storage operations.
// The dataset loader depends on it so tests can substitute an in-memory fake.
type StorageService interface {
	// FetchObject downloads the bytes of the object at the given gs:// URI.
	FetchObject(ctx context.Context, uri string) ([]byte, error)

	// UploadFile uploads a local file to a storage bucket under the given object name.
	UploadFile(ctx context.Context, bucketName, objectName, filePath string) error
}
