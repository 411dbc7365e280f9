package archive

import (
	"context"
	"io"
)

// ObjectArchive defines the interface for archiving raw listing payloads
type ObjectArchive interface {
	// EnsureBucket creates the backing bucket if it doesn't exist
	EnsureBucket(ctx context.Context) error

	// Upload stores an object in the archive
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download retrieves an object from the archive
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes an object from the archive
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)
}
