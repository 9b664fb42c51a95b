package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/admingate/apiserver/config"
)

// ObjectStorage defines the object operations the avatar endpoints need,
// implemented by the MinIO and GCS backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// New constructs the backend selected by config. It returns nil (no error)
// when storage is not configured; the avatar routes stay unregistered then.
func New(ctx context.Context, cfg config.StorageConfig) (ObjectStorage, error) {
	switch cfg.Backend {
	case "", config.StorageBackendNone:
		return nil, nil
	case config.StorageBackendMinIO:
		return NewMinioStorage(cfg)
	case config.StorageBackendGCS:
		return NewGCSStorage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// AvatarKey derives the object key for an admin's avatar.
func AvatarKey(adminID int) string {
	return fmt.Sprintf("avatars/%d", adminID)
}
