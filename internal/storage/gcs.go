package storage

import (
	"context"
	"errors"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/admingate/apiserver/config"
	"google.golang.org/api/option"
)

// GCSStorage keeps avatar objects in a Google Cloud Storage bucket.
type GCSStorage struct {
	client    *storage.Client
	bucket    string
	projectID string
}

func NewGCSStorage(ctx context.Context, cfg config.StorageConfig) (*GCSStorage, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("storage bucket is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.GCS.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GCS.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return &GCSStorage{
		client:    client,
		bucket:    cfg.Bucket,
		projectID: cfg.GCS.ProjectID,
	}, nil
}

func (g *GCSStorage) EnsureBucket(ctx context.Context) error {
	_, err := g.client.Bucket(g.bucket).Attrs(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrBucketNotExist) {
		return err
	}
	if strings.TrimSpace(g.projectID) == "" {
		return errors.New("gcs project id is required to create bucket")
	}
	return g.client.Bucket(g.bucket).Create(ctx, g.projectID, nil)
}

func (g *GCSStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	writer := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	if strings.TrimSpace(contentType) != "" {
		writer.ContentType = contentType
	}
	if _, err := io.Copy(writer, r); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}

func (g *GCSStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return g.client.Bucket(g.bucket).Object(key).NewReader(ctx)
}

func (g *GCSStorage) Delete(ctx context.Context, key string) error {
	return g.client.Bucket(g.bucket).Object(key).Delete(ctx)
}

func (g *GCSStorage) Bucket() string {
	return g.bucket
}
