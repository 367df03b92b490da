package imagestore

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds the connection details for an S3-compatible store.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// BaseURL is the public prefix clients fetch images from, typically the
	// endpoint itself or a CDN in front of it.
	BaseURL string
}

// Minio stores images in an S3-compatible bucket.
type Minio struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// NewMinio connects to the object store and makes sure the bucket exists.
func NewMinio(ctx context.Context, cfg MinioConfig) (*Minio, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("bucket check failed: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("make bucket failed: %w", err)
		}
	}

	return &Minio{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: cfg.BaseURL,
	}, nil
}

// Save uploads the image under a fresh object name and returns its URL.
func (m *Minio) Save(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (string, error) {
	name := uuid.New().String() + safeExt(filename)
	_, err := m.client.PutObject(ctx, m.bucket, "images/"+name, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image %s: %w", name, err)
	}
	return fmt.Sprintf("%s/%s/images/%s", m.baseURL, m.bucket, name), nil
}

// Remove deletes the object a previously returned URL points at.
func (m *Minio) Remove(ctx context.Context, url string) error {
	name, err := objectName(url)
	if err != nil {
		return err
	}
	if err := m.client.RemoveObject(ctx, m.bucket, "images/"+name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove image %s: %w", name, err)
	}
	return nil
}
