package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"docvault/internal/config"
	"docvault/internal/errs"
)

// MinIO implements Provider on top of the MinIO SDK (works with AWS S3 as well).
// It is safe for concurrent use by multiple goroutines.
type MinIO struct {
	client *minio.Client
	bucket string
}

// NewMinIO creates a new S3-compatible storage client backed by MinIO.
// It validates connectivity and ensures the bucket exists (creates it if missing).
func NewMinIO(ctx context.Context, cfg config.MinIOConfig) (*MinIO, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}

	// A fixed region keeps presigning local; otherwise the SDK looks the bucket location up.
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &MinIO{client: cli, bucket: cfg.Bucket}, nil
}

// UploadObject writes data under key.
func (m *MinIO) UploadObject(ctx context.Context, key string, data []byte, contentType string) (UploadResult, error) {
	const op = "storage.MinIO.UploadObject"
	if key == "" {
		return UploadResult{}, errs.Invalid(op, "key", "object key is required")
	}
	info, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return UploadResult{}, errs.Storage(op, key, err)
	}
	return UploadResult{StorageKey: key, Checksum: Checksum(data), Size: info.Size}, nil
}

// GetSignedURL generates a pre-signed URL for method with the specified expiry.
func (m *MinIO) GetSignedURL(ctx context.Context, key string, expiresIn time.Duration, method string) (string, error) {
	const op = "storage.MinIO.GetSignedURL"
	method, err := checkSignRequest(op, key, expiresIn, method)
	if err != nil {
		return "", err
	}
	u, err := m.client.Presign(ctx, method, m.bucket, key, expiresIn, url.Values{})
	if err != nil {
		return "", errs.Storage(op, key, err)
	}
	return u.String(), nil
}

var _ Provider = (*MinIO)(nil)
