package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/Suhaibinator/SModule/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinioStorage implements Provider using MinIO.
type MinioStorage struct {
	client *minio.Client
	bucket string
}

// NewMinioStorage connects to MinIO and ensures the backup bucket exists.
func NewMinioStorage(ctx context.Context, cfg config.Config, log *zap.Logger) (*MinioStorage, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}
	log.Info("MinIO client initialized", zap.String("endpoint", cfg.MinioEndpoint))

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check MinIO bucket existence: %w", err)
	}
	if !exists {
		log.Info("MinIO bucket does not exist, creating", zap.String("bucket", cfg.MinioBucket))
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create MinIO bucket: %w", err)
		}
	}

	return &MinioStorage{client: client, bucket: cfg.MinioBucket}, nil
}

// UploadFile uploads data to MinIO.
func (m *MinioStorage) UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, objectName, reader, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to upload object %s to minio: %w", objectName, err)
	}
	return nil
}

// DownloadFile retrieves an object from MinIO. GetObject is lazy, so the
// object is stat'ed first to surface a missing key as ErrNotFound.
func (m *MinioStorage) DownloadFile(ctx context.Context, objectName string) (io.ReadCloser, error) {
	if _, err := m.client.StatObject(ctx, m.bucket, objectName, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("object %s: %w", objectName, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to stat object %s in minio: %w", objectName, err)
	}
	object, err := m.client.GetObject(ctx, m.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s from minio: %w", objectName, err)
	}
	return object, nil
}
