package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Suhaibinator/SModule/internal/config"
	"go.uber.org/zap"
)

// ErrNotFound is returned (wrapped) when an object does not exist.
var ErrNotFound = errors.New("storage: object not found")

// Provider is the object store the engine keeps its registry backups in.
// It allows swapping between MinIO and the local filesystem.
type Provider interface {
	// UploadFile stores size bytes from reader under objectName.
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error

	// DownloadFile opens objectName. The caller must close the reader.
	// Missing objects yield an error wrapping ErrNotFound.
	DownloadFile(ctx context.Context, objectName string) (io.ReadCloser, error)
}

// InitStorage builds the provider selected by cfg.StorageType.
func InitStorage(ctx context.Context, cfg config.Config, log *zap.Logger) (Provider, error) {
	storageType := strings.ToLower(cfg.StorageType)
	log.Info("Initializing storage provider", zap.String("type", storageType))

	var (
		provider Provider
		err      error
	)
	switch storageType {
	case "minio":
		provider, err = NewMinioStorage(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Minio storage: %w", err)
		}
	case "local":
		provider, err = NewLocalStorage(cfg.LocalStoragePath, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize local storage: %w", err)
		}
	default:
		return nil, fmt.Errorf("invalid STORAGE_TYPE: %s. Must be 'minio' or 'local'", cfg.StorageType)
	}

	log.Info("Storage provider initialized", zap.String("type", storageType))
	return provider, nil
}
