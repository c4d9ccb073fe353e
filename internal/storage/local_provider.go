package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// LocalStorage implements Provider on the local filesystem.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates the base directory if needed.
func NewLocalStorage(basePath string, log *zap.Logger) (*LocalStorage, error) {
	if basePath == "" {
		return nil, fmt.Errorf("local storage path cannot be empty")
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create local storage directory: %w", err)
	}
	log.Info("Local storage initialized", zap.String("path", basePath))
	return &LocalStorage{basePath: basePath}, nil
}

// resolve maps an object name to a path under basePath, rejecting traversal.
func (l *LocalStorage) resolve(objectName string) (string, error) {
	clean := filepath.Clean(objectName)
	if clean == "." || clean == "/" || clean == "" {
		return "", fmt.Errorf("invalid object name: %s", objectName)
	}
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("object name must be relative to the storage root: %s", objectName)
	}
	return filepath.Join(l.basePath, clean), nil
}

// UploadFile writes the object atomically: data goes to a temp file that is
// renamed over the destination once fully written.
func (l *LocalStorage) UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	fullPath, err := l.resolve(objectName)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory structure for %s: %w", fullPath, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", fullPath, err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write data to local file %s: %w", fullPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close local file %s: %w", fullPath, err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return fmt.Errorf("failed to move local file into place %s: %w", fullPath, err)
	}
	return nil
}

// DownloadFile opens a file from the local filesystem.
func (l *LocalStorage) DownloadFile(ctx context.Context, objectName string) (io.ReadCloser, error) {
	fullPath, err := l.resolve(objectName)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("object %s: %w", objectName, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open local file %s: %w", fullPath, err)
	}
	return file, nil
}
