package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalAdapter implements the Adapter interface for local filesystem
type LocalAdapter struct {
	basePath      string
	bucket        string
	publicBaseURL string
}

// NewLocalAdapter creates a new local filesystem adapter. Objects live
// under basePath/bucket; public URLs are publicBaseURL/bucket/path.
func NewLocalAdapter(basePath, bucket, publicBaseURL string) (*LocalAdapter, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	if err := os.MkdirAll(filepath.Join(basePath, bucket), 0755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	return &LocalAdapter{
		basePath:      basePath,
		bucket:        bucket,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
	}, nil
}

// Put stores data at the given path
func (l *LocalAdapter) Put(ctx context.Context, path string, data io.Reader) error {
	fullPath := l.fullPath(path)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, data); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}

	return nil
}

// Get retrieves data from the given path
func (l *LocalAdapter) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	file, err := os.Open(l.fullPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Exists checks if data exists at the given path
func (l *LocalAdapter) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(l.fullPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check existence: %w", err)
	}

	return true, nil
}

// Upload validates and stores audio bytes, returning the public URL
func (l *LocalAdapter) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	if err := validateUpload(data, contentType); err != nil {
		return "", fmt.Errorf("upload rejected: %w", err)
	}
	if err := l.Put(ctx, path, bytes.NewReader(data)); err != nil {
		return "", err
	}
	return l.PublicURL(path), nil
}

// PublicURL returns the public URL for a stored path
func (l *LocalAdapter) PublicURL(path string) string {
	return fmt.Sprintf("%s/%s/%s", l.publicBaseURL, l.bucket, strings.TrimPrefix(path, "/"))
}

// EnsureBucket provisions the bucket directory if it does not exist
func (l *LocalAdapter) EnsureBucket(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Join(l.basePath, l.bucket), 0755); err != nil {
		return fmt.Errorf("failed to create bucket directory: %w", err)
	}
	return nil
}

// Close cleans up any resources
func (l *LocalAdapter) Close() error {
	// No cleanup needed for local adapter
	return nil
}

// fullPath returns the full filesystem path
func (l *LocalAdapter) fullPath(path string) string {
	return filepath.Join(l.basePath, l.bucket, path)
}
