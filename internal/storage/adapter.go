// Package storage abstracts the durable object store holding raw and
// processed episode audio.
package storage

import (
	"context"
	"fmt"
	"io"
)

// MaxUploadSize is the per-object ceiling enforced on uploads.
const MaxUploadSize = 52428800 // 50MB

// allowedAudioTypes is the MIME allow-list for uploaded audio.
var allowedAudioTypes = map[string]bool{
	"audio/mpeg":  true,
	"audio/mp3":   true,
	"audio/wav":   true,
	"audio/x-wav": true,
	"audio/wave":  true,
	"audio/ogg":   true,
	"audio/aac":   true,
	"audio/mp4":   true,
}

// Adapter defines the interface for storage backends
type Adapter interface {
	// Put stores data at the given path
	Put(ctx context.Context, path string, data io.Reader) error

	// Get retrieves data from the given path
	Get(ctx context.Context, path string) (io.ReadCloser, error)

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)

	// Upload validates and stores audio bytes, returning the public URL
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)

	// PublicURL returns the public URL for a stored path
	PublicURL(path string) string

	// EnsureBucket provisions the backing bucket if it does not exist
	EnsureBucket(ctx context.Context) error

	// Close cleans up any resources
	Close() error
}

// validateUpload enforces the size ceiling and audio MIME allow-list
// shared by every backend.
func validateUpload(data []byte, contentType string) error {
	if len(data) == 0 {
		return fmt.Errorf("upload is empty")
	}
	if len(data) > MaxUploadSize {
		return fmt.Errorf("upload of %d bytes exceeds the %d byte limit", len(data), MaxUploadSize)
	}
	if !allowedAudioTypes[contentType] {
		return fmt.Errorf("content type %q is not an allowed audio type", contentType)
	}
	return nil
}
