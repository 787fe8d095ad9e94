// Package storage defines the downloads directory where decrypted files are exported.
package storage

import "github.com/starford/hedgey/internal/models"

// Provider is the interface for exported file operations.
type Provider interface {
	// List returns metadata for every regular file under dir (relative to root).
	List(dir string) ([]models.ExportMetadata, error)
	// Read returns the raw bytes of the file at path (relative to root).
	Read(path string) ([]byte, error)
	// WriteNew writes content without replacing an existing file, picking
	// "name (n).ext" on collision, and returns the path written.
	WriteNew(path string, content []byte) (string, error)
	// Delete removes the file at path (relative to root).
	Delete(path string) error
}
