// Package models defines the domain types shared by the filesystem, the API and the tools.
package models

import (
	"path"
	"strings"
	"time"
)

// Record kinds.
const (
	KindNote = "note"
	KindFile = "file"
)

// Record is a persisted filesystem entry (a note or an uploaded file).
// Blob holds ciphertext whenever Enc is true; it is never serialized to clients.
type Record struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Type      string    `json:"type"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
	Enc       bool      `json:"enc"`
	IV        string    `json:"iv,omitempty"`
	Blob      []byte    `json:"-"`
}

// Ext returns the lowercase extension of the record name without the dot.
func (r *Record) Ext() string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(r.Name), "."))
}

// ExportMetadata describes a decrypted file written to the downloads directory.
type ExportMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
