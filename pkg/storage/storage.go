// Package storage defines the object-store surface a sync run depends on.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Read when the object does not exist.
var ErrNotFound = errors.New("object not found")

// Entry is one child returned by a directory listing.
type Entry struct {
	// Path is the parent directory, store-root relative and shaped as "/{storeID}/dir/".
	Path string `json:"Path"`

	// ObjectName is the entry name inside Path.
	ObjectName string `json:"ObjectName"`

	// Checksum is the hex encoded SHA-256 of the content. Empty when unknown.
	Checksum string `json:"Checksum"`

	IsDirectory bool `json:"IsDirectory"`
}

// Store is a key-addressed file hierarchy.
//
// Implementations are constructed once and never mutated afterwards, so a single
// value is shared by every worker without locking.
type Store interface {
	// ID returns the store identifier (storage zone or bucket name).
	ID() string

	// ListDir lists the direct children of a directory path ("" is the root).
	ListDir(ctx context.Context, path string) ([]Entry, error)

	// Read returns the raw content of a file.
	Read(ctx context.Context, path string) ([]byte, error)

	// Put writes body to path with the given content type.
	Put(ctx context.Context, path string, body []byte, contentType string) error

	// Delete removes the object at path.
	Delete(ctx context.Context, path string) error
}

// DefaultContentType is used for uploads whose type could not be determined.
const DefaultContentType = "application/octet-stream"
