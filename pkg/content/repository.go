// Package content defines the file content repository consumed by the
// streaming session manager and the request facade, together with its
// filesystem, in-memory, and S3 implementations.
package content

import (
	"context"
	"io"
	"time"
)

// Entry describes one child of a directory.
type Entry struct {
	// Name is the entry's base name, without the parent path
	Name string

	// Size is the file size in bytes, 0 for directories
	Size uint64

	// IsDir reports whether the entry is a directory
	IsDir bool

	// ModTime is the last modification time, zero when the backend
	// does not track it
	ModTime time.Time
}

// Repository defines read access to file content by path.
//
// Paths are slash-separated and interpreted relative to the
// repository's root. Implementations must reject paths escaping the
// root with ErrInvalidPath.
type Repository interface {
	// Open returns a reader for the file at the given path.
	// The caller owns the returned reader and must close it.
	// Returns ErrNotFound if no file exists at the path.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Size returns the file's size in bytes without reading it.
	// Returns ErrNotFound if no file exists at the path.
	Size(ctx context.Context, path string) (uint64, error)

	// List returns the entries of the directory at the given path,
	// sorted by name. Returns ErrNotFound if the directory does not
	// exist.
	List(ctx context.Context, path string) ([]Entry, error)
}
