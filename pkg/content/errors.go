package content

import "errors"

// Sentinel errors shared by every repository implementation. Callers
// check them with errors.Is; implementations wrap them with path
// context:
//
//	if !exists {
//	    return fmt.Errorf("open %s: %w", path, content.ErrNotFound)
//	}
var (
	// ErrNotFound indicates no file or directory exists at the
	// requested path.
	ErrNotFound = errors.New("content not found")

	// ErrInvalidPath indicates the path is malformed or escapes the
	// repository root.
	ErrInvalidPath = errors.New("invalid content path")

	// ErrIsDirectory indicates a file operation on a path that resolves
	// to a directory.
	ErrIsDirectory = errors.New("is a directory")

	// ErrUnavailable indicates the storage backend is temporarily
	// unreachable. Retrying may succeed.
	ErrUnavailable = errors.New("storage unavailable")
)
