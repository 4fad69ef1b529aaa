// Package fs implements the content repository on a local filesystem
// directory.
package fs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ntufar/fsgate/pkg/content"
)

// Repository serves file content from a directory tree rooted at a
// base path.
//
// Thread safety: filesystem operations are safe at the OS level; the
// repository itself holds no mutable state.
type Repository struct {
	basePath string
}

// New creates a filesystem repository rooted at basePath, creating the
// directory if it does not exist.
func New(ctx context.Context, basePath string) (*Repository, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating base directory: %w", err)
	}

	return &Repository{basePath: basePath}, nil
}

// resolve maps a repository path onto the filesystem, rejecting paths
// that escape the root.
func (r *Repository) resolve(p string) (string, error) {
	cleaned := path.Clean("/" + p)
	if cleaned == "/.." || strings.HasPrefix(cleaned, "/../") {
		return "", fmt.Errorf("%s: %w", p, content.ErrInvalidPath)
	}
	return filepath.Join(r.basePath, filepath.FromSlash(cleaned)), nil
}

// Open returns a reader for the file at the given path. The caller
// must close it.
func (r *Repository) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	full, err := r.resolve(p)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("open %s: %w", p, content.ErrNotFound)
		}
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	return file, nil
}

// Size returns the file's size via a stat call, without reading it.
func (r *Repository) Size(ctx context.Context, p string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	full, err := r.resolve(p)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("stat %s: %w", p, content.ErrNotFound)
		}
		return 0, fmt.Errorf("stat %s: %w", p, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("stat %s: %w", p, content.ErrIsDirectory)
	}
	return uint64(info.Size()), nil
}

// List returns the directory's entries sorted by name.
func (r *Repository) List(ctx context.Context, p string) ([]content.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	full, err := r.resolve(p)
	if err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("list %s: %w", p, content.ErrNotFound)
		}
		return nil, fmt.Errorf("list %s: %w", p, err)
	}

	entries := make([]content.Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		e := content.Entry{
			Name:  de.Name(),
			IsDir: de.IsDir(),
		}
		if info, err := de.Info(); err == nil {
			e.ModTime = info.ModTime()
			if !de.IsDir() {
				e.Size = uint64(info.Size())
			}
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}
