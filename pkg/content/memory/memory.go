// Package memory implements an in-memory content repository used in
// tests and development setups.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ntufar/fsgate/pkg/content"
)

// Repository stores file content in a map keyed by cleaned path.
//
// Directories are implicit: listing a path returns the direct children
// derived from the stored file paths. All data is lost when the
// repository is garbage collected.
//
// Thread safety: protected by an RWMutex; readers get a copy of the
// content, so later writes never race with an open reader.
type Repository struct {
	mu    sync.RWMutex
	files map[string]file
}

type file struct {
	data    []byte
	modTime time.Time
}

// New creates an empty in-memory repository.
func New() *Repository {
	return &Repository{files: make(map[string]file)}
}

func clean(p string) string {
	return path.Clean("/" + p)
}

// Put stores content at the given path, overwriting any previous
// content.
func (r *Repository) Put(p string, data []byte) {
	cp := clean(p)
	buf := make([]byte, len(data))
	copy(buf, data)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[cp] = file{data: buf, modTime: time.Now()}
}

// Open returns a reader over a copy of the stored content.
func (r *Repository) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	f, ok := r.files[clean(p)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("open %s: %w", p, content.ErrNotFound)
	}

	buf := make([]byte, len(f.data))
	copy(buf, f.data)
	return io.NopCloser(bytes.NewReader(buf)), nil
}

// Size returns the stored content's length.
func (r *Repository) Size(ctx context.Context, p string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.files[clean(p)]
	if !ok {
		return 0, fmt.Errorf("stat %s: %w", p, content.ErrNotFound)
	}
	return uint64(len(f.data)), nil
}

// List derives the direct children of the given path from the stored
// file paths, sorted by name.
func (r *Repository) List(ctx context.Context, p string) ([]content.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := clean(p)
	if prefix != "/" {
		prefix += "/"
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]content.Entry)
	for fp, f := range r.files {
		if !strings.HasPrefix(fp, prefix) {
			continue
		}
		rest := fp[len(prefix):]
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			// Implicit subdirectory
			name := rest[:i]
			if _, ok := seen[name]; !ok {
				seen[name] = content.Entry{Name: name, IsDir: true}
			}
			continue
		}
		seen[rest] = content.Entry{
			Name:    rest,
			Size:    uint64(len(f.data)),
			ModTime: f.modTime,
		}
	}

	if len(seen) == 0 && prefix != "/" {
		return nil, fmt.Errorf("list %s: %w", p, content.ErrNotFound)
	}

	entries := make([]content.Entry, 0, len(seen))
	for _, e := range seen {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}
