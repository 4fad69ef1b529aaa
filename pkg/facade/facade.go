// Package facade is the operation gate upstream handlers go through:
// every unit of work runs as admission check, begin, work, end, and
// large-payload operations open streaming sessions instead of holding
// a request slot for their whole transfer.
package facade

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ntufar/fsgate/pkg/admission"
	"github.com/ntufar/fsgate/pkg/content"
	"github.com/ntufar/fsgate/pkg/streaming"
)

// ErrShuttingDown is returned for every operation once the gate
// stopped accepting work.
var ErrShuttingDown = errors.New("service is shutting down")

// DeniedError carries the admission decision behind a denial, so
// callers can surface the machine-readable reason and the retry hint.
type DeniedError struct {
	Decision admission.Decision
}

func (e *DeniedError) Error() string {
	if e.Decision.RetryAfterSeconds > 0 {
		return fmt.Sprintf("admission denied (%s): %s (retry after %ds)",
			e.Decision.Reason, e.Decision.Message, e.Decision.RetryAfterSeconds)
	}
	return fmt.Sprintf("admission denied (%s): %s", e.Decision.Reason, e.Decision.Message)
}

// Gate fronts the admission controller and the streaming manager for
// upstream operation handlers.
//
// Thread safety: all methods are safe for concurrent use.
type Gate struct {
	admission *admission.Controller
	streams   *streaming.Manager
	repo      content.Repository

	// now is the time source, replaceable in tests
	now func() time.Time

	// stopped flips once when shutdown stops new requests
	stopped atomic.Bool
}

// New creates a gate over the given controller, session manager, and
// content repository.
func New(ctrl *admission.Controller, mgr *streaming.Manager, repo content.Repository) *Gate {
	return &Gate{
		admission: ctrl,
		streams:   mgr,
		repo:      repo,
		now:       time.Now,
	}
}

// StopAccepting makes every subsequent operation fail with
// ErrShuttingDown. Wired into the shutdown sequence's
// stopping-new-requests phase. Idempotent.
func (g *Gate) StopAccepting() {
	g.stopped.Store(true)
}

// Accepting reports whether the gate still admits new operations.
func (g *Gate) Accepting() bool {
	return !g.stopped.Load()
}

// Do runs one unit of work under admission control: check, begin, fn,
// end. A denial returns *DeniedError without invoking fn.
func (g *Gate) Do(ctx context.Context, id admission.Identity, op admission.Operation, opCtx admission.OperationContext, fn func(ctx context.Context) error) error {
	if g.stopped.Load() {
		return ErrShuttingDown
	}

	decision := g.admission.CheckAdmission(id, op, opCtx)
	if !decision.Allowed {
		return &DeniedError{Decision: decision}
	}

	requestID := g.admission.BeginRequest(id, op)
	start := g.now()
	err := fn(ctx)
	g.admission.EndRequest(requestID, id, g.now().Sub(start).Milliseconds(), err == nil)
	return err
}

// ReadFile opens an admission-checked streaming read of the file.
//
// The operation context carries the file size, so per-operation size
// limits apply before any resource is opened. The returned session is
// tracked by the streaming manager rather than the request log, so a
// long transfer does not pin a request slot.
func (g *Gate) ReadFile(ctx context.Context, id admission.Identity, filePath string, opts streaming.StreamOptions) (*streaming.Session, error) {
	if g.stopped.Load() {
		return nil, ErrShuttingDown
	}

	size, err := g.repo.Size(ctx, filePath)
	if err != nil {
		return nil, err
	}

	decision := g.admission.CheckAdmission(id, admission.OpReadFile, admission.OperationContext{
		"file_size": size,
	})
	if !decision.Allowed {
		return nil, &DeniedError{Decision: decision}
	}

	return g.streams.OpenFileStream(ctx, filePath, opts)
}

// ListDirectory opens an admission-checked pager over the directory's
// entries.
func (g *Gate) ListDirectory(ctx context.Context, id admission.Identity, dirPath string, opts streaming.StreamOptions) (*streaming.Pager, error) {
	if g.stopped.Load() {
		return nil, ErrShuttingDown
	}

	decision := g.admission.CheckAdmission(id, admission.OpListDirectory, admission.OperationContext{
		"depth": pathDepth(dirPath),
	})
	if !decision.Allowed {
		return nil, &DeniedError{Decision: decision}
	}

	entries, err := g.repo.List(ctx, dirPath)
	if err != nil {
		return nil, err
	}

	items := make([]any, len(entries))
	for i, e := range entries {
		items[i] = e
	}

	return g.streams.StreamDirectoryListing(ctx, uint64(len(items)), sliceFetch(items), opts)
}

// SearchFiles opens an admission-checked pager over files whose name
// contains the query, matched case-insensitively under root.
func (g *Gate) SearchFiles(ctx context.Context, id admission.Identity, root, query string, maxResults int, opts streaming.StreamOptions) (*streaming.Pager, error) {
	if g.stopped.Load() {
		return nil, ErrShuttingDown
	}

	decision := g.admission.CheckAdmission(id, admission.OpSearchFiles, admission.OperationContext{
		"max_results": maxResults,
	})
	if !decision.Allowed {
		return nil, &DeniedError{Decision: decision}
	}

	matches, err := g.search(ctx, root, strings.ToLower(query), maxResults)
	if err != nil {
		return nil, err
	}

	return g.streams.StreamSearchResults(ctx, uint64(len(matches)), sliceFetch(matches), opts)
}

// GetFileMetadata returns the entry description for a path under
// admission control.
func (g *Gate) GetFileMetadata(ctx context.Context, id admission.Identity, p string) (content.Entry, error) {
	var entry content.Entry
	err := g.Do(ctx, id, admission.OpGetFileMetadata, nil, func(ctx context.Context) error {
		size, err := g.repo.Size(ctx, p)
		if err == nil {
			entry = content.Entry{Name: path.Base(p), Size: size}
			return nil
		}
		if errors.Is(err, content.ErrIsDirectory) {
			entry = content.Entry{Name: path.Base(p), IsDir: true}
			return nil
		}
		return err
	})
	return entry, err
}

// CheckPermissions runs a permission probe under admission control.
// The gate has no ACL model; the probe verifies the path exists and
// accounts the operation against the identity's quota.
func (g *Gate) CheckPermissions(ctx context.Context, id admission.Identity, p string) error {
	return g.Do(ctx, id, admission.OpCheckPermissions, nil, func(ctx context.Context) error {
		_, err := g.GetFileMetadataUnchecked(ctx, p)
		return err
	})
}

// GetFileMetadataUnchecked resolves a path without admission
// accounting. Internal helper for composite operations that already
// went through the gate.
func (g *Gate) GetFileMetadataUnchecked(ctx context.Context, p string) (content.Entry, error) {
	size, err := g.repo.Size(ctx, p)
	if err == nil {
		return content.Entry{Name: path.Base(p), Size: size}, nil
	}
	if errors.Is(err, content.ErrIsDirectory) {
		return content.Entry{Name: path.Base(p), IsDir: true}, nil
	}
	return content.Entry{}, err
}

// search walks the tree under root collecting paths whose base name
// contains the lowercased query, stopping at the result cap.
func (g *Gate) search(ctx context.Context, root, query string, limit int) ([]any, error) {
	if limit <= 0 {
		limit = 1000
	}

	var matches []any
	var walk func(dir string) error
	walk = func(dir string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(matches) >= limit {
			return nil
		}

		entries, err := g.repo.List(ctx, dir)
		if err != nil {
			return err
		}
		for _, e := range entries {
			full := path.Join(dir, e.Name)
			if strings.Contains(strings.ToLower(e.Name), query) {
				matches = append(matches, full)
				if len(matches) >= limit {
					return nil
				}
			}
			if e.IsDir {
				if err := walk(full); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := walk(path.Clean("/" + root)); err != nil {
		return nil, err
	}
	return matches, nil
}

func pathDepth(p string) int {
	cleaned := strings.Trim(path.Clean("/"+p), "/")
	if cleaned == "" {
		return 0
	}
	return strings.Count(cleaned, "/") + 1
}

// sliceFetch adapts a pre-collected item slice to the pager's fetch
// contract.
func sliceFetch(items []any) streaming.FetchFunc {
	return func(_ context.Context, offset, limit int) ([]any, error) {
		if offset >= len(items) {
			return nil, nil
		}
		end := offset + limit
		if end > len(items) {
			end = len(items)
		}
		return items[offset:end], nil
	}
}
