// Package s3 implements the content repository on Amazon S3 or any
// S3-compatible object store.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/ntufar/fsgate/pkg/content"
)

// Repository serves file content from an S3 bucket. Repository paths
// map directly onto object keys under an optional key prefix, so the
// bucket mirrors the served tree and stays human-inspectable.
//
// Directories are S3 common prefixes: List issues a delimiter query and
// merges objects with prefixes.
//
// Thread safety: safe for concurrent use; the underlying SDK client is
// concurrency-safe.
type Repository struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// Config configures the S3 repository.
type Config struct {
	// Client is the configured S3 client
	Client *s3.Client

	// Bucket is the bucket name; it must already exist
	Bucket string

	// KeyPrefix is an optional prefix prepended to every object key,
	// for example "fsgate/data/"
	KeyPrefix string
}

// New creates an S3 repository and verifies bucket access with a
// HeadBucket call.
func New(ctx context.Context, cfg Config) (*Repository, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("accessing bucket %q: %w", cfg.Bucket, err)
	}

	return &Repository{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

// objectKey maps a repository path onto the object key, rejecting
// paths escaping the tree.
func (r *Repository) objectKey(p string) (string, error) {
	cleaned := path.Clean("/" + p)
	if cleaned == "/.." || strings.HasPrefix(cleaned, "/../") {
		return "", fmt.Errorf("%s: %w", p, content.ErrInvalidPath)
	}
	return r.keyPrefix + strings.TrimPrefix(cleaned, "/"), nil
}

// isNotFound reports whether an SDK error means the object does not
// exist. GetObject surfaces NoSuchKey; HeadObject surfaces a generic
// NotFound API error.
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound"
}

// Open downloads the object and returns its body for streaming. The
// caller must close it.
func (r *Repository) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key, err := r.objectKey(p)
	if err != nil {
		return nil, err
	}

	result, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("open %s: %w", p, content.ErrNotFound)
		}
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	return result.Body, nil
}

// Size returns the object's size via a HEAD request, without
// downloading it.
func (r *Repository) Size(ctx context.Context, p string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	key, err := r.objectKey(p)
	if err != nil {
		return 0, err
	}

	result, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("stat %s: %w", p, content.ErrNotFound)
		}
		return 0, fmt.Errorf("stat %s: %w", p, err)
	}

	if result.ContentLength == nil {
		return 0, fmt.Errorf("stat %s: content length not available", p)
	}
	return uint64(*result.ContentLength), nil
}

// List returns the direct children of the given path using a
// delimiter listing: objects become files, common prefixes become
// directories.
func (r *Repository) List(ctx context.Context, p string) ([]content.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key, err := r.objectKey(p)
	if err != nil {
		return nil, err
	}
	prefix := key
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var entries []content.Entry
	paginator := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(r.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", p, err)
		}

		for _, cp := range page.CommonPrefixes {
			if cp.Prefix == nil {
				continue
			}
			name := strings.TrimSuffix(strings.TrimPrefix(*cp.Prefix, prefix), "/")
			entries = append(entries, content.Entry{Name: name, IsDir: true})
		}

		for _, obj := range page.Contents {
			if obj.Key == nil || *obj.Key == prefix {
				continue
			}
			e := content.Entry{Name: strings.TrimPrefix(*obj.Key, prefix)}
			if obj.Size != nil {
				e.Size = uint64(*obj.Size)
			}
			if obj.LastModified != nil {
				e.ModTime = obj.LastModified.In(time.UTC)
			}
			entries = append(entries, e)
		}
	}

	if len(entries) == 0 && prefix != r.keyPrefix {
		return nil, fmt.Errorf("list %s: %w", p, content.ErrNotFound)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}
