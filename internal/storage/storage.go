// Package storage persists documents. Every backend stores the normalized
// full content of a document together with the metadata shown in file lists.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// KeyPrefix prefixes every stored document: file names, redis keys and s3
// object names.
const KeyPrefix = "qwill-content-"

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// ErrInvalidID is returned for ids that cannot name a document.
var ErrInvalidID = errors.New("invalid document id")

// Meta describes a stored document.
type Meta struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	LastModified time.Time `json:"last_modified"`
	Preview      string    `json:"preview"`
}

// Backend stores documents by id.
type Backend interface {
	Save(ctx context.Context, meta Meta, content string) error
	Load(ctx context.Context, id string) (string, Meta, error)
	Delete(ctx context.Context, id string) error
	// List returns every document, most recently modified first.
	List(ctx context.Context) ([]Meta, error)
}

// Key returns the storage key of a document.
func Key(id string) string {
	return KeyPrefix + id
}

func validID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("%w %q", ErrInvalidID, id)
	}
	return nil
}

func stamp(meta *Meta) {
	if meta.LastModified.IsZero() {
		meta.LastModified = time.Now().UTC()
	}
}

func sortByModified(metas []Meta) {
	sort.SliceStable(metas, func(i, j int) bool {
		return metas[i].LastModified.After(metas[j].LastModified)
	})
}

// Open returns the backend for url:
//
//	/var/lib/qwill, file:///var/lib/qwill   FileBackend
//	redis://host:6379/0                      RedisBackend
//	s3://bucket/prefix                       S3Backend
func Open(ctx context.Context, url string) (Backend, error) {
	switch {
	case strings.HasPrefix(url, "redis://"), strings.HasPrefix(url, "rediss://"):
		return NewRedisBackend(ctx, url)
	case strings.HasPrefix(url, "s3://"):
		bucket, prefix, _ := strings.Cut(strings.TrimPrefix(url, "s3://"), "/")
		if bucket == "" {
			return nil, fmt.Errorf("invalid s3 url: %s", url)
		}
		return NewS3Backend(ctx, bucket, prefix)
	case strings.Contains(url, "://") && !strings.HasPrefix(url, "file://"):
		return nil, fmt.Errorf("unsupported storage url: %s", url)
	default:
		return NewFileBackend(strings.TrimPrefix(url, "file://"))
	}
}
