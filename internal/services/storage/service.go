package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/phambaophuc/blob-thumbnail/internal/config"
)

var (
	// ErrNotFound is returned by Open when the source object does not exist.
	ErrNotFound = errors.New("blob not found")
	// ErrInvalidContainer is returned by EnsureContainer when the backend
	// rejects the container name itself. Retrying cannot help.
	ErrInvalidContainer = errors.New("invalid container name")
)

// BlobRef addresses one object in a blob store.
type BlobRef struct {
	Container string
	Key       string
}

func (r BlobRef) String() string {
	return r.Container + "/" + r.Key
}

// Ext returns the key's extension including the leading dot.
func (r BlobRef) Ext() string {
	return path.Ext(r.Key)
}

// BlobStore is the read and write side of the object store thumbnails are
// generated from and uploaded to.
type BlobStore interface {
	// Open returns the object's content. The caller closes it.
	Open(ctx context.Context, ref BlobRef) (io.ReadCloser, error)
	// EnsureContainer creates the container if it does not exist yet.
	EnsureContainer(ctx context.Context, name string) error
	// Upload writes data to ref, replacing any existing object.
	Upload(ctx context.Context, ref BlobRef, data []byte, contentType string) error
	Ping(ctx context.Context) error
}

// NewStorageService builds the blob store selected by cfg.Storage.Backend.
func NewStorageService(ctx context.Context, cfg *config.Config) (BlobStore, error) {
	switch cfg.Storage.Backend {
	case config.BackendAzure:
		return NewAzureStore(cfg.Azure.ConnectionString)
	case config.BackendS3:
		return NewS3Store(ctx, cfg.S3)
	case config.BackendSupabase:
		return NewSupabaseStore(cfg.Supabase.URL, cfg.Supabase.KEY), nil
	case config.BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
