package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader retrieves data from object storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// Archiver moves old check-log rows from the database to cold storage.
type Archiver interface {
	ArchiveChecks(ctx context.Context, before time.Time) (ArchiveResult, error)
}

// ArchiveResult summarises one archive run.
type ArchiveResult struct {
	Path     string
	Archived int64
	Deleted  int64
}
