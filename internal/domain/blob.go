package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader retrieves data from object storage. Get returns ErrNotFound
// for a missing object.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
}

// Archiver moves records out of the bounded stores into cold storage. Both
// methods return the object path written, or "" when there was nothing to
// archive.
type Archiver interface {
	ArchiveOpportunities(ctx context.Context, records []Opportunity, at time.Time) (string, error)
	ArchiveHistory(ctx context.Context, series map[string][]PriceSample, at time.Time) (string, error)
}
