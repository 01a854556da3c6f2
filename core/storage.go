package core

import (
	"context"
	"io"
)

// ErrObjectNotFound is returned by a FileStorage when nothing is stored at the path.
var ErrObjectNotFound = NewError(ErrNotFound, "file not found")

// FileStorage stores objects by path within a bucket.
type FileStorage interface {
	Upload(ctx context.Context, path string, r io.Reader, contentType string) error
	Download(ctx context.Context, path string) (io.ReadCloser, error)
	Remove(ctx context.Context, path string) error
}
