package ports

import (
	"context"
	"io"
)

// Object is a stored video or thumbnail. Body is only set by Get and must be
// closed by the caller.
type Object struct {
	Key         string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// StorageProvider holds rendered videos and thumbnails. Keys are slash
// separated, e.g. "videos/ancient-egypt-1a2b3c4d.mp4".
type StorageProvider interface {
	Provider() string

	// Put stores r and returns the key Get and Delete expect. That is the
	// input key for localfs and the Drive file id for gdrive.
	Put(ctx context.Context, key, contentType string, r io.Reader) (Object, error)
	Get(ctx context.Context, key string) (Object, error)
	// Delete of a missing object succeeds.
	Delete(ctx context.Context, key string) error

	Ping(ctx context.Context) error
}
