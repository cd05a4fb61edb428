// Package storage keeps uploaded covers, backgrounds and sample PDFs either
// on local disk or in a MinIO/S3 bucket.
package storage

import (
	"context"
	"errors"
	"io"
)

var ErrObjectNotFound = errors.New("object not found")

// ObjectStore is the backend an Uploader writes to. Keys are slash
// separated, for example "covers/<uuid>.png".
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, Info, error)
	Delete(ctx context.Context, key string) error
}

// Info describes a stored object.
type Info struct {
	Size        int64
	ContentType string
}
