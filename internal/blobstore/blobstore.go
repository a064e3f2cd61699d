// Package blobstore defines the object-store collaborator: binary blobs
// addressed by opaque keys.
package blobstore

import (
	"context"
	"errors"
	"io"
)

var ErrBlobNotFound = errors.New("blob not found")

type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	// Get returns the blob body and its content type. The caller closes the body.
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, key string) error
}
