// Package attachments is the thin adapter the send path uses to move a
// single image blob in and out of the object store.
package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/kgellert/lagoon-messenger/internal/blobstore"
)

const keyPrefix = "attachments/"

var ErrInvalidID = errors.New("invalid attachment id")

type Adapter struct {
	blobs blobstore.Store
}

func New(blobs blobstore.Store) *Adapter {
	return &Adapter{blobs: blobs}
}

// Upload stores the blob and returns its opaque ID. The object-store key
// is the ID under the attachments/ prefix.
func (a *Adapter) Upload(ctx context.Context, r io.Reader, contentType string) (string, error) {
	const op = "attachments.Upload"

	id := uuid.NewString()
	if err := a.blobs.Put(ctx, key(id), r, contentType); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

// Delete removes an uploaded blob. Used as the compensation step when
// message creation fails after a successful upload.
func (a *Adapter) Delete(ctx context.Context, id string) error {
	const op = "attachments.Delete"

	if err := validateID(id); err != nil {
		return err
	}
	if err := a.blobs.Delete(ctx, key(id)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (a *Adapter) Download(ctx context.Context, id string) (io.ReadCloser, string, error) {
	const op = "attachments.Download"

	if err := validateID(id); err != nil {
		return nil, "", err
	}

	body, contentType, err := a.blobs.Get(ctx, key(id))
	if errors.Is(err, blobstore.ErrBlobNotFound) {
		return nil, "", err
	}
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}

	return body, contentType, nil
}

func key(id string) string {
	return keyPrefix + id
}

func validateID(id string) error {
	if id == "" {
		return ErrInvalidID
	}
	if strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return ErrInvalidID
	}
	return nil
}
