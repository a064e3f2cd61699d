package attachments

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgellert/lagoon-messenger/internal/blobstore"
	"github.com/kgellert/lagoon-messenger/internal/blobstore/memory"
)

func TestUploadDownloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	adapter := New(memory.New())

	id, err := adapter.Upload(ctx, strings.NewReader("png bytes"), "image/png")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NotContains(t, id, "/", "IDs are opaque, the storage prefix stays internal")

	body, contentType, err := adapter.Download(ctx, id)
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "png bytes", string(data))
	assert.Equal(t, "image/png", contentType)
}

func TestDeleteRemovesBlob(t *testing.T) {
	ctx := context.Background()
	blobs := memory.New()
	adapter := New(blobs)

	id, err := adapter.Upload(ctx, strings.NewReader("x"), "application/octet-stream")
	require.NoError(t, err)
	require.Equal(t, 1, blobs.Len())

	require.NoError(t, adapter.Delete(ctx, id))
	assert.Zero(t, blobs.Len())

	_, _, err = adapter.Download(ctx, id)
	assert.ErrorIs(t, err, blobstore.ErrBlobNotFound)
}

func TestIDValidation(t *testing.T) {
	ctx := context.Background()
	adapter := New(memory.New())

	for _, id := range []string{"", "a/b", `a\b`, "../escape"} {
		_, _, err := adapter.Download(ctx, id)
		assert.ErrorIs(t, err, ErrInvalidID, "id %q", id)
		assert.ErrorIs(t, adapter.Delete(ctx, id), ErrInvalidID, "id %q", id)
	}
}
