package messages

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgellert/lagoon-messenger/internal/docstore/memory"
)

func TestAppendRequiresTextOrAttachment(t *testing.T) {
	ctx := context.Background()
	store := NewStore(memory.New(nil))

	_, err := store.Append(ctx, "room-1", "alice", "", "")
	assert.ErrorIs(t, err, ErrTextOrAttachmentRequired)

	_, err = store.Append(ctx, "room-1", "alice", "   \t", "")
	assert.ErrorIs(t, err, ErrTextOrAttachmentRequired)

	m, err := store.Append(ctx, "room-1", "alice", "", "att-1")
	require.NoError(t, err)
	assert.Equal(t, "att-1", m.AttachmentID)
	assert.False(t, m.IsRead, "new messages start unread")
	assert.False(t, m.CreatedAt.IsZero())
}

func TestPageOrderingAndHasMore(t *testing.T) {
	ctx := context.Background()
	store := NewStore(memory.New(nil))

	for i := 0; i < 5; i++ {
		_, err := store.Append(ctx, "room-1", "alice", fmt.Sprintf("msg %d", i), "")
		require.NoError(t, err)
	}
	_, err := store.Append(ctx, "room-2", "bob", "elsewhere", "")
	require.NoError(t, err)

	// newest two
	page, total, hasMore, err := store.Page(ctx, "room-1", PageOpts{Limit: 2, Desc: true})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.True(t, hasMore)
	require.Len(t, page, 2)
	assert.Equal(t, "msg 4", page[0].Text)
	assert.Equal(t, "msg 3", page[1].Text)

	// next two back
	page, _, hasMore, err = store.Page(ctx, "room-1", PageOpts{Limit: 2, Offset: 2, Desc: true})
	require.NoError(t, err)
	assert.True(t, hasMore)
	require.Len(t, page, 2)
	assert.Equal(t, "msg 2", page[0].Text)

	// final slice exhausts the room
	page, _, hasMore, err = store.Page(ctx, "room-1", PageOpts{Limit: 2, Offset: 4, Desc: true})
	require.NoError(t, err)
	assert.False(t, hasMore)
	require.Len(t, page, 1)
	assert.Equal(t, "msg 0", page[0].Text)
}

func TestPageUnreadFromPeer(t *testing.T) {
	ctx := context.Background()
	store := NewStore(memory.New(nil))

	fromPeer, err := store.Append(ctx, "room-1", "bob", "unread from bob", "")
	require.NoError(t, err)
	mine, err := store.Append(ctx, "room-1", "alice", "my own", "")
	require.NoError(t, err)
	readOne, err := store.Append(ctx, "room-1", "bob", "already read", "")
	require.NoError(t, err)
	require.NoError(t, store.SetRead(ctx, readOne.ID))

	page, total, _, err := store.Page(ctx, "room-1", PageOpts{
		Limit:         10,
		OnlyUnread:    true,
		ExcludeSender: "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, page, 1)
	assert.Equal(t, fromPeer.ID, page[0].ID)
	assert.NotEqual(t, mine.ID, page[0].ID)
}

func TestSetReadIsIdempotent(t *testing.T) {
	ctx := context.Background()
	docs := memory.New(nil)
	store := NewStore(docs)

	m, err := store.Append(ctx, "room-1", "bob", "hello", "")
	require.NoError(t, err)

	require.NoError(t, store.SetRead(ctx, m.ID))

	doc, err := docs.Get(ctx, Collection, m.ID)
	require.NoError(t, err)
	first := doc.UpdatedAt

	// a second mark is a no-op and does not rewrite the document
	require.NoError(t, store.SetRead(ctx, m.ID))

	doc, err = docs.Get(ctx, Collection, m.ID)
	require.NoError(t, err)
	assert.Equal(t, first, doc.UpdatedAt)

	assert.ErrorIs(t, store.SetRead(ctx, "missing"), ErrMessageNotFound)
}

func TestRemoveChecksOwnership(t *testing.T) {
	ctx := context.Background()
	store := NewStore(memory.New(nil))

	m, err := store.Append(ctx, "room-1", "alice", "mine", "")
	require.NoError(t, err)

	assert.ErrorIs(t, store.Remove(ctx, m.ID, "bob"), ErrNotSender)

	require.NoError(t, store.Remove(ctx, m.ID, "alice"))
	assert.ErrorIs(t, store.Remove(ctx, m.ID, "alice"), ErrMessageNotFound)

	_, total, _, err := store.Page(ctx, "room-1", PageOpts{Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
}
