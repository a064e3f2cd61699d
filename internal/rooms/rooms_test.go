package rooms

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgellert/lagoon-messenger/internal/docstore/memory"
	"github.com/kgellert/lagoon-messenger/internal/messages"
)

func newDirectory() (*Directory, *messages.Store) {
	store := memory.New(nil)
	return NewDirectory(store, 0), messages.NewStore(store)
}

func TestResolveIsIdempotentAndCanonical(t *testing.T) {
	ctx := context.Background()
	dir, _ := newDirectory()

	room, created, err := dir.Resolve(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, []string{"alice", "bob"}, room.Participants)
	assert.Equal(t, int64(0), room.UnreadCount["alice"])
	assert.Equal(t, int64(0), room.UnreadCount["bob"])

	// same pair in either order resolves to the same room
	again, created, err := dir.Resolve(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, room.ID, again.ID)

	other, created, err := dir.Resolve(ctx, "alice", "carol")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, room.ID, other.ID)
}

func TestResolveRejectsBadPairs(t *testing.T) {
	ctx := context.Background()
	dir, _ := newDirectory()

	_, _, err := dir.Resolve(ctx, "alice", "alice")
	assert.ErrorIs(t, err, ErrSameUser)

	_, _, err = dir.Resolve(ctx, "", "bob")
	assert.ErrorIs(t, err, ErrEmptyUser)
}

func TestRecordMessageAndMarkRead(t *testing.T) {
	ctx := context.Background()
	dir, _ := newDirectory()

	room, _, err := dir.Resolve(ctx, "alice", "bob")
	require.NoError(t, err)

	require.NoError(t, dir.RecordMessage(ctx, room.ID, "alice"))
	require.NoError(t, dir.RecordMessage(ctx, room.ID, "alice"))

	got, err := dir.Get(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.UnreadCount["bob"], "only the recipient is incremented")
	assert.Equal(t, int64(0), got.UnreadCount["alice"])
	assert.False(t, got.LastMessageTime.IsZero())

	require.NoError(t, dir.MarkRead(ctx, room.ID, "bob"))

	got, err = dir.Get(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.UnreadCount["bob"])

	assert.ErrorIs(t, dir.MarkRead(ctx, room.ID, "mallory"), ErrNotParticipant)
	assert.ErrorIs(t, dir.RecordMessage(ctx, room.ID, "mallory"), ErrNotParticipant)
	assert.ErrorIs(t, dir.MarkRead(ctx, "missing", "bob"), ErrRoomNotFound)
}

func TestUnreadTotalSumsAcrossRooms(t *testing.T) {
	ctx := context.Background()
	dir, _ := newDirectory()

	withBob, _, err := dir.Resolve(ctx, "alice", "bob")
	require.NoError(t, err)
	withCarol, _, err := dir.Resolve(ctx, "alice", "carol")
	require.NoError(t, err)

	require.NoError(t, dir.RecordMessage(ctx, withBob.ID, "bob"))
	require.NoError(t, dir.RecordMessage(ctx, withCarol.ID, "carol"))
	require.NoError(t, dir.RecordMessage(ctx, withCarol.ID, "carol"))

	total, err := dir.UnreadTotal(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	total, err = dir.UnreadTotal(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestListReturnsOwnRoomsOnly(t *testing.T) {
	ctx := context.Background()
	dir, _ := newDirectory()

	_, _, err := dir.Resolve(ctx, "alice", "bob")
	require.NoError(t, err)
	_, _, err = dir.Resolve(ctx, "bob", "carol")
	require.NoError(t, err)

	rs, err := dir.List(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, rs, 1)

	rs, err = dir.List(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, rs, 2)
}

func TestDeleteRequiresParticipantAndPurgesMessages(t *testing.T) {
	ctx := context.Background()
	dir, msgStore := newDirectory()

	room, _, err := dir.Resolve(ctx, "alice", "bob")
	require.NoError(t, err)

	_, err = msgStore.Append(ctx, room.ID, "alice", "hello", "")
	require.NoError(t, err)
	_, err = msgStore.Append(ctx, room.ID, "bob", "hi", "")
	require.NoError(t, err)

	assert.ErrorIs(t, dir.Delete(ctx, room.ID, "mallory"), ErrNotParticipant)

	require.NoError(t, dir.Delete(ctx, room.ID, "alice"))

	_, err = dir.Get(ctx, room.ID)
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, total, _, err := msgStore.Page(ctx, room.ID, messages.PageOpts{Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)

	assert.ErrorIs(t, dir.Delete(ctx, room.ID, "alice"), ErrRoomNotFound)
}
