// Package rooms resolves the canonical chat room for a pair of users and
// keeps the per-participant unread counters.
package rooms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kgellert/lagoon-messenger/internal/docstore"
	"github.com/kgellert/lagoon-messenger/internal/messages"
)

const Collection = "chat_rooms"

const defaultFetchCeiling = 100

type Room struct {
	ID              string           `json:"id"`
	Participants    []string         `json:"participants"`
	LastMessageTime time.Time        `json:"lastMessageTime"`
	UnreadCount     map[string]int64 `json:"unreadCount"`
}

// Other returns the participant that is not userID.
func (r Room) Other(userID string) string {
	for _, p := range r.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

func (r Room) HasParticipant(userID string) bool {
	for _, p := range r.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// roomData is the stored document payload; the ID lives on the document.
type roomData struct {
	Participants    []string         `json:"participants"`
	LastMessageTime time.Time        `json:"lastMessageTime"`
	UnreadCount     map[string]int64 `json:"unreadCount"`
}

type Directory struct {
	store        docstore.Store
	fetchCeiling int
}

// NewDirectory builds a directory over the document store. fetchCeiling
// bounds how many rooms UnreadTotal and List will fetch; <= 0 selects the
// default.
func NewDirectory(store docstore.Store, fetchCeiling int) *Directory {
	if fetchCeiling <= 0 {
		fetchCeiling = defaultFetchCeiling
	}
	return &Directory{store: store, fetchCeiling: fetchCeiling}
}

// CanonicalPair orders two user IDs ascending, so (A,B) and (B,A) name the
// same room.
func CanonicalPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// Resolve returns the room for the unordered pair (userA, userB), creating
// it when absent. The second return is true when the room was just created.
//
// Two concurrent resolutions can both miss the lookup and create two rooms;
// the store offers no uniqueness constraint to close that window. Callers
// treat the first room returned by the canonical query as authoritative.
func (d *Directory) Resolve(ctx context.Context, userA, userB string) (Room, bool, error) {
	const op = "rooms.Resolve"

	if userA == "" || userB == "" {
		return Room{}, false, ErrEmptyUser
	}
	if userA == userB {
		return Room{}, false, ErrSameUser
	}

	first, second := CanonicalPair(userA, userB)

	docs, _, err := d.store.List(ctx, Collection, docstore.Query{
		Filters: []docstore.Filter{
			docstore.Contains("participants", first),
			docstore.Contains("participants", second),
		},
		Limit: 1,
	})
	if err != nil {
		return Room{}, false, fmt.Errorf("%s: lookup: %w", op, err)
	}

	if len(docs) > 0 {
		room, err := roomFromDocument(docs[0])
		if err != nil {
			return Room{}, false, fmt.Errorf("%s: %w", op, err)
		}
		return room, false, nil
	}

	doc, err := d.store.Create(ctx, Collection, roomData{
		Participants: []string{first, second},
		UnreadCount:  map[string]int64{first: 0, second: 0},
	})
	if err != nil {
		return Room{}, false, fmt.Errorf("%s: create: %w", op, err)
	}

	room, err := roomFromDocument(doc)
	if err != nil {
		return Room{}, false, fmt.Errorf("%s: %w", op, err)
	}

	return room, true, nil
}

func (d *Directory) Get(ctx context.Context, roomID string) (Room, error) {
	const op = "rooms.Get"

	doc, err := d.store.Get(ctx, Collection, roomID)
	if errors.Is(err, docstore.ErrNotFound) {
		return Room{}, ErrRoomNotFound
	}
	if err != nil {
		return Room{}, fmt.Errorf("%s: %w", op, err)
	}

	return roomFromDocument(doc)
}

// MarkRead zeroes the unread counter for userID. Whole-room semantics: the
// caller is expected to have marked the individual messages first.
func (d *Directory) MarkRead(ctx context.Context, roomID, userID string) error {
	const op = "rooms.MarkRead"

	room, err := d.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.HasParticipant(userID) {
		return ErrNotParticipant
	}

	room.UnreadCount[userID] = 0
	if _, err := d.store.Update(ctx, Collection, roomID, dataOf(room)); err != nil {
		return fmt.Errorf("%s: persist: %w", op, err)
	}

	return nil
}

// RecordMessage advances lastMessageTime and increments the recipient's
// unread counter after senderID created a message. The store has no atomic
// increment, so this is a read-modify-write; concurrent writers can
// miscount. Accepted for a best-effort badge.
func (d *Directory) RecordMessage(ctx context.Context, roomID, senderID string) error {
	const op = "rooms.RecordMessage"

	room, err := d.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.HasParticipant(senderID) {
		return ErrNotParticipant
	}

	recipient := room.Other(senderID)
	room.UnreadCount[recipient]++
	room.LastMessageTime = time.Now().UTC()

	if _, err := d.store.Update(ctx, Collection, roomID, dataOf(room)); err != nil {
		return fmt.Errorf("%s: persist: %w", op, err)
	}

	return nil
}

// UnreadTotal sums the user's unread counters across their rooms. Bounded
// by the fetch ceiling, so approximate for users in very many rooms.
func (d *Directory) UnreadTotal(ctx context.Context, userID string) (int64, error) {
	const op = "rooms.UnreadTotal"

	rs, err := d.List(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var total int64
	for _, room := range rs {
		total += room.UnreadCount[userID]
	}
	return total, nil
}

// List returns the user's rooms, most recent activity first.
func (d *Directory) List(ctx context.Context, userID string) ([]Room, error) {
	const op = "rooms.List"

	docs, _, err := d.store.List(ctx, Collection, docstore.Query{
		Filters: []docstore.Filter{
			docstore.Contains("participants", userID),
		},
		OrderBy: []docstore.Order{{Field: "lastMessageTime", Desc: true}},
		Limit:   d.fetchCeiling,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: list: %w", op, err)
	}

	rs := make([]Room, 0, len(docs))
	for _, doc := range docs {
		room, err := roomFromDocument(doc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		rs = append(rs, room)
	}
	return rs, nil
}

// Delete removes the room and all of its messages. Only participants may
// delete a room.
func (d *Directory) Delete(ctx context.Context, roomID, requesterID string) error {
	const op = "rooms.Delete"

	room, err := d.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.HasParticipant(requesterID) {
		return ErrNotParticipant
	}

	docs, _, err := d.store.List(ctx, messages.Collection, docstore.Query{
		Filters: []docstore.Filter{
			docstore.Eq("chatRoomId", roomID),
		},
	})
	if err != nil {
		return fmt.Errorf("%s: list messages: %w", op, err)
	}

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	if _, err := d.store.DeleteMany(ctx, messages.Collection, ids); err != nil {
		return fmt.Errorf("%s: delete messages: %w", op, err)
	}

	if err := d.store.Delete(ctx, Collection, roomID); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrRoomNotFound
		}
		return fmt.Errorf("%s: delete room: %w", op, err)
	}

	return nil
}

func roomFromDocument(doc docstore.Document) (Room, error) {
	var data roomData
	if err := doc.Decode(&data); err != nil {
		return Room{}, err
	}
	if data.UnreadCount == nil {
		data.UnreadCount = map[string]int64{}
	}
	return Room{
		ID:              doc.ID,
		Participants:    data.Participants,
		LastMessageTime: data.LastMessageTime,
		UnreadCount:     data.UnreadCount,
	}, nil
}

func dataOf(room Room) roomData {
	return roomData{
		Participants:    room.Participants,
		LastMessageTime: room.LastMessageTime,
		UnreadCount:     room.UnreadCount,
	}
}
