// Package messages is the CRUD-and-paginate adapter over the message
// collection. History ordering is by server-assigned creation time only.
package messages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kgellert/lagoon-messenger/internal/docstore"
)

const Collection = "messages"

type Message struct {
	ID           string    `json:"id"`
	ChatRoomID   string    `json:"chatRoomId"`
	SenderID     string    `json:"senderId"`
	Text         string    `json:"text"`
	AttachmentID string    `json:"attachmentId,omitempty"`
	IsRead       bool      `json:"isRead"`
	CreatedAt    time.Time `json:"createdAt"`
}

type messageData struct {
	ChatRoomID   string `json:"chatRoomId"`
	SenderID     string `json:"senderId"`
	Text         string `json:"text"`
	AttachmentID string `json:"attachmentId,omitempty"`
	IsRead       bool   `json:"isRead"`
}

// PageOpts selects a slice of a room's history. Results come back ascending
// by creation time unless Desc is set; OnlyUnread and ExcludeSender back
// the read-marking and unread-count queries.
type PageOpts struct {
	Limit         int
	Offset        int
	Desc          bool
	OnlyUnread    bool
	ExcludeSender string
}

type Store struct {
	docs docstore.Store
}

func NewStore(docs docstore.Store) *Store {
	return &Store{docs: docs}
}

// Append creates a message with isRead=false. A message must carry text or
// an attachment; an empty one is rejected before touching the store.
func (s *Store) Append(ctx context.Context, roomID, senderID, text, attachmentID string) (Message, error) {
	const op = "messages.Append"

	if strings.TrimSpace(text) == "" && attachmentID == "" {
		return Message{}, ErrTextOrAttachmentRequired
	}

	doc, err := s.docs.Create(ctx, Collection, messageData{
		ChatRoomID:   roomID,
		SenderID:     senderID,
		Text:         text,
		AttachmentID: attachmentID,
		IsRead:       false,
	})
	if err != nil {
		return Message{}, fmt.Errorf("%s: create: %w", op, err)
	}

	return FromDocument(doc)
}

// Page fetches one page of a room's history. hasMore reports whether rows
// remain past offset+limit.
func (s *Store) Page(ctx context.Context, roomID string, opts PageOpts) (msgs []Message, total int, hasMore bool, err error) {
	const op = "messages.Page"

	filters := []docstore.Filter{
		docstore.Eq("chatRoomId", roomID),
	}
	if opts.OnlyUnread {
		filters = append(filters, docstore.Eq("isRead", false))
	}
	if opts.ExcludeSender != "" {
		filters = append(filters, docstore.Ne("senderId", opts.ExcludeSender))
	}

	docs, total, err := s.docs.List(ctx, Collection, docstore.Query{
		Filters: filters,
		OrderBy: []docstore.Order{{Field: docstore.FieldCreatedAt, Desc: opts.Desc}},
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
	if err != nil {
		return nil, 0, false, fmt.Errorf("%s: list: %w", op, err)
	}

	msgs = make([]Message, 0, len(docs))
	for _, doc := range docs {
		m, err := FromDocument(doc)
		if err != nil {
			return nil, 0, false, fmt.Errorf("%s: %w", op, err)
		}
		msgs = append(msgs, m)
	}

	hasMore = total > opts.Offset+opts.Limit

	return msgs, total, hasMore, nil
}

// Remove deletes a message after re-validating ownership.
func (s *Store) Remove(ctx context.Context, messageID, requesterID string) error {
	const op = "messages.Remove"

	doc, err := s.docs.Get(ctx, Collection, messageID)
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrMessageNotFound
	}
	if err != nil {
		return fmt.Errorf("%s: get: %w", op, err)
	}

	m, err := FromDocument(doc)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if m.SenderID != requesterID {
		return ErrNotSender
	}

	if err := s.docs.Delete(ctx, Collection, messageID); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrMessageNotFound
		}
		return fmt.Errorf("%s: delete: %w", op, err)
	}

	return nil
}

// SetRead flips isRead to true. Idempotent: marking an already-read message
// does not rewrite it.
func (s *Store) SetRead(ctx context.Context, messageID string) error {
	const op = "messages.SetRead"

	doc, err := s.docs.Get(ctx, Collection, messageID)
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrMessageNotFound
	}
	if err != nil {
		return fmt.Errorf("%s: get: %w", op, err)
	}

	var data messageData
	if err := doc.Decode(&data); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if data.IsRead {
		return nil
	}

	data.IsRead = true
	if _, err := s.docs.Update(ctx, Collection, messageID, data); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrMessageNotFound
		}
		return fmt.Errorf("%s: update: %w", op, err)
	}

	return nil
}

// FromDocument decodes a message document, as stored or as carried by a
// live event.
func FromDocument(doc docstore.Document) (Message, error) {
	var data messageData
	if err := doc.Decode(&data); err != nil {
		return Message{}, err
	}
	return Message{
		ID:           doc.ID,
		ChatRoomID:   data.ChatRoomID,
		SenderID:     data.SenderID,
		Text:         data.Text,
		AttachmentID: data.AttachmentID,
		IsRead:       data.IsRead,
		CreatedAt:    doc.CreatedAt,
	}, nil
}
