// Package conversation hosts one live two-party chat session: initial
// load, pagination, optimistic send/delete, and reconciliation of the
// pushed event feed against local state.
//
// The event feed is the source of truth; locally initiated mutations are
// optimistic previews keyed by the same IDs, so an arriving authoritative
// event always deduplicates against or supersedes the preview.
package conversation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/kgellert/lagoon-messenger/internal/attachments"
	"github.com/kgellert/lagoon-messenger/internal/lib/logger/sl"
	"github.com/kgellert/lagoon-messenger/internal/messages"
	"github.com/kgellert/lagoon-messenger/internal/realtime"
	"github.com/kgellert/lagoon-messenger/internal/rooms"
)

const (
	defaultPageSize      = 50
	defaultReadMarkLimit = 100
)

var ErrSendInFlight = errors.New("a send is already in flight")

type Deps struct {
	Rooms       *rooms.Directory
	Messages    *messages.Store
	Attachments *attachments.Adapter
	Hub         *realtime.Hub
	Log         *slog.Logger

	PageSize      int
	ReadMarkLimit int

	// OnChange receives a state snapshot after every visible change. Called
	// from session goroutines; implementations must not call back into the
	// session synchronously from a blocking handler.
	OnChange func(State)
}

type Session struct {
	deps   Deps
	userID string
	room   rooms.Room

	mu      sync.Mutex
	msgs    []messages.Message
	offset  int
	hasMore bool
	loading bool
	sending bool
	err     error

	sub       *realtime.Subscription
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// Open resolves the room for (userID, peerID), subscribes to the live feed
// and performs the initial history load. A failed initial load is
// recoverable: the session is still returned, carries the error in its
// state, and Reload retries. Only room resolution failure aborts the open.
func Open(ctx context.Context, deps Deps, userID, peerID string) (*Session, error) {
	if deps.PageSize <= 0 {
		deps.PageSize = defaultPageSize
	}
	if deps.ReadMarkLimit <= 0 {
		deps.ReadMarkLimit = defaultReadMarkLimit
	}
	if deps.Log == nil {
		deps.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	room, _, err := deps.Rooms.Resolve(ctx, userID, peerID)
	if err != nil {
		return nil, err
	}

	s := &Session{
		deps:   deps,
		userID: userID,
		room:   room,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.sub = deps.Hub.Subscribe(messages.Collection)

	go s.consume()

	if err := s.Reload(ctx); err != nil {
		deps.Log.Error("initial conversation load failed",
			slog.String("room_id", room.ID), sl.Err(err))
	}

	return s, nil
}

func (s *Session) Room() rooms.Room {
	return s.room
}

// State returns a copy of the current view state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	msgs := make([]messages.Message, len(s.msgs))
	copy(msgs, s.msgs)
	return State{
		Messages: msgs,
		HasMore:  s.hasMore,
		Loading:  s.loading,
		Sending:  s.sending,
		Err:      s.err,
	}
}

func (s *Session) notify() {
	if s.deps.OnChange == nil {
		return
	}
	s.deps.OnChange(s.State())
}

// Reload fetches the newest page and re-runs the read pass. Used for the
// initial load and for retry after a failed one.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	s.err = nil
	s.mu.Unlock()
	s.notify()

	page, _, hasMore, err := s.deps.Messages.Page(ctx, s.room.ID, messages.PageOpts{
		Limit: s.deps.PageSize,
		Desc:  true,
	})

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.err = err
		s.mu.Unlock()
		s.notify()
		return err
	}
	s.msgs = reverse(page)
	s.offset = len(page)
	s.hasMore = hasMore
	s.mu.Unlock()
	s.notify()

	s.markRoomRead(ctx)

	return nil
}

// markRoomRead flips the peer's unread messages to read and zeroes this
// user's room counter. Best effort: receipts are retried on the next open.
func (s *Session) markRoomRead(ctx context.Context) {
	unread, _, _, err := s.deps.Messages.Page(ctx, s.room.ID, messages.PageOpts{
		Limit:         s.deps.ReadMarkLimit,
		OnlyUnread:    true,
		ExcludeSender: s.userID,
	})
	if err != nil {
		s.deps.Log.Error("read pass: list unread", sl.Err(err))
		return
	}

	for _, m := range unread {
		if err := s.deps.Messages.SetRead(ctx, m.ID); err != nil {
			s.deps.Log.Error("read pass: set read",
				slog.String("message_id", m.ID), sl.Err(err))
		}
	}

	if err := s.deps.Rooms.MarkRead(ctx, s.room.ID, s.userID); err != nil {
		s.deps.Log.Error("read pass: mark room read", sl.Err(err))
	}
}

// LoadMore fetches the next page of older history and prepends it. No-op
// while a load is in flight or when no older history remains.
func (s *Session) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	if s.loading || !s.hasMore {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	offset := s.offset
	s.mu.Unlock()
	s.notify()

	page, _, hasMore, err := s.deps.Messages.Page(ctx, s.room.ID, messages.PageOpts{
		Limit:  s.deps.PageSize,
		Offset: offset,
		Desc:   true,
	})

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.err = err
		s.mu.Unlock()
		s.notify()
		return err
	}
	for _, m := range page {
		s.insertLocked(m)
	}
	s.offset = offset + len(page)
	s.hasMore = hasMore
	s.mu.Unlock()
	s.notify()

	return nil
}

// Send creates a message, uploading the attachment first when present. If
// message creation fails after a successful upload, the orphaned blob is
// deleted before the error is surfaced. The created message is not appended
// locally; the live feed delivers it and dedup keeps the state convergent
// whichever side wins the race.
func (s *Session) Send(ctx context.Context, text string, attachment io.Reader, contentType string) error {
	if strings.TrimSpace(text) == "" && attachment == nil {
		return messages.ErrTextOrAttachmentRequired
	}

	s.mu.Lock()
	if s.sending {
		s.mu.Unlock()
		return ErrSendInFlight
	}
	s.sending = true
	s.mu.Unlock()
	s.notify()

	defer func() {
		s.mu.Lock()
		s.sending = false
		s.mu.Unlock()
		s.notify()
	}()

	attachmentID := ""
	if attachment != nil {
		id, err := s.deps.Attachments.Upload(ctx, attachment, contentType)
		if err != nil {
			s.setErr(err)
			return err
		}
		attachmentID = id
	}

	_, err := s.deps.Messages.Append(ctx, s.room.ID, s.userID, text, attachmentID)
	if err != nil {
		if attachmentID != "" {
			if derr := s.deps.Attachments.Delete(ctx, attachmentID); derr != nil {
				s.deps.Log.Error("failed to clean up orphaned attachment",
					slog.String("attachment_id", attachmentID), sl.Err(derr))
			}
		}
		s.setErr(err)
		return err
	}

	if err := s.deps.Rooms.RecordMessage(ctx, s.room.ID, s.userID); err != nil {
		s.deps.Log.Error("failed to record message on room", sl.Err(err))
	}

	return nil
}

// Delete removes a message. The adapter re-validates ownership; on success
// the message disappears locally at once and the later delete event is an
// idempotent no-op.
func (s *Session) Delete(ctx context.Context, messageID string) error {
	if err := s.deps.Messages.Remove(ctx, messageID, s.userID); err != nil {
		s.setErr(err)
		return err
	}

	s.mu.Lock()
	changed := s.removeLocked(messageID)
	s.mu.Unlock()
	if changed {
		s.notify()
	}

	return nil
}

// ClearError dismisses the current error notice.
func (s *Session) ClearError() {
	s.mu.Lock()
	s.err = nil
	s.mu.Unlock()
	s.notify()
}

// Close tears the session down: the live subscription is cancelled exactly
// once and the feed goroutine exits. In-flight calls complete; their
// results are simply no longer observed.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.sub.Cancel()
		s.cancel()
	})
}

func (s *Session) consume() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev, ok := <-s.sub.C:
			if !ok {
				return
			}
			s.handleEvent(ev)
		}
	}
}

// handleEvent reconciles one pushed event. The feed is collection-wide;
// events for other rooms are discarded here.
func (s *Session) handleEvent(ev realtime.Event) {
	m, err := messages.FromDocument(ev.Document)
	if err != nil {
		s.deps.Log.Error("bad message event payload", sl.Err(err))
		return
	}
	if m.ChatRoomID != s.room.ID {
		return
	}

	switch ev.Kind {
	case realtime.KindCreate:
		s.mu.Lock()
		changed := false
		if !s.containsLocked(m.ID) {
			s.insertLocked(m)
			changed = true
		}
		s.mu.Unlock()
		if changed {
			s.notify()
		}

		// recipient-side read receipt for messages from the peer
		if m.SenderID != s.userID && !m.IsRead {
			if err := s.deps.Messages.SetRead(s.ctx, m.ID); err != nil {
				s.deps.Log.Error("receipt: set read",
					slog.String("message_id", m.ID), sl.Err(err))
			}
			if err := s.deps.Rooms.MarkRead(s.ctx, s.room.ID, s.userID); err != nil {
				s.deps.Log.Error("receipt: mark room read", sl.Err(err))
			}
		}

	case realtime.KindUpdate:
		s.mu.Lock()
		changed := false
		for i := range s.msgs {
			if s.msgs[i].ID == m.ID {
				s.msgs[i] = m
				changed = true
				break
			}
		}
		s.mu.Unlock()
		if changed {
			s.notify()
		}

	case realtime.KindDelete:
		s.mu.Lock()
		changed := s.removeLocked(m.ID)
		s.mu.Unlock()
		if changed {
			s.notify()
		}
	}
}

func (s *Session) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.notify()
}

func (s *Session) containsLocked(id string) bool {
	for _, m := range s.msgs {
		if m.ID == id {
			return true
		}
	}
	return false
}

// insertLocked places m into the ascending-by-createdAt sequence, skipping
// IDs already present.
func (s *Session) insertLocked(m messages.Message) {
	if s.containsLocked(m.ID) {
		return
	}
	i := sort.Search(len(s.msgs), func(i int) bool {
		if s.msgs[i].CreatedAt.Equal(m.CreatedAt) {
			return s.msgs[i].ID >= m.ID
		}
		return s.msgs[i].CreatedAt.After(m.CreatedAt)
	})
	s.msgs = append(s.msgs, messages.Message{})
	copy(s.msgs[i+1:], s.msgs[i:])
	s.msgs[i] = m
}

func (s *Session) removeLocked(id string) bool {
	for i := range s.msgs {
		if s.msgs[i].ID == id {
			s.msgs = append(s.msgs[:i], s.msgs[i+1:]...)
			return true
		}
	}
	return false
}

func reverse(msgs []messages.Message) []messages.Message {
	out := make([]messages.Message, len(msgs))
	for i, m := range msgs {
		out[len(msgs)-1-i] = m
	}
	return out
}
