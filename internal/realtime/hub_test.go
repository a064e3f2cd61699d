package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgellert/lagoon-messenger/internal/docstore"
)

func runHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub()
	go h.Run()
	t.Cleanup(h.Close)
	return h
}

func TestHubDeliversToCollectionSubscribers(t *testing.T) {
	h := runHub(t)

	sub := h.Subscribe("messages")
	other := h.Subscribe("chat_rooms")

	h.Publish(Event{Kind: KindCreate, Collection: "messages", Document: docstore.Document{ID: "m1"}})

	select {
	case ev := <-sub.C:
		assert.Equal(t, KindCreate, ev.Kind)
		assert.Equal(t, "m1", ev.Document.ID)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive event")
	}

	select {
	case ev := <-other.C:
		t.Fatalf("unexpected event on other collection: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubCancelClosesChannel(t *testing.T) {
	h := runHub(t)

	sub := h.Subscribe("messages")
	sub.Cancel()
	sub.Cancel() // second cancel must be a no-op

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-sub.C:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond, "channel should be closed after cancel")

	// publishing after cancel must not panic or deliver
	h.Publish(Event{Kind: KindDelete, Collection: "messages"})
}

func TestHubMultipleSubscribersSameCollection(t *testing.T) {
	h := runHub(t)

	a := h.Subscribe("messages")
	b := h.Subscribe("messages")

	h.Publish(Event{Kind: KindUpdate, Collection: "messages", Document: docstore.Document{ID: "m2"}})

	for _, sub := range []*Subscription{a, b} {
		select {
		case ev := <-sub.C:
			assert.Equal(t, "m2", ev.Document.ID)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}
