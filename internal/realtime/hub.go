package realtime

import (
	"sync"
)

const subscriptionBuffer = 128

// Subscription is a live feed of events for one collection. Cancel releases
// it; cancelling twice is safe.
type Subscription struct {
	C <-chan Event

	hub        *Hub
	collection string
	ch         chan Event
	registered chan struct{}
	cancelOnce sync.Once
}

func (s *Subscription) Cancel() {
	s.cancelOnce.Do(func() {
		select {
		case s.hub.unsubscribe <- s:
		case <-s.hub.done:
		}
	})
}

type Hub struct {
	subscribe   chan *Subscription
	unsubscribe chan *Subscription
	publish     chan Event
	done        chan struct{}
	closeOnce   sync.Once

	collections map[string]map[*Subscription]struct{}
}

func NewHub() *Hub {
	return &Hub{
		subscribe:   make(chan *Subscription, 64),
		unsubscribe: make(chan *Subscription, 64),
		publish:     make(chan Event, 256),
		done:        make(chan struct{}),
		collections: make(map[string]map[*Subscription]struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for _, subs := range h.collections {
				for s := range subs {
					close(s.ch)
				}
			}
			h.collections = make(map[string]map[*Subscription]struct{})
			return

		case s := <-h.subscribe:
			subs := h.collections[s.collection]
			if subs == nil {
				subs = make(map[*Subscription]struct{})
				h.collections[s.collection] = subs
			}
			subs[s] = struct{}{}
			close(s.registered)

		case s := <-h.unsubscribe:
			subs := h.collections[s.collection]
			if subs == nil {
				continue
			}
			if _, ok := subs[s]; !ok {
				continue
			}
			delete(subs, s)
			if len(subs) == 0 {
				delete(h.collections, s.collection)
			}
			close(s.ch)

		case ev := <-h.publish:
			for s := range h.collections[ev.Collection] {
				select {
				case s.ch <- ev:
				default:
					// slow consumer: drop rather than stall the hub
				}
			}
		}
	}
}

func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
	})
}

// Subscribe registers a feed for the collection and returns once the hub
// has picked it up, so no event published afterwards is missed.
func (h *Hub) Subscribe(collection string) *Subscription {
	ch := make(chan Event, subscriptionBuffer)
	s := &Subscription{
		C:          ch,
		hub:        h,
		collection: collection,
		ch:         ch,
		registered: make(chan struct{}),
	}

	select {
	case h.subscribe <- s:
	case <-h.done:
		close(ch)
		return s
	}

	select {
	case <-s.registered:
	case <-h.done:
	}

	return s
}

func (h *Hub) Publish(ev Event) {
	select {
	case h.publish <- ev:
	case <-h.done:
	}
}
