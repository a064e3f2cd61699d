package realtime

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kgellert/lagoon-messenger/internal/lib/logger/sl"
)

const relayChannel = "docstore:events"

// Relay fans document events out across instances through Redis pub/sub.
// Local publishes go to the local hub and to the Redis channel; events
// received from the channel are re-published locally unless this instance
// originated them.
type Relay struct {
	hub    *Hub
	rdb    *redis.Client
	origin string
	log    *slog.Logger
}

func NewRelay(hub *Hub, rdb *redis.Client, log *slog.Logger) *Relay {
	return &Relay{
		hub:    hub,
		rdb:    rdb,
		origin: uuid.NewString(),
		log:    log,
	}
}

func (r *Relay) Publish(ev Event) {
	ev.Origin = r.origin
	r.hub.Publish(ev)

	payload, err := json.Marshal(ev)
	if err != nil {
		r.log.Error("relay: marshal event", sl.Err(err))
		return
	}

	if err := r.rdb.Publish(context.Background(), relayChannel, payload).Err(); err != nil {
		r.log.Error("relay: publish to redis", sl.Err(err))
	}
}

func (r *Relay) Run(ctx context.Context) {
	pubsub := r.rdb.Subscribe(ctx, relayChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				r.log.Error("relay: unmarshal event", sl.Err(err))
				continue
			}
			if ev.Origin == r.origin {
				continue
			}
			r.hub.Publish(ev)
		}
	}
}
