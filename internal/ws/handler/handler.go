package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/kgellert/lagoon-messenger/internal/badge"
	"github.com/kgellert/lagoon-messenger/internal/lib/logger/sl"
	"github.com/kgellert/lagoon-messenger/internal/realtime"
	"github.com/kgellert/lagoon-messenger/internal/rooms"
	"github.com/kgellert/lagoon-messenger/internal/tempuser"
)

type clientMsg struct {
	Type        string   `json:"type"`
	Collections []string `json:"collections"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventsHandler serves the raw push channel: the client subscribes to
// document collections and receives every create/update/delete event for
// them, filtering by foreign key on its own side. An unread-badge poller
// runs for the lifetime of the connection and pushes count frames on a
// fixed cadence.
func EventsHandler(hub *realtime.Hub, dir *rooms.Directory, pollInterval time.Duration, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "ws.EventsHandler"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		wsConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("ws upgrade error", sl.Err(err))
			return
		}
		defer wsConn.Close()

		conn := NewConn(wsConn)
		go conn.WritePump()
		defer conn.CloseSend()

		subs := map[string]*realtime.Subscription{}
		defer func() {
			for _, sub := range subs {
				sub.Cancel()
			}
		}()

		_ = wsConn.SetReadDeadline(time.Now().Add(pongWait))
		wsConn.SetPongHandler(func(string) error {
			_ = wsConn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})

		hello, _ := json.Marshal(map[string]any{"type": "hello", "ok": true})
		conn.Send(hello)

		userID := tempuser.UserID(r)
		poller := badge.New(dir, userID, pollInterval, func(count int64) {
			payload, err := json.Marshal(map[string]any{"type": "unread_badge", "count": count})
			if err != nil {
				return
			}
			conn.Send(payload)
		}, log)
		poller.Start()
		defer poller.Stop()

		for {
			_, data, err := wsConn.ReadMessage()
			if err != nil {
				return
			}

			var msg clientMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				log.Error("ws bad json", sl.Err(err))
				continue
			}

			switch msg.Type {
			case "subscribe":
				for _, collection := range msg.Collections {
					if _, ok := subs[collection]; ok {
						continue
					}
					sub := hub.Subscribe(collection)
					subs[collection] = sub
					go pumpEvents(sub, conn)
				}
			default:
				log.Info("ws unknown message type", slog.String("message_type", msg.Type))
			}
		}
	}
}

func pumpEvents(sub *realtime.Subscription, conn *Conn) {
	for ev := range sub.C {
		payload, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		conn.Send(payload)
	}
}
