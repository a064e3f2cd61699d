package ws

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/kgellert/lagoon-messenger/internal/conversation"
	"github.com/kgellert/lagoon-messenger/internal/lib/logger/sl"
	"github.com/kgellert/lagoon-messenger/internal/messages"
	"github.com/kgellert/lagoon-messenger/internal/tempuser"
)

type conversationCmd struct {
	Type       string            `json:"type"` // send | delete | load_more | clear_error | reload
	Text       string            `json:"text,omitempty"`
	Attachment *attachmentUpload `json:"attachment,omitempty"`
	MessageID  string            `json:"message_id,omitempty"`
}

type attachmentUpload struct {
	DataBase64  string `json:"data_base64"`
	ContentType string `json:"content_type"`
}

type stateFrame struct {
	Type     string             `json:"type"`
	Messages []messages.Message `json:"messages"`
	HasMore  bool               `json:"has_more"`
	Loading  bool               `json:"loading"`
	Sending  bool               `json:"sending"`
	Error    string             `json:"error,omitempty"`
}

// ConversationHandler hosts one conversation session over a websocket:
// the client issues send/delete/load_more commands, the server pushes a
// fresh state snapshot after every change.
func ConversationHandler(deps conversation.Deps, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "ws.ConversationHandler"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		peerID := r.URL.Query().Get("peer_id")
		if peerID == "" {
			http.Error(w, "missing peer_id", http.StatusBadRequest)
			return
		}
		userID := tempuser.UserID(r)

		wsConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("ws upgrade error", sl.Err(err))
			return
		}
		defer wsConn.Close()

		conn := NewConn(wsConn)
		go conn.WritePump()
		defer conn.CloseSend()

		deps := deps
		deps.OnChange = func(st conversation.State) {
			frame := stateFrame{
				Type:     "state",
				Messages: st.Messages,
				HasMore:  st.HasMore,
				Loading:  st.Loading,
				Sending:  st.Sending,
				Error:    st.ErrorText(),
			}
			payload, err := json.Marshal(frame)
			if err != nil {
				return
			}
			conn.Send(payload)
		}

		session, err := conversation.Open(r.Context(), deps, userID, peerID)
		if err != nil {
			log.Error("failed to open conversation", sl.Err(err))
			payload, _ := json.Marshal(map[string]string{"type": "error", "error": err.Error()})
			conn.Send(payload)
			return
		}
		defer session.Close()

		_ = wsConn.SetReadDeadline(time.Now().Add(pongWait))
		wsConn.SetPongHandler(func(string) error {
			_ = wsConn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})

		for {
			_, data, err := wsConn.ReadMessage()
			if err != nil {
				return
			}

			var cmd conversationCmd
			if err := json.Unmarshal(data, &cmd); err != nil {
				log.Error("ws bad json", sl.Err(err))
				continue
			}

			switch cmd.Type {
			case "send":
				var attachment io.Reader
				contentType := ""
				if cmd.Attachment != nil {
					raw, err := base64.StdEncoding.DecodeString(cmd.Attachment.DataBase64)
					if err != nil {
						log.Error("bad attachment payload", sl.Err(err))
						continue
					}
					attachment = bytes.NewReader(raw)
					contentType = cmd.Attachment.ContentType
				}
				if err := session.Send(r.Context(), cmd.Text, attachment, contentType); err != nil {
					log.Error("send failed", sl.Err(err))
				}
			case "delete":
				if err := session.Delete(r.Context(), cmd.MessageID); err != nil {
					log.Error("delete failed", sl.Err(err))
				}
			case "load_more":
				if err := session.LoadMore(r.Context()); err != nil {
					log.Error("load more failed", sl.Err(err))
				}
			case "reload":
				if err := session.Reload(r.Context()); err != nil {
					log.Error("reload failed", sl.Err(err))
				}
			case "clear_error":
				session.ClearError()
			default:
				log.Info("ws unknown command", slog.String("command", cmd.Type))
			}
		}
	}
}
