package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	response "github.com/kgellert/lagoon-messenger/internal/lib"
	"github.com/kgellert/lagoon-messenger/internal/lib/logger/sl"
	"github.com/kgellert/lagoon-messenger/internal/messages"
	"github.com/kgellert/lagoon-messenger/internal/rooms"
	"github.com/kgellert/lagoon-messenger/internal/tempuser"
	"github.com/kgellert/lagoon-messenger/internal/transport/httpapi"
)

type Handler struct {
	store    *messages.Store
	dir      *rooms.Directory
	pageSize int
	log      *slog.Logger
}

func New(store *messages.Store, dir *rooms.Directory, pageSize int, log *slog.Logger) *Handler {
	return &Handler{store: store, dir: dir, pageSize: pageSize, log: log}
}

type sendRequest struct {
	Text         string `json:"text"`
	AttachmentID string `json:"attachment_id"`
}

type sendResponse struct {
	response.Response
	Message messages.Message `json:"message"`
}

type pageResponse struct {
	response.Response
	Messages []messages.Message `json:"messages"`
	Total    int                `json:"total"`
	HasMore  bool               `json:"has_more"`
}

func (h *Handler) GetPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.messages.GetPage"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		roomID := chi.URLParam(r, "roomId")

		limit := h.pageSize
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if v, err := strconv.Atoi(raw); err == nil && v > 0 {
				limit = v
			}
		}
		offset := 0
		if raw := r.URL.Query().Get("offset"); raw != "" {
			if v, err := strconv.Atoi(raw); err == nil && v > 0 {
				offset = v
			}
		}

		msgs, total, hasMore, err := h.store.Page(r.Context(), roomID, messages.PageOpts{
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			log.Error("failed to get messages", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, pageResponse{
			Response: response.OK(),
			Messages: msgs,
			Total:    total,
			HasMore:  hasMore,
		})
	}
}

func (h *Handler) Send() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.messages.Send"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		roomID := chi.URLParam(r, "roomId")
		userID := tempuser.UserID(r)

		var req sendRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("decode request error", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		msg, err := h.store.Append(r.Context(), roomID, userID, req.Text, req.AttachmentID)
		if err != nil {
			log.Error("failed to send message", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		if err := h.dir.RecordMessage(r.Context(), roomID, userID); err != nil {
			log.Error("failed to record message on room", sl.Err(err))
		}

		render.JSON(w, r, sendResponse{
			Response: response.OK(),
			Message:  msg,
		})
	}
}

func (h *Handler) Delete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.messages.Delete"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		messageID := chi.URLParam(r, "messageId")
		userID := tempuser.UserID(r)

		if err := h.store.Remove(r.Context(), messageID, userID); err != nil {
			log.Error("failed to delete message", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.Status(r, http.StatusNoContent)
		render.NoContent(w, r)
	}
}
