package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	response "github.com/kgellert/lagoon-messenger/internal/lib"
	"github.com/kgellert/lagoon-messenger/internal/lib/logger/sl"
	"github.com/kgellert/lagoon-messenger/internal/rooms"
	"github.com/kgellert/lagoon-messenger/internal/tempuser"
	"github.com/kgellert/lagoon-messenger/internal/transport/httpapi"
)

type Handler struct {
	dir *rooms.Directory
	log *slog.Logger
}

func New(dir *rooms.Directory, log *slog.Logger) *Handler {
	return &Handler{dir: dir, log: log}
}

type resolveRequest struct {
	PeerID string `json:"peer_id"`
}

type resolveResponse struct {
	response.Response
	Room    rooms.Room `json:"room"`
	Created bool       `json:"created"`
}

type listResponse struct {
	response.Response
	Rooms []rooms.Room `json:"rooms"`
}

type unreadResponse struct {
	response.Response
	UnreadTotal int64 `json:"unread_total"`
}

func (h *Handler) Resolve() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.rooms.Resolve"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req resolveRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("decode request error", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		userID := tempuser.UserID(r)

		room, created, err := h.dir.Resolve(r.Context(), userID, req.PeerID)
		if err != nil {
			log.Error("failed to resolve room", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, resolveResponse{
			Response: response.OK(),
			Room:     room,
			Created:  created,
		})
	}
}

func (h *Handler) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.rooms.List"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID := tempuser.UserID(r)

		rs, err := h.dir.List(r.Context(), userID)
		if err != nil {
			log.Error("failed to list rooms", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, listResponse{
			Response: response.OK(),
			Rooms:    rs,
		})
	}
}

func (h *Handler) MarkRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.rooms.MarkRead"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		roomID := chi.URLParam(r, "roomId")
		userID := tempuser.UserID(r)

		if err := h.dir.MarkRead(r.Context(), roomID, userID); err != nil {
			log.Error("failed to mark room read", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.Status(r, http.StatusNoContent)
		render.NoContent(w, r)
	}
}

func (h *Handler) Delete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.rooms.Delete"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		roomID := chi.URLParam(r, "roomId")
		userID := tempuser.UserID(r)

		if err := h.dir.Delete(r.Context(), roomID, userID); err != nil {
			log.Error("failed to delete room", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.Status(r, http.StatusNoContent)
		render.NoContent(w, r)
	}
}

func (h *Handler) UnreadTotal() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.rooms.UnreadTotal"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID := tempuser.UserID(r)

		total, err := h.dir.UnreadTotal(r.Context(), userID)
		if err != nil {
			log.Error("failed to count unread", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, unreadResponse{
			Response:    response.OK(),
			UnreadTotal: total,
		})
	}
}
