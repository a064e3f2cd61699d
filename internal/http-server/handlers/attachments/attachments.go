package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/kgellert/lagoon-messenger/internal/attachments"
	response "github.com/kgellert/lagoon-messenger/internal/lib"
	"github.com/kgellert/lagoon-messenger/internal/lib/logger/sl"
	"github.com/kgellert/lagoon-messenger/internal/transport/httpapi"
)

// maxUploadSize bounds a single attachment body.
const maxUploadSize = 10 << 20

type Handler struct {
	adapter *attachments.Adapter
	log     *slog.Logger
}

func New(adapter *attachments.Adapter, log *slog.Logger) *Handler {
	return &Handler{adapter: adapter, log: log}
}

type uploadResponse struct {
	response.Response
	AttachmentID string `json:"attachment_id"`
}

func (h *Handler) Upload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.attachments.Upload"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

		contentType := r.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		id, err := h.adapter.Upload(r.Context(), r.Body, contentType)
		if err != nil {
			log.Error("failed to upload attachment", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, uploadResponse{
			Response:     response.OK(),
			AttachmentID: id,
		})
	}
}

func (h *Handler) Download() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.attachments.Download"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "attachmentId")

		body, contentType, err := h.adapter.Download(r.Context(), id)
		if err != nil {
			log.Error("failed to download attachment", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}
		defer body.Close()

		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		if _, err := io.Copy(w, body); err != nil {
			log.Error("failed to stream attachment", sl.Err(err))
		}
	}
}
