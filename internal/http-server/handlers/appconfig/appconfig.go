// Package appconfig serves the client-facing slice of the app settings so
// the frontend can pick up paging and polling limits without a redeploy.
package appconfig

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/kgellert/lagoon-messenger/internal/config"
)

type clientConfig struct {
	Env               string `json:"env"`
	MessagePageSize   int    `json:"messagePageSize"`
	BadgePollInterval string `json:"badgePollInterval"`
}

type Handler struct {
	cfg *config.Config
	log *slog.Logger
}

func New(cfg *config.Config, log *slog.Logger) *Handler {
	return &Handler{cfg: cfg, log: log}
}

// GetConfig returns the non-secret settings only. Credentials and DSNs
// never leave the process.
func (h *Handler) GetConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.appconfig.GetConfig"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		log.Debug("config requested")

		render.JSON(w, r, clientConfig{
			Env:               h.cfg.Env,
			MessagePageSize:   h.cfg.Messages.PageSize,
			BadgePollInterval: h.cfg.Badge.PollInterval.Round(time.Second).String(),
		})
	}
}
