package main

import (
	"context"
	stdlog "log"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/kgellert/lagoon-messenger/internal/attachments"
	"github.com/kgellert/lagoon-messenger/internal/blobstore"
	blobmemory "github.com/kgellert/lagoon-messenger/internal/blobstore/memory"
	s3blob "github.com/kgellert/lagoon-messenger/internal/blobstore/s3"
	appConfig "github.com/kgellert/lagoon-messenger/internal/config"
	"github.com/kgellert/lagoon-messenger/internal/conversation"
	"github.com/kgellert/lagoon-messenger/internal/docstore"
	docmemory "github.com/kgellert/lagoon-messenger/internal/docstore/memory"
	docpostgres "github.com/kgellert/lagoon-messenger/internal/docstore/postgres"
	appconfigHandler "github.com/kgellert/lagoon-messenger/internal/http-server/handlers/appconfig"
	attachmentsHandler "github.com/kgellert/lagoon-messenger/internal/http-server/handlers/attachments"
	messagesHandler "github.com/kgellert/lagoon-messenger/internal/http-server/handlers/messages"
	roomsHandler "github.com/kgellert/lagoon-messenger/internal/http-server/handlers/rooms"
	mwLogger "github.com/kgellert/lagoon-messenger/internal/http-server/middleware/logger"
	"github.com/kgellert/lagoon-messenger/internal/lib/logger/handlers/slogpretty"
	"github.com/kgellert/lagoon-messenger/internal/lib/logger/sl"
	"github.com/kgellert/lagoon-messenger/internal/messages"
	"github.com/kgellert/lagoon-messenger/internal/realtime"
	"github.com/kgellert/lagoon-messenger/internal/rooms"
	"github.com/kgellert/lagoon-messenger/internal/tempuser"
	ws "github.com/kgellert/lagoon-messenger/internal/ws/handler"
)

const (
	envLocal = "local"
	envDev   = "dev"
)

func main() {
	if err := godotenv.Load("infra/.env"); err != nil {
		stdlog.Println("No .env file found, skipping...")
	}

	cfg := appConfig.MustLoad()

	log := setupLogger(cfg.Env)
	log.Info("starting lagoon-messenger", slog.String("env", cfg.Env))

	ctx := context.Background()

	hub := realtime.NewHub()
	go hub.Run()

	var pub realtime.Publisher = hub
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		relay := realtime.NewRelay(hub, rdb, log)
		go relay.Run(ctx)
		pub = relay
		log.Info("redis event relay enabled", slog.String("addr", cfg.RedisAddr))
	}

	var store docstore.Store
	if cfg.DatabaseDSN != "" {
		pg, err := docpostgres.New(ctx, cfg.DatabaseDSN, pub)
		if err != nil {
			log.Error("failed to init storage", sl.Err(err))
			os.Exit(1)
		}
		store = pg
	} else {
		log.Warn("no database dsn configured, using in-memory store")
		store = docmemory.New(pub)
	}

	var blobs blobstore.Store
	if cfg.S3.Bucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.S3.Region),
			awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.S3.AccessKey, cfg.S3.SecretKey, ""),
			),
		)
		if err != nil {
			log.Error("failed to load aws config", sl.Err(err))
			os.Exit(1)
		}

		s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.S3.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
				o.UsePathStyle = true
			}
		})

		blobs = s3blob.New(cfg.S3.Bucket, s3Client)
	} else {
		log.Warn("no s3 bucket configured, using in-memory blob store")
		blobs = blobmemory.New()
	}

	dir := rooms.NewDirectory(store, cfg.Rooms.FetchCeiling)
	msgStore := messages.NewStore(store)
	atts := attachments.New(blobs)

	convDeps := conversation.Deps{
		Rooms:         dir,
		Messages:      msgStore,
		Attachments:   atts,
		Hub:           hub,
		Log:           log,
		PageSize:      cfg.Messages.PageSize,
		ReadMarkLimit: cfg.Messages.ReadMarkLimit,
	}

	rh := roomsHandler.New(dir, log)
	mh := messagesHandler.New(msgStore, dir, cfg.Messages.PageSize, log)
	ah := attachmentsHandler.New(atts, log)
	ch := appconfigHandler.New(cfg, log)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(mwLogger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	router.Get("/config", ch.GetConfig())

	router.Post("/signin", func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("user_id")
		if raw == "" {
			http.Error(w, "missing user_id", http.StatusBadRequest)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:  "user_id",
			Value: raw,
			Path:  "/",
		})

		w.WriteHeader(http.StatusOK)
	})

	router.Group(func(r chi.Router) {
		r.Use(tempuser.WithUser)

		r.Get("/rooms", rh.List())
		r.Post("/rooms/resolve", rh.Resolve())
		r.Patch("/rooms/{roomId}/read", rh.MarkRead())
		r.Delete("/rooms/{roomId}", rh.Delete())
		r.Get("/unread", rh.UnreadTotal())

		r.Get("/rooms/{roomId}/messages", mh.GetPage())
		r.Post("/rooms/{roomId}/messages", mh.Send())
		r.Delete("/rooms/{roomId}/messages/{messageId}", mh.Delete())

		r.Post("/attachments", ah.Upload())
		r.Get("/attachments/{attachmentId}", ah.Download())

		r.Get("/events", ws.EventsHandler(hub, dir, cfg.Badge.PollInterval, log))
		r.Get("/ws/conversations", ws.ConversationHandler(convDeps, log))
	})

	log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	if err := srv.ListenAndServe(); err != nil {
		log.Error("failed to start server", sl.Err(err))
	}

	log.Error("server stopped")
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return setupPrettySlog()
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
}
