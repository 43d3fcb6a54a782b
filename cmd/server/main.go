package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"courier/internal/auth"
	"courier/internal/cache"
	"courier/internal/chat"
	"courier/internal/config"
	"courier/internal/db"
	applog "courier/internal/log"
	"courier/internal/metrics"
	"courier/internal/mw"
	"courier/internal/session"
	"courier/internal/settings"
	"courier/internal/token"
	"courier/internal/user"
)

func main() {
	cfg := config.Load()
	applog.Init(cfg.Env)

	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is not set")
	}

	database, err := db.New(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to postgres")
	}
	defer database.Close()
	log.Info().Msg("connected to postgres")

	if err := database.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("run migrations")
	}
	log.Info().Msg("schema ready")

	// The session cache is an optimization; the server runs without it.
	var sessionCache session.Cache
	if rds, err := cache.NewRedis(cfg.RedisAddr); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, session cache disabled")
	} else {
		sessionCache = rds
		defer rds.Close()
		log.Info().Msg("connected to redis")
	}

	codec := token.NewCodec(cfg.JWTSecret)

	sessionRepo := session.NewRepository(database.Conn)
	sessionSvc := session.NewService(sessionRepo, sessionCache)
	sessionHandler := session.NewHandler(sessionSvc)

	settingsRepo := settings.NewRepository(database.Conn)
	settingsSvc := settings.NewService(settingsRepo)
	settingsHandler := settings.NewHandler(settingsSvc)

	userRepo := user.NewRepository(database.Conn)
	userSvc := user.NewService(userRepo, sessionSvc, settingsSvc, codec, cfg.SessionTTLDays)
	userHandler := user.NewHandler(userSvc)

	gate := auth.NewGate(codec, userRepo, sessionSvc)

	hub := chat.NewHub()
	chatRepo := chat.NewRepository(database.Conn)
	chatHandler := chat.NewHandler(hub, chatRepo, userRepo, gate)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.RequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Credential endpoints get a per-client budget.
	r.Group(func(r chi.Router) {
		r.Use(mw.RateLimit(5, 10))
		r.Post("/auth/sign-up", userHandler.SignUp)
		r.Post("/auth/sign-in", userHandler.SignIn)
	})

	r.Group(func(r chi.Router) {
		r.Use(gate.Middleware)
		r.Get("/users/me", userHandler.Me)
		r.Put("/users/me", userHandler.UpdateMe)
		r.Post("/users/logout", userHandler.Logout)
		r.Delete("/users/settings/account-delete", userHandler.DeleteAccount)

		r.Get("/users/sessions/active-sessions", sessionHandler.ActiveSessions)
		r.Delete("/users/sessions/terminate-session/{id}", sessionHandler.TerminateSession)

		r.Get("/users/settings", settingsHandler.Get)
		r.Patch("/users/settings", settingsHandler.Update)

		r.Post("/chats/private/{recipient_id}", chatHandler.CreatePrivateChat)
		r.Get("/chats", chatHandler.ListChats)
		r.Get("/chats/{chat_id}/messages", chatHandler.GetMessages)
		r.Post("/chats/{chat_id}/messages", chatHandler.SendMessage)
	})

	// The websocket route authenticates after the upgrade so failures can be
	// reported as close frames; it stays outside the gated group.
	r.Get("/ws/chat/{chat_id}", chatHandler.ServeWS)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("port", cfg.Port).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
