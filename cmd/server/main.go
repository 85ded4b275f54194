package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/duoquiz/duo-server/internal/auth"
	"github.com/duoquiz/duo-server/internal/config"
	"github.com/duoquiz/duo-server/internal/database"
	"github.com/duoquiz/duo-server/internal/handler"
	"github.com/duoquiz/duo-server/internal/jobs"
	"github.com/duoquiz/duo-server/internal/middleware"
	"github.com/duoquiz/duo-server/internal/redis"
	"github.com/duoquiz/duo-server/internal/repository"
	"github.com/duoquiz/duo-server/internal/service"
	"github.com/duoquiz/duo-server/internal/sse"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogOutput(cfg.LogFormat)
	setLogLevel(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	if err := db.Migrate(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	roomRepo := repository.NewRoomRepository(db.DB)
	userRepo := repository.NewUserRepository(db.DB)

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL())

	roomService := service.NewRoomService(roomRepo, userRepo, broker, service.RoomServiceOptions{
		RoomTTL:            cfg.RoomTTL(),
		EnforceTransitions: cfg.EnforceStatusTransitions,
	})
	accountService := service.NewAccountService(userRepo, tokens)
	rateLimiter := service.NewRateLimiter(redisClient.Client)

	authMiddleware := middleware.NewAuthMiddleware(tokens)
	roomRateLimit := middleware.NewRateLimitMiddleware(rateLimiter, cfg.RoomRateLimitPerMin, middleware.ByUser("rooms"), true)
	authRateLimit := middleware.NewRateLimitMiddleware(rateLimiter, cfg.AuthRateLimitPerMin, middleware.ByIP("auth"), false)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(cfg.IsProduction())

	roomHandler := handler.NewRoomHandler(roomService)
	authHandler := handler.NewAuthHandler(accountService, authMiddleware.Handler)
	eventsHandler := handler.NewEventsHandler(broker, roomService)
	healthHandler := handler.NewHealthHandler(db, config.DBPingTimeout)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(securityHeadersMiddleware.Handler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", healthHandler.ServeHTTP)

	r.Route("/auth", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		r.Use(authRateLimit.Handler)
		r.Mount("/", authHandler.Routes())
	})

	r.Route("/rooms", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Use(roomRateLimit.Handler)

		// Long-lived stream: no request timeout.
		r.Get("/{roomId}/events", eventsHandler.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
			r.Mount("/", roomHandler.Routes())
		})
	})

	if cfg.StaticDir != "" {
		r.NotFound(handler.StaticFileServer(cfg.StaticDir, "").ServeHTTP)
		log.Info().Str("dir", cfg.StaticDir).Msg("serving static files")
	}

	cleanupJob := jobs.NewCleanupJob(roomRepo, config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Str("env", cfg.AppEnv).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogOutput(format string) {
	if format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
