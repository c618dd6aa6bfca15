package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shadownet-chat/internal/auth"
	"shadownet-chat/internal/config"
	"shadownet-chat/internal/handler"
	"shadownet-chat/internal/messaging"
	"shadownet-chat/internal/middleware"
	"shadownet-chat/internal/moderation"
	"shadownet-chat/internal/observability"
	"shadownet-chat/internal/presence"
	"shadownet-chat/internal/repository/postgres"
	"shadownet-chat/internal/service"
	"shadownet-chat/internal/websocket"
)

const tokenDuration = 24 * time.Hour

func main() {
	cfg := config.Load()

	observability.InitLogger(cfg.LogLevel, cfg.LogFormat)

	slog.Info("starting chat server")

	connCtx, connCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer connCancel()

	db, err := config.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.PingContext(connCtx); err != nil {
		slog.Error("database ping failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("connected to postgresql")

	rmqCtx, rmqCancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer rmqCancel()

	rmq, err := messaging.NewRabbitMQWithRetry(rmqCtx, cfg.RabbitMQURL)
	if err != nil {
		slog.Error("failed to connect to rabbitmq", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer rmq.Close()

	userRepo := postgres.NewUserRepository(db)
	groupRepo := postgres.NewGroupRepository(db)
	messageRepo := postgres.NewMessageRepository(db)
	reactionRepo := postgres.NewReactionRepository(db)
	ballotRepo := postgres.NewBallotRepository(db)
	historyRepo := postgres.NewEditHistoryRepository(db)
	termRepo := postgres.NewBannedTermRepository(db)

	filter := moderation.NewFilter(termRepo)
	if err := filter.Refresh(connCtx); err != nil {
		slog.Error("failed to load banned terms", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("moderation filter loaded", slog.Int("terms", filter.Len()))

	tokens := auth.NewJWTManager(cfg.JWTSecret, tokenDuration)
	authService := service.NewAuthService(userRepo, tokens)
	chatService := service.NewChatService(userRepo, groupRepo, messageRepo, reactionRepo, ballotRepo, historyRepo, filter)

	registry := presence.NewRegistry()
	hub := websocket.NewHub()

	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go func() {
		if err := hub.Run(hubCtx); err != nil && err != context.Canceled {
			slog.Error("hub error", slog.String("error", err.Error()))
		}
	}()
	slog.Info("websocket hub started")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alertConsumer := messaging.NewAlertConsumer(rmq, hub)
	if err := alertConsumer.Start(ctx); err != nil {
		slog.Error("failed to start alert consumer", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("alert consumer started")

	go startFilterRefresh(ctx, filter)
	go startDBPoolMetrics(ctx, db)

	authHandler := handler.NewAuthHandler(authService)
	groupHandler := handler.NewGroupHandler(groupRepo, registry)
	chatHandler := handler.NewChatHandler(chatService, hub)
	adminHandler := handler.NewAdminHandler(filter, termRepo, userRepo, chatService, rmq)
	wsHandler := handler.NewWebSocketHandler(hub, chatService, groupRepo, registry)

	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.CORS(middleware.ParseOrigins(cfg.AllowedOrigins)))
	r.Use(middleware.Metrics())
	r.Use(middleware.OpenAPIValidator(middleware.DefaultOpenAPIValidatorConfig()))

	r.Get("/health", handler.Health)
	r.Get("/health/ready", handler.Ready(db, rmq))
	r.Handle("/metrics", promhttp.Handler())

	authLimiter := middleware.NewRateLimiter(5, 10)
	defer authLimiter.Stop()
	apiLimiter := middleware.NewRateLimiter(20, 50)
	defer apiLimiter.Stop()

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authLimiter.Middleware())
			r.Post("/auth/register", authHandler.Register)
			r.Post("/auth/login", authHandler.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tokens))
			r.Use(apiLimiter.Middleware())

			r.Get("/auth/me", authHandler.Me)

			r.Get("/groups", groupHandler.List)
			r.Post("/groups", groupHandler.Create)
			r.Get("/groups/{id}", groupHandler.Get)
			r.Get("/groups/{id}/members", groupHandler.Members)
			r.Get("/groups/{id}/messages", chatHandler.GetMessages)

			r.Patch("/messages/{id}", chatHandler.Edit)
			r.Get("/messages/{id}/history", chatHandler.History)
			r.Post("/messages/{id}/vote", chatHandler.Vote)
			r.Post("/messages/{id}/reactions", chatHandler.React)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tokens))
			r.Use(middleware.RequireAdmin)

			r.Get("/shadow/terms", adminHandler.ListTerms)
			r.Post("/shadow/terms", adminHandler.AddTerm)
			r.Delete("/shadow/terms/{term}", adminHandler.DeleteTerm)
			r.Get("/shadow/users", adminHandler.ListUsers)
			r.Post("/shadow/users/{id}/mute", adminHandler.MuteUser)
			r.Delete("/shadow/users/{id}/mute", adminHandler.UnmuteUser)
			r.Get("/shadow/messages", adminHandler.RecentMessages)
			r.Delete("/shadow/messages/{id}", adminHandler.DeleteMessage)
			r.Post("/shadow/broadcast", adminHandler.Broadcast)
			r.Delete("/groups/{id}", groupHandler.Delete)
		})
	})

	// Auth middleware runs here too; browser clients pass the token as a
	// query parameter.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(tokens))
		r.Get("/ws", wsHandler.HandleConnection)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("chat server listening", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", slog.String("error", err.Error()))
	}

	cancel()
	hubCancel()

	time.Sleep(100 * time.Millisecond)

	slog.Info("server stopped gracefully")
}

// startFilterRefresh reloads the banned-term cache periodically so instances
// converge on changes made elsewhere.
func startFilterRefresh(ctx context.Context, filter *moderation.Filter) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refreshCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			if err := filter.Refresh(refreshCtx); err != nil {
				slog.Warn("banned term refresh failed", slog.String("error", err.Error()))
			}
			cancel()
		}
	}
}

// startDBPoolMetrics exports connection pool gauges.
func startDBPoolMetrics(ctx context.Context, db *sql.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			observability.DBConnectionsOpen.Set(float64(stats.OpenConnections))
			observability.DBConnectionsInUse.Set(float64(stats.InUse))
			observability.DBConnectionsIdle.Set(float64(stats.Idle))
		}
	}
}
