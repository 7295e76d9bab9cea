package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"relationship-app-backend/internal/config"
	"relationship-app-backend/internal/handlers"
	"relationship-app-backend/internal/middleware"
	"relationship-app-backend/internal/repository"
	"relationship-app-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	// Connect to database
	db, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	coupleRepo := repository.NewCoupleRepository(db)
	txManager := repository.NewTxManager(db)

	// Initialize gateways
	googleVerifier := services.NewGoogleTokenVerifier(cfg.Google.ClientID)
	mailer := services.NewSMTPMailer(cfg.SMTP)
	push, err := services.NewPushNotifier(userRepo, cfg.APNs)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create push notifier")
	}

	// Initialize services
	userService := services.NewUserService(userRepo, coupleRepo, txManager, googleVerifier, mailer, cfg.JWT.Secret)
	pairingService := services.NewPairingService(userRepo, coupleRepo, txManager, cfg.Invite.LinkBase)
	pictureService, err := services.NewPictureService(userRepo, coupleRepo, cfg.AWS)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create picture service")
	}
	wsHub := services.NewWSHub()

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService)
	userHandler := handlers.NewUserHandler(userService, pairingService, wsHub)
	pairingHandler := handlers.NewPairingHandler(pairingService, userService, wsHub, push)
	pictureHandler := handlers.NewPictureHandler(pictureService, pairingService, wsHub)
	wsHandler := handlers.NewWebSocketHandler(wsHub, userService, pairingService)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/google", authHandler.GoogleLogin)
		r.Post("/auth/forgot-password", authHandler.ForgotPassword)
		r.Post("/auth/verify-reset-code", authHandler.VerifyResetCode)
		r.Post("/auth/reset-password", authHandler.ResetPassword)
		r.Get("/invites/{code}", pairingHandler.Preview)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(userService))
			r.Get("/me", userHandler.GetMe)
			r.Patch("/me", userHandler.UpdateProfile)
			r.Delete("/me", userHandler.DeleteAccount)
			r.Put("/me/push-token", userHandler.UpdatePushToken)

			r.Post("/couple/onboard", pairingHandler.Onboard)
			r.Get("/couple/invite", pairingHandler.GetInvite)
			r.Post("/couple/pair", pairingHandler.Pair)
			r.Post("/couple/unlink", pairingHandler.Unlink)
			r.Get("/couple/status", pairingHandler.Status)
			r.Put("/couple/answers", pairingHandler.SubmitAnswers)
			r.Put("/couple/picture", pictureHandler.Upsert)
			r.Delete("/couple/picture", pictureHandler.Delete)
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

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

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
