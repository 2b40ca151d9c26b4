package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quiz-portal-go/config"
	"quiz-portal-go/database"
	"quiz-portal-go/handlers"
	"quiz-portal-go/logging"
	"quiz-portal-go/middleware"
	"quiz-portal-go/services"

	"github.com/gorilla/mux"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Configuration error: %v", err)
	}

	logging.Configure(logging.Config{
		Level:       cfg.Logging.Level,
		EnableColor: cfg.Logging.EnableColor,
	})
	cfg.LogConfiguration()

	// Database
	db, err := database.NewMongoConnection(database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		Timeout:  cfg.Database.Timeout,
	})
	if err != nil {
		logging.Fatalf("Database connection failed: %v", err)
	}
	defer db.Close()

	if err := db.TestConnection(); err != nil {
		logging.Fatalf("Database ping failed: %v", err)
	}

	// Repositories
	userRepo := database.NewMongoUserRepository(db)
	teamRepo := database.NewMongoTeamRepository(db)
	toggleRepo := database.NewMongoToggleRepository(db)
	roundRepo := database.NewMongoRoundRepository(db)
	allowlistRepo := database.NewMongoAllowlistRepository(db)

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), 30*time.Second)
	if err := userRepo.EnsureIndexes(indexCtx); err != nil {
		logging.Warnf("Failed to ensure user indexes: %v", err)
	}
	if err := teamRepo.EnsureIndexes(indexCtx); err != nil {
		logging.Warnf("Failed to ensure team indexes: %v", err)
	}
	cancelIndexes()

	// Services
	authService := services.NewAuthService(userRepo, allowlistRepo, cfg.Auth.JWTSecret, cfg.Auth.RestrictSignups)
	emailService := services.NewEmailService(services.EmailConfig{
		SMTPHost:     cfg.Email.SMTPHost,
		SMTPPort:     cfg.Email.SMTPPort,
		SMTPUsername: cfg.Email.SMTPUsername,
		SMTPPassword: cfg.Email.SMTPPassword,
		FromEmail:    cfg.Email.FromEmail,
		FromName:     cfg.Email.FromName,
	})
	teamService := services.NewTeamService(userRepo, teamRepo, cfg.App.MinTeamSize, cfg.App.MaxTeamSize)

	changeWatcher := services.NewChangeStreamWatcher(db)
	changeWatcher.Start()
	defer changeWatcher.Stop()

	leaderboardService := services.NewLeaderboardService(teamRepo, toggleRepo, changeWatcher)
	roundService := services.NewRoundService(roundRepo, toggleRepo, changeWatcher)

	// SSE fan-out and the reveal state machine feeding it
	sseHandler := handlers.NewSSEHandler()
	defer sseHandler.Stop()

	revealController := services.NewRevealController(leaderboardService, cfg.App.LeaderboardSize, sseHandler.BroadcastReveal)
	revealController.Start()
	defer revealController.Stop()

	roundStatusSub := roundService.SubscribeAllRoundStatuses(sseHandler.BroadcastRoundStatus)
	defer roundStatusSub.Unsubscribe()

	// Handlers
	authHandler := handlers.NewAuthHandler(authService, emailService, cfg)
	teamHandler := handlers.NewTeamHandler(teamService)
	leaderboardHandler := handlers.NewLeaderboardHandler(leaderboardService)
	roundHandler := handlers.NewRoundHandler(roundService)
	adminHandler := handlers.NewAdminHandler(toggleRepo, teamService, cfg.Auth.AdminToken)

	authMiddleware := middleware.NewAuthMiddleware(authService)

	// Routes
	r := mux.NewRouter()
	r.Use(middleware.SecurityMiddleware)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/signup", authHandler.Signup).Methods("POST")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST")
	api.HandleFunc("/auth/logout", authHandler.Logout).Methods("POST")
	api.HandleFunc("/auth/forgot-password", authHandler.ForgotPassword).Methods("POST")
	api.HandleFunc("/auth/reset-password", authHandler.ResetPassword).Methods("POST")
	api.Handle("/auth/me", authMiddleware.RequireAuth(http.HandlerFunc(authHandler.Me))).Methods("GET")

	api.Handle("/teams", authMiddleware.RequireAuth(http.HandlerFunc(teamHandler.Create))).Methods("POST")
	api.Handle("/teams/join", authMiddleware.RequireAuth(http.HandlerFunc(teamHandler.Join))).Methods("POST")
	api.Handle("/teams/leave", authMiddleware.RequireAuth(http.HandlerFunc(teamHandler.Leave))).Methods("POST")
	api.Handle("/teams/mine", authMiddleware.RequireAuth(http.HandlerFunc(teamHandler.MyTeam))).Methods("GET")
	api.Handle("/teams/settings", authMiddleware.RequireAuth(http.HandlerFunc(teamHandler.UpdateSettings))).Methods("PATCH")
	api.Handle("/profile", authMiddleware.RequireAuth(http.HandlerFunc(teamHandler.UpdateProfile))).Methods("PATCH")

	api.HandleFunc("/leaderboard", leaderboardHandler.TopTeams).Methods("GET")
	api.HandleFunc("/leaderboard/live", leaderboardHandler.LiveFlag).Methods("GET")

	api.Handle("/rounds/{round}/status", authMiddleware.RequireAuth(http.HandlerFunc(roundHandler.Status))).Methods("GET")
	api.Handle("/rounds/{round}", authMiddleware.RequireAuth(http.HandlerFunc(roundHandler.Content))).Methods("GET")

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(adminHandler.RequireToken)
	admin.HandleFunc("/toggles/live", adminHandler.SetLive).Methods("POST")
	admin.HandleFunc("/toggles/rounds/{round}", adminHandler.SetRound).Methods("POST")
	admin.HandleFunc("/points", adminHandler.AwardPoints).Methods("POST")

	r.Handle("/events", authMiddleware.OptionalAuth(http.HandlerFunc(sseHandler.Handle))).Methods("GET")

	srv := &http.Server{
		Addr:    cfg.GetServerAddress(),
		Handler: r,
	}

	go func() {
		logging.Infof("Server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Errorf("Server shutdown error: %v", err)
	}
}
