package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stone-app/backend/internal/config"
	delivery "github.com/stone-app/backend/internal/delivery/http"
	"github.com/stone-app/backend/internal/metrics"
	"github.com/stone-app/backend/internal/middleware"
	"github.com/stone-app/backend/internal/repository/postgres"
	"github.com/stone-app/backend/internal/usecase"
	"github.com/stone-app/backend/pkg/moderation"
	"github.com/stone-app/backend/pkg/oauthid"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Stone App Backend Starting...")

	// Load configuration. Refuses to start without a signing key.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	log.Printf("Server configured on port %s", cfg.Server.Port)

	// Connect to PostgreSQL with retry
	var pool *pgxpool.Pool
	for attempt := 1; attempt <= 5; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pool, err = pgxpool.New(ctx, cfg.Database.URL)
		if err == nil {
			if pingErr := pool.Ping(ctx); pingErr == nil {
				cancel()
				log.Println("Connected to PostgreSQL")
				break
			} else {
				pool.Close()
				log.Printf("Attempt %d: Failed to ping database: %v", attempt, pingErr)
			}
		} else {
			log.Printf("Attempt %d: Failed to connect to database: %v", attempt, err)
		}
		cancel()
		if attempt == 5 {
			log.Fatalf("Could not connect to database after 5 attempts")
		}
		time.Sleep(time.Duration(attempt) * 2 * time.Second)
	}
	defer pool.Close()

	// Initialize repositories
	accountRepo := postgres.NewAccountRepository(pool)
	credRepo := postgres.NewRefreshCredentialRepository(pool)
	stoneRepo := postgres.NewStoneRepository(pool)

	// Initialize external collaborators
	verifier := oauthid.NewVerifier(map[oauthid.Provider]oauthid.ProviderConfig{
		oauthid.Apple:  oauthid.AppleConfig(cfg.Apple.ClientID),
		oauthid.Google: oauthid.GoogleConfig(cfg.Google.ClientID),
	})
	moderationClient := moderation.NewClient(cfg.Moderation.URL, cfg.Moderation.APIKey)

	// Initialize usecases
	issuer := usecase.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.AccessExpiry)
	refreshManager := usecase.NewRefreshManager(credRepo, accountRepo, cfg.JWT.RefreshExpiry)
	provisioner := usecase.NewProvisioner(accountRepo, moderationClient)
	authUsecase := usecase.NewAuthUsecase(accountRepo, issuer, refreshManager, provisioner, verifier)
	stoneUsecase := usecase.NewStoneUsecase(stoneRepo)
	uploadUsecase := usecase.NewUploadUsecase(cfg.S3)

	// Initialize HTTP handler and middleware
	m := metrics.NewMetrics("stoneapp")
	handler := delivery.NewHandler(authUsecase, stoneUsecase, uploadUsecase, m)
	authMiddleware := middleware.NewAuthMiddleware(authUsecase)

	// Create router
	router := delivery.NewRouter(handler, authMiddleware, m, cfg.CORS.AllowedOrigins)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	fmt.Println()
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped gracefully")
}
