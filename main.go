package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/s-hosono/stamprally/internal/api"
	"github.com/s-hosono/stamprally/internal/auth"
	"github.com/s-hosono/stamprally/internal/config"
	"github.com/s-hosono/stamprally/internal/logger"
	"github.com/s-hosono/stamprally/internal/monitoring"
	"github.com/s-hosono/stamprally/internal/repository"
	"github.com/s-hosono/stamprally/internal/services"
	"github.com/s-hosono/stamprally/internal/stamps"
	"github.com/s-hosono/stamprally/internal/store"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel, cfg.Environment)

	ctx := context.Background()

	// Set up the record store
	backend, err := store.NewFileBackend(cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize data directory")
	}
	dataStore := store.New(backend, cfg.LockTimeout)

	credentials := repository.NewCredentials(dataStore)
	if err := credentials.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize credential collections")
	}

	points, err := stamps.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.CatalogPath).Msg("Failed to load stamp catalog")
	}

	// Set up services
	eventService := services.NewEventService(dataStore, cfg.EventRetain)
	authService := services.NewAuthService(credentials, auth.NewBcryptHasher(cfg.BcryptCost), eventService)
	stampService := services.NewStampService(dataStore, stamps.NewEngine(points, cfg.StampRangeKm), eventService)
	if err := stampService.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize stamp collection")
	}
	backupService := services.NewBackupService(dataStore, []string{
		repository.UsersCollection,
		repository.PasswordsCollection,
		services.StampsCollection,
		services.EventsCollection,
	}, eventService, cfg.BackupPath, cfg.BackupRetain)

	// Set up and run the background scheduler
	var scheduler *monitoring.Scheduler
	if cfg.BackupsEnabled() {
		scheduler, err = monitoring.NewScheduler(backupService, cfg.BackupCron)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to configure backup scheduler")
		}
		go scheduler.Run()
	}

	// Set up router
	router := api.NewRouter(api.Dependencies{
		Environment:    cfg.Environment,
		AllowedOrigins: cfg.FrontendURLs,
		SecureCookies:  cfg.IsProduction(),
		Tokens:         auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		AuthService:    authService,
		StampService:   stampService,
		EventService:   eventService,
		BackupService:  backupService,
	})

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().
			Int("port", cfg.ServerPort).
			Str("environment", cfg.Environment).
			Str("data_dir", cfg.DataDir).
			Int("stamp_points", len(points)).
			Msg("Server starting")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	if scheduler != nil {
		scheduler.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
}
