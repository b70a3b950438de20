package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"

	"github.com/okhomin/bracket-engine/brackets"
	"github.com/okhomin/bracket-engine/config"
	"github.com/okhomin/bracket-engine/db"
	"github.com/okhomin/bracket-engine/handlers"
	"github.com/okhomin/bracket-engine/repositories"
	api "github.com/okhomin/bracket-engine/routes"
	"github.com/okhomin/bracket-engine/services"
	"github.com/okhomin/bracket-engine/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded",
		slog.Int("port", cfg.ServerPort),
		slog.String("storage_driver", cfg.StorageDriver))

	var (
		tournamentRepo repositories.TournamentRepository
		entryRepo      repositories.EntryRepository
		matchRepo      repositories.MatchRepository
		transactor     repositories.Transactor
	)

	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		store := repositories.NewMemoryStore()
		tournamentRepo = store.Tournaments()
		entryRepo = store.Entries()
		matchRepo = store.Matches()
		transactor = store.Transactor()
		logger.Info("in-memory storage initialized")

	default:
		dbConn, connErr := db.Connect(cfg.DatabaseURL, 5*time.Second)
		if connErr != nil {
			logger.Error("failed to connect to database", slog.Any("error", connErr))
			os.Exit(1)
		}
		defer func() {
			if closeErr := dbConn.Close(); closeErr != nil {
				logger.Error("failed to close database connection", slog.Any("error", closeErr))
			}
		}()
		logger.Info("database connection established")

		if migErr := db.Migrate(cfg.DatabaseURL, cfg.MigrationsPath); migErr != nil {
			logger.Error("failed to apply migrations", slog.Any("error", migErr))
			os.Exit(1)
		}
		logger.Info("migrations applied")

		tournamentRepo = repositories.NewPostgresTournamentRepository(dbConn)
		entryRepo = repositories.NewPostgresEntryRepository(dbConn)
		matchRepo = repositories.NewPostgresMatchRepository(dbConn)
		transactor = repositories.NewSQLTransactor(dbConn)
	}

	var uploader storage.FileUploader
	if cfg.R2Configured() {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Info("archive export disabled (R2 not configured)")
	}

	wsHub := brackets.NewHub()
	go wsHub.Run()
	logger.Info("websocket hub started")

	snapshotService := services.NewSnapshotService(tournamentRepo, entryRepo, matchRepo, wsHub, logger)
	lifecycleService := services.NewLifecycleService(
		tournamentRepo, entryRepo, matchRepo, transactor,
		brackets.NewSingleEliminationGenerator(), snapshotService, logger,
	)
	registrationService := services.NewRegistrationService(tournamentRepo, entryRepo, snapshotService, logger)
	advancementService := services.NewAdvancementService(
		tournamentRepo, entryRepo, matchRepo, transactor, snapshotService, logger,
	)
	// The chat platform owns the guild workspace; nothing to tear down here.
	adminService := services.NewAdminService(
		tournamentRepo, entryRepo, matchRepo, transactor, snapshotService, uploader, nil, logger,
	)
	devService := services.NewDevService(entryRepo, matchRepo, registrationService, advancementService, logger)
	logger.Info("services initialized")

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		cfg.JWTSecretKey,
		handlers.NewTournamentHandler(lifecycleService),
		handlers.NewEntryHandler(lifecycleService, registrationService),
		handlers.NewMatchHandler(lifecycleService, advancementService),
		handlers.NewDashboardHandler(lifecycleService, snapshotService),
		handlers.NewAdminHandler(lifecycleService, adminService),
		handlers.NewDevHandler(lifecycleService, devService),
		handlers.NewWebSocketHandler(wsHub, logger),
	)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}
