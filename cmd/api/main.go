package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadharvest/internal/api"
	"leadharvest/internal/apify"
	"leadharvest/internal/config"
	"leadharvest/internal/logger"
	"leadharvest/internal/repository"
	"leadharvest/internal/service"
	"leadharvest/internal/storage"
)

func main() {
	// Initialize logger first (with env overrides)
	appLogger := logger.New(logger.FromEnv())
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		appLogger.WithError(err).Fatal("Invalid configuration")
	}

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	// Initialize repositories
	jobRepo := repository.NewJobRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	credentialRepo := repository.NewCredentialRepository(db)

	// Apify client; per-user tokens override the server-wide one per job
	apifyClient := apify.New(&apify.Config{
		BaseURL:        cfg.Apify.BaseURL,
		Token:          cfg.Apify.Token,
		CommentsActor:  cfg.Apify.CommentsActor,
		ProfilesActor:  cfg.Apify.ProfilesActor,
		RequestTimeout: cfg.Apify.RequestTimeout,
		PollInterval:   cfg.Apify.PollInterval,
		RunTimeout:     cfg.Apify.RunTimeout,
		MaxRetries:     cfg.Apify.MaxRetries,
		RetryWait:      cfg.Apify.RetryWait,
		RetryMaxWait:   cfg.Apify.RetryMaxWait,
	})

	// Run archive storage (supports MinIO, R2, S3); optional
	var objectStorage storage.ObjectStorage
	if cfg.Scrape.ArchiveRuns {
		if !cfg.Storage.Enabled() {
			appLogger.Warn("Run archiving enabled but no storage endpoint configured; archiving disabled")
		} else {
			objectStorage, err = storage.NewStorage(&storage.S3Config{
				Type:      storage.StorageType(cfg.Storage.Type),
				Endpoint:  cfg.Storage.Endpoint,
				AccessKey: cfg.Storage.AccessKey,
				SecretKey: cfg.Storage.SecretKey,
				UseSSL:    cfg.Storage.UseSSL,
				Bucket:    cfg.Storage.Bucket,
				Region:    cfg.Storage.Region,
				PublicURL: cfg.Storage.PublicURL,
			})
			if err != nil {
				appLogger.WithError(err).Fatal("Failed to initialize storage")
			}
			if err := objectStorage.EnsureBucket(context.Background()); err != nil {
				appLogger.WithError(err).Warn("Failed to ensure storage bucket; archive uploads may fail")
			}
		}
	}

	// Initialize services
	resolver := service.NewResolver(profileRepo, cfg.Scrape.RefreshAfter, appLogger)
	archiver := service.NewArchiver(objectStorage, appLogger)
	orchestrator := service.NewOrchestrator(
		jobRepo,
		commentRepo,
		credentialRepo,
		resolver,
		apifyClient,
		archiver,
		appLogger,
		&service.OrchestratorConfig{
			MaxProfilesPerPost: cfg.Scrape.MaxProfilesPerPost,
			MaxComments:        cfg.Scrape.MaxComments,
		},
	)

	// Setup router
	router := api.SetupRouter(&api.Deps{
		Orchestrator: orchestrator,
		Jobs:         jobRepo,
		Comments:     commentRepo,
		Profiles:     profileRepo,
		Credentials:  credentialRepo,
		DB:           db,
	}, &cfg.Server)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Stop accepting requests, then stop in-flight jobs
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	jobCtx, jobCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer jobCancel()

	if err := orchestrator.Shutdown(jobCtx); err != nil {
		appLogger.WithError(err).Warn("Some jobs did not stop cleanly")
	}

	appLogger.Info("Server exited")
}
