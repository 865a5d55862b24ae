package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"leadharvest/internal/apify"
	"leadharvest/internal/config"
	"leadharvest/internal/domain"
	"leadharvest/internal/logger"
	"leadharvest/internal/repository"
	"leadharvest/internal/service"
	"leadharvest/internal/storage"
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "text",
		ServiceName: "leadharvest-scrape",
	})
	logger.SetDefaultLogger(appLogger)

	// Parse command line flags
	kind := flag.String("kind", "post_comments", "Job kind: post_comments, profile_details or mixed")
	postURL := flag.String("post", "", "LinkedIn post URL (post_comments and mixed)")
	profileURLs := flag.String("profiles", "", "Comma-separated LinkedIn profile URLs (profile_details)")
	maxProfiles := flag.Int("max-profiles", 0, "Cap on commenter profiles scraped in mixed mode; 0 uses the configured default")
	userID := flag.String("user", "cli", "User ID the job and its results belong to")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
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

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	// Run archive storage; optional
	var objectStorage storage.ObjectStorage
	if cfg.Scrape.ArchiveRuns && cfg.Storage.Enabled() {
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
		if err := objectStorage.EnsureBucket(ctx); err != nil {
			appLogger.WithError(err).Warn("Failed to ensure storage bucket; archive uploads may fail")
		}
	}

	// Initialize services
	orchestrator := service.NewOrchestrator(
		jobRepo,
		commentRepo,
		credentialRepo,
		service.NewResolver(profileRepo, cfg.Scrape.RefreshAfter, appLogger),
		apifyClient,
		service.NewArchiver(objectStorage, appLogger),
		appLogger,
		&service.OrchestratorConfig{
			MaxProfilesPerPost: cfg.Scrape.MaxProfilesPerPost,
			MaxComments:        cfg.Scrape.MaxComments,
			OnProgress: func(stage string, percent int, message string) {
				appLogger.WithFields(logger.Fields{
					"stage":   stage,
					"percent": percent,
				}).Info(message)
			},
		},
	)

	req := service.JobRequest{
		UserID:      *userID,
		Kind:        domain.JobKind(*kind),
		TargetURL:   *postURL,
		MaxProfiles: *maxProfiles,
	}
	if *profileURLs != "" {
		for _, u := range strings.Split(*profileURLs, ",") {
			if u = strings.TrimSpace(u); u != "" {
				req.TargetURLs = append(req.TargetURLs, u)
			}
		}
	}

	appLogger.WithFields(logger.Fields{
		"kind": *kind,
		"user": *userID,
	}).Info("Starting scrape")

	job, err := orchestrator.RunSync(ctx, req)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to run scrape job")
	}

	fields := logger.Fields{
		"job_id":       job.ID,
		"status":       job.Status,
		"results":      job.ResultsCount,
		"cache_hits":   job.CacheHits,
		"cache_misses": job.CacheMisses,
	}
	if job.Status != domain.JobStatusCompleted {
		appLogger.WithFields(fields).WithField("message", job.Message).Fatal("Scrape did not complete")
	}
	appLogger.WithFields(fields).Info("Scrape completed")
}
