package api

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"leadharvest/internal/api/handler"
	"leadharvest/internal/api/middleware"
	"leadharvest/internal/config"
	"leadharvest/internal/metrics"
	"leadharvest/internal/repository"
	"leadharvest/internal/service"
)

// Deps bundles everything the HTTP layer needs.
type Deps struct {
	Orchestrator *service.Orchestrator
	Jobs         *repository.JobRepository
	Comments     *repository.CommentRepository
	Profiles     *repository.ProfileRepository
	Credentials  *repository.CredentialRepository
	DB           *gorm.DB
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps *Deps, cfg *config.ServerConfig) *gin.Engine {
	// Set Gin mode
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	metrics.Init()

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.CORS.AllowAllOrigins,
	}))

	// Create handlers
	healthHandler := handler.NewHealthHandler(deps.DB)
	jobHandler := handler.NewJobHandler(deps.Orchestrator, deps.Jobs, deps.Comments)
	profileHandler := handler.NewProfileHandler(deps.Profiles)
	credentialHandler := handler.NewCredentialHandler(deps.Credentials)

	// Health check and metrics stay outside the authenticated group
	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	apiKey := ""
	if cfg.Auth.Enabled {
		apiKey = cfg.Auth.APIKey
	}

	// API v1 routes
	v1 := r.Group("/api/v1")
	v1.Use(middleware.APIKey(apiKey))
	v1.Use(middleware.Identity())
	{
		// Jobs
		v1.POST("/jobs", jobHandler.SubmitJob)
		v1.GET("/jobs", jobHandler.ListJobs)
		v1.GET("/jobs/:id", jobHandler.GetJob)
		v1.POST("/jobs/:id/cancel", jobHandler.CancelJob)
		v1.GET("/jobs/:id/comments", jobHandler.ListJobComments)

		// Profile cache
		v1.GET("/profiles", profileHandler.ListProfiles)
		v1.GET("/profiles/:id", profileHandler.GetProfile)
		v1.DELETE("/profiles", profileHandler.DeleteProfiles)

		// Apify credentials
		v1.PUT("/credentials", credentialHandler.PutCredential)
		v1.GET("/credentials", credentialHandler.ListCredentials)
		v1.DELETE("/credentials/:id", credentialHandler.DeleteCredential)
	}

	return r
}
