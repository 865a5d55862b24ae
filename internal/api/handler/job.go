package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"leadharvest/internal/api/middleware"
	"leadharvest/internal/domain"
	"leadharvest/internal/repository"
	"leadharvest/internal/service"
)

// JobHandler handles scrape job endpoints.
type JobHandler struct {
	orchestrator *service.Orchestrator
	jobs         *repository.JobRepository
	comments     *repository.CommentRepository
}

// NewJobHandler creates a new job handler.
// Parameters:
//   - orchestrator: job orchestrator instance.
//   - jobs: job repository instance.
//   - comments: comment repository instance.
// Returns:
//   - *JobHandler: initialized handler.
func NewJobHandler(orchestrator *service.Orchestrator, jobs *repository.JobRepository, comments *repository.CommentRepository) *JobHandler {
	return &JobHandler{
		orchestrator: orchestrator,
		jobs:         jobs,
		comments:     comments,
	}
}

type submitJobRequest struct {
	Kind        string   `json:"kind" binding:"required"`
	TargetURL   string   `json:"target_url"`
	TargetURLs  []string `json:"target_urls"`
	MaxProfiles int      `json:"max_profiles"`
}

// SubmitJob handles POST /api/v1/jobs.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *JobHandler) SubmitJob(c *gin.Context) {
	var req submitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	job, err := h.orchestrator.Submit(c.Request.Context(), service.JobRequest{
		UserID:      middleware.UserID(c),
		Kind:        domain.JobKind(req.Kind),
		TargetURL:   req.TargetURL,
		TargetURLs:  req.TargetURLs,
		MaxProfiles: req.MaxProfiles,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) || errors.Is(err, service.ErrNoCredential) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to submit job: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, job)
}

// ListJobs handles GET /api/v1/jobs.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *JobHandler) ListJobs(c *gin.Context) {
	userID := middleware.UserID(c)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	jobs, err := h.jobs.ListByUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs: " + err.Error(),
		})
		return
	}

	total, err := h.jobs.CountByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to count jobs: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":   jobs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetJob handles GET /api/v1/jobs/:id.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *JobHandler) GetJob(c *gin.Context) {
	job, ok := h.ownedJob(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, job)
}

// CancelJob handles POST /api/v1/jobs/:id/cancel.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *JobHandler) CancelJob(c *gin.Context) {
	err := h.orchestrator.Cancel(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
		case errors.Is(err, repository.ErrJobFinished):
			c.JSON(http.StatusConflict, gin.H{
				"error": "Job already finished",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to cancel job: " + err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "cancelling",
	})
}

// ListJobComments handles GET /api/v1/jobs/:id/comments.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *JobHandler) ListJobComments(c *gin.Context) {
	job, ok := h.ownedJob(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	comments, err := h.comments.ListByJob(c.Request.Context(), job.ID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list comments: " + err.Error(),
		})
		return
	}

	total, err := h.comments.CountByJob(c.Request.Context(), job.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to count comments: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"comments": comments,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

// ownedJob loads the path job and enforces ownership. Foreign jobs read as
// not found so job IDs leak nothing across users.
func (h *JobHandler) ownedJob(c *gin.Context) (*domain.Job, bool) {
	job, err := h.jobs.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load job: " + err.Error(),
		})
		return nil, false
	}

	if job.UserID != middleware.UserID(c) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Job not found",
		})
		return nil, false
	}

	return job, true
}
