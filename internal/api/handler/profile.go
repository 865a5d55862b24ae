package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"leadharvest/internal/api/middleware"
	"leadharvest/internal/repository"
)

// ProfileHandler handles profile cache endpoints.
type ProfileHandler struct {
	profiles *repository.ProfileRepository
}

// NewProfileHandler creates a new profile handler.
// Parameters:
//   - profiles: profile repository instance.
// Returns:
//   - *ProfileHandler: initialized handler.
func NewProfileHandler(profiles *repository.ProfileRepository) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
	}
}

// ListProfiles handles GET /api/v1/profiles.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *ProfileHandler) ListProfiles(c *gin.Context) {
	userID := middleware.UserID(c)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	profiles, err := h.profiles.ListByUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list profiles: " + err.Error(),
		})
		return
	}

	total, err := h.profiles.CountByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to count profiles: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"profiles": profiles,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

// GetProfile handles GET /api/v1/profiles/:id. Profiles are shared cache
// rows, so the handler only serves rows linked to the calling user.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	id := c.Param("id")
	userID := middleware.UserID(c)

	linked, err := h.profiles.IsLinkedToUser(c.Request.Context(), userID, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load profile: " + err.Error(),
		})
		return
	}
	if !linked {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Profile not found",
		})
		return
	}

	profile, err := h.profiles.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Profile not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load profile: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, profile)
}

type deleteProfilesRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

// DeleteProfiles handles DELETE /api/v1/profiles. It removes the caller's
// links to the given profiles; the cached rows survive while other users
// still reference them.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *ProfileHandler) DeleteProfiles(c *gin.Context) {
	var req deleteProfilesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}
	if len(req.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "At least one profile ID is required",
		})
		return
	}

	removed, err := h.profiles.DeleteForUser(c.Request.Context(), middleware.UserID(c), req.IDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to delete profiles: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"removed": removed,
	})
}
