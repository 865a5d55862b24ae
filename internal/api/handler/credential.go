package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"leadharvest/internal/api/middleware"
	"leadharvest/internal/domain"
	"leadharvest/internal/repository"
)

// CredentialHandler handles provider credential endpoints.
type CredentialHandler struct {
	credentials *repository.CredentialRepository
}

// NewCredentialHandler creates a new credential handler.
// Parameters:
//   - credentials: credential repository instance.
// Returns:
//   - *CredentialHandler: initialized handler.
func NewCredentialHandler(credentials *repository.CredentialRepository) *CredentialHandler {
	return &CredentialHandler{
		credentials: credentials,
	}
}

type putCredentialRequest struct {
	Provider string `json:"provider"`
	Label    string `json:"label"`
	Token    string `json:"token" binding:"required"`
}

// credentialView adds the masked token to the serialized credential. The
// raw token never leaves the server.
type credentialView struct {
	domain.Credential
	TokenHint string `json:"token_hint"`
}

func viewOf(cred domain.Credential) credentialView {
	return credentialView{
		Credential: cred,
		TokenHint:  cred.MaskedToken(),
	}
}

// PutCredential handles PUT /api/v1/credentials. Saving a credential for a
// provider the user already configured overwrites the stored token.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *CredentialHandler) PutCredential(c *gin.Context) {
	var req putCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	provider := req.Provider
	if provider == "" {
		provider = domain.ProviderApify
	}

	cred, err := h.credentials.Upsert(c.Request.Context(), &domain.Credential{
		ID:       uuid.New().String(),
		UserID:   middleware.UserID(c),
		Provider: provider,
		Label:    req.Label,
		Token:    req.Token,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to save credential: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, viewOf(*cred))
}

// ListCredentials handles GET /api/v1/credentials.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *CredentialHandler) ListCredentials(c *gin.Context) {
	creds, err := h.credentials.ListByUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list credentials: " + err.Error(),
		})
		return
	}

	views := make([]credentialView, 0, len(creds))
	for _, cred := range creds {
		views = append(views, viewOf(cred))
	}

	c.JSON(http.StatusOK, gin.H{
		"credentials": views,
	})
}

// DeleteCredential handles DELETE /api/v1/credentials/:id.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *CredentialHandler) DeleteCredential(c *gin.Context) {
	err := h.credentials.Delete(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Credential not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to delete credential: " + err.Error(),
		})
		return
	}

	c.Status(http.StatusNoContent)
}
