package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/flowsync/flowsync-api/pkg/errors"
)

// attachError attaches err to the gin context so the observability middleware
// can include the reason in the request log. c.Error() returns *gin.Error (not
// the error interface), so we suppress errcheck here intentionally.
func attachError(c *gin.Context, err error) {
	if err != nil {
		_ = c.Error(err) //nolint:errcheck
	}
}

// respondError sends an error JSON response and attaches the error to the gin context
// so the observability middleware can include the reason in the request log.
func respondError(c *gin.Context, status int, message string, err error) {
	attachError(c, err)
	c.JSON(status, gin.H{"error": message})
}

// respondErrorWithDetails sends an error response with an additional details field.
func respondErrorWithDetails(c *gin.Context, status int, message string, details any, err error) { //nolint:unparam
	attachError(c, err)
	c.JSON(status, gin.H{"error": message, "details": details})
}

// respondServiceError maps a service error onto a status code.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case apperrors.Is(err, apperrors.ErrNotFound):
		respondError(c, http.StatusNotFound, "Not found", err)
	case apperrors.Is(err, apperrors.ErrConflict):
		respondError(c, http.StatusConflict, "A sync is already running for this integration", err)
	case apperrors.Is(err, apperrors.ErrInvalidInput):
		respondError(c, http.StatusBadRequest, "Invalid request", err)
	case apperrors.Is(err, apperrors.ErrConfiguration):
		respondError(c, http.StatusFailedDependency, "Integration is not fully connected", err)
	case apperrors.Is(err, apperrors.ErrUnauthorized):
		respondError(c, http.StatusBadGateway, "Upstream rejected stored credentials", err)
	default:
		respondError(c, http.StatusInternalServerError, "Internal server error", err)
	}
}
