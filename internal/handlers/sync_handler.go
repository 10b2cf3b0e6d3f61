package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flowsync/flowsync-api/internal/middleware"
	"github.com/flowsync/flowsync-api/internal/models"
	"github.com/flowsync/flowsync-api/internal/services"
)

type SyncHandler struct {
	service services.SyncServiceInterface
}

func NewSyncHandler(service services.SyncServiceInterface) *SyncHandler {
	return &SyncHandler{service: service}
}

// authorize returns the caller's user ID when the token covers the
// integration in the path.
func authorize(c *gin.Context, integrationID string) (string, bool) {
	claims, err := middleware.GetClaims(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "Unauthorized", err)
		return "", false
	}
	if !claims.CanAccess(integrationID) {
		respondError(c, http.StatusForbidden, "Token does not cover this integration", errors.New("integration outside token scope"))
		return "", false
	}
	return claims.UserID, true
}

// RunSync starts a sync of the selected collections and answers with the
// run ID; the run itself continues in the background.
func (h *SyncHandler) RunSync(c *gin.Context) {
	integrationID := c.Param("id")
	if !validUUID(integrationID) {
		respondError(c, http.StatusBadRequest, "Invalid integration ID", nil)
		return
	}
	userID, ok := authorize(c, integrationID)
	if !ok {
		return
	}

	var req models.RunSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		details := ParseValidationErrors(err)
		if len(details) == 0 {
			respondError(c, http.StatusBadRequest, "Invalid request body", err)
			return
		}
		respondErrorWithDetails(c, http.StatusBadRequest, "Validation failed", details, err)
		return
	}

	run, err := h.service.StartSync(c.Request.Context(), userID, integrationID, req.CollectionIDs, models.TriggerAPI)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, models.RunSyncResponse{RunID: run.ID, Status: run.Status})
}

// GetRun returns a run and, once finished, its result.
func (h *SyncHandler) GetRun(c *gin.Context) {
	integrationID := c.Param("id")
	runID := c.Param("runId")
	if !validUUID(integrationID) || !validUUID(runID) {
		respondError(c, http.StatusBadRequest, "Invalid ID", nil)
		return
	}
	userID, ok := authorize(c, integrationID)
	if !ok {
		return
	}

	run, err := h.service.GetRun(c.Request.Context(), userID, integrationID, runID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, run)
}
