package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flowsync/flowsync-api/internal/models"
	"github.com/flowsync/flowsync-api/internal/services"
	apperrors "github.com/flowsync/flowsync-api/pkg/errors"
)

type WebhookHandler struct {
	service services.WebhookServiceInterface
}

func NewWebhookHandler(service services.WebhookServiceInterface) *WebhookHandler {
	return &WebhookHandler{service: service}
}

// HandleWebflowWebhook applies one signed Webflow delivery. Failed events
// answer 500 so Webflow redelivers them; handlers are idempotent.
func (h *WebhookHandler) HandleWebflowWebhook(c *gin.Context) {
	integrationID := c.Param("integrationId")
	if !validUUID(integrationID) {
		respondError(c, http.StatusBadRequest, "Invalid integration ID", nil)
		return
	}

	var event models.WebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid payload", err)
		return
	}

	result, err := h.service.Dispatch(c.Request.Context(), integrationID, &event)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			respondError(c, http.StatusNotFound, "Integration not found", err)
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to process webhook", err)
		return
	}

	if !result.Success {
		attachError(c, errors.New(result.Error))
		c.JSON(http.StatusInternalServerError, result)
		return
	}

	c.JSON(http.StatusOK, result)
}
