package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/flowsync/flowsync-api/internal/models"
	apperrors "github.com/flowsync/flowsync-api/pkg/errors"
)

type mockWebhookService struct {
	mock.Mock
}

func (m *mockWebhookService) Dispatch(ctx context.Context, integrationID string, event *models.WebhookEvent) (*models.WebhookResult, error) {
	args := m.Called(ctx, integrationID, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WebhookResult), args.Error(1)
}

func (m *mockWebhookService) HandleItemCreated(ctx context.Context, integration *models.Integration, payload *models.WebhookPayload) *models.WebhookResult {
	return m.Called(ctx, integration, payload).Get(0).(*models.WebhookResult)
}

func (m *mockWebhookService) HandleItemUpdated(ctx context.Context, integration *models.Integration, payload *models.WebhookPayload) *models.WebhookResult {
	return m.Called(ctx, integration, payload).Get(0).(*models.WebhookResult)
}

func (m *mockWebhookService) HandleItemDeleted(ctx context.Context, integration *models.Integration, payload *models.WebhookPayload) *models.WebhookResult {
	return m.Called(ctx, integration, payload).Get(0).(*models.WebhookResult)
}

func webhookRouter(service *mockWebhookService) *gin.Engine {
	router := gin.New()
	router.POST("/api/v1/webhooks/webflow/:integrationId", NewWebhookHandler(service).HandleWebflowWebhook)
	return router
}

const itemChanged = `{"triggerType":"collection_item_changed","payload":{"id":"item-1","collectionId":"col-1","fieldData":{"name":"Hello"}}}`

func TestWebhookHandler_Success(t *testing.T) {
	service := new(mockWebhookService)
	service.On("Dispatch", mock.Anything, integrationID, mock.MatchedBy(func(e *models.WebhookEvent) bool {
		return e.TriggerType == models.TriggerItemChanged && e.Payload.ItemRef() == "item-1" && e.Payload.FieldData["name"] == "Hello"
	})).Return(&models.WebhookResult{Success: true, Message: "page updated"}, nil).Once()

	w := post(webhookRouter(service), "", "/api/v1/webhooks/webflow/"+integrationID, itemChanged)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"message":"page updated"}`, w.Body.String())
	service.AssertExpectations(t)
}

func TestWebhookHandler_FailureAsksForRedelivery(t *testing.T) {
	service := new(mockWebhookService)
	service.On("Dispatch", mock.Anything, integrationID, mock.Anything).
		Return(&models.WebhookResult{Success: false, Message: "failed to update page", Error: "boom"}, nil).Once()

	w := post(webhookRouter(service), "", "/api/v1/webhooks/webflow/"+integrationID, itemChanged)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "failed to update page")
}

func TestWebhookHandler_UnknownIntegration(t *testing.T) {
	service := new(mockWebhookService)
	service.On("Dispatch", mock.Anything, integrationID, mock.Anything).
		Return(nil, apperrors.NotFoundError("integration")).Once()

	w := post(webhookRouter(service), "", "/api/v1/webhooks/webflow/"+integrationID, itemChanged)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhookHandler_BadRequests(t *testing.T) {
	service := new(mockWebhookService)
	router := webhookRouter(service)

	w := post(router, "", "/api/v1/webhooks/webflow/"+integrationID, `{"payload":{}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(router, "", "/api/v1/webhooks/webflow/nope", itemChanged)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	service.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything, mock.Anything)
}
