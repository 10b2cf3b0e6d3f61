package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/flowsync/flowsync-api/internal/middleware"
	"github.com/flowsync/flowsync-api/internal/models"
	apperrors "github.com/flowsync/flowsync-api/pkg/errors"
	"github.com/flowsync/flowsync-api/pkg/jwt"
)

const (
	integrationID = "6f1c2d3e-4b5a-4c6d-8e7f-9a0b1c2d3e4f"
	runID         = "0a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d"
)

type mockSyncService struct {
	mock.Mock
}

func (m *mockSyncService) StartSync(ctx context.Context, userID, integrationID string, collectionIDs []string, trigger string) (*models.SyncRun, error) {
	args := m.Called(ctx, userID, integrationID, collectionIDs, trigger)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncRun), args.Error(1)
}

func (m *mockSyncService) RunSelectedCollectionsSync(ctx context.Context, userID, integrationID string, collectionIDs []string) (*models.SyncResult, error) {
	args := m.Called(ctx, userID, integrationID, collectionIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncResult), args.Error(1)
}

func (m *mockSyncService) GetRun(ctx context.Context, userID, integrationID, runID string) (*models.SyncRun, error) {
	args := m.Called(ctx, userID, integrationID, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncRun), args.Error(1)
}

func (m *mockSyncService) ResyncMapped(ctx context.Context, integration *models.Integration) (*models.SyncRun, error) {
	args := m.Called(ctx, integration)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncRun), args.Error(1)
}

func syncRouter(t *testing.T, service *mockSyncService, scope ...string) (*gin.Engine, string) {
	t.Helper()
	tm := jwt.NewTokenManager("secret", "flowsync-api", time.Hour)
	token, err := tm.GenerateToken("user-1", scope...)
	require.NoError(t, err)

	handler := NewSyncHandler(service)
	router := gin.New()
	group := router.Group("/api/v1", middleware.BearerAuthMiddleware(tm))
	group.POST("/integrations/:id/sync", handler.RunSync)
	group.GET("/integrations/:id/sync-runs/:runId", handler.GetRun)
	return router, "Bearer " + token
}

func post(router *gin.Engine, auth, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", auth)
	router.ServeHTTP(w, req)
	return w
}

func TestSyncHandler_RunSyncAccepted(t *testing.T) {
	service := new(mockSyncService)
	router, auth := syncRouter(t, service)
	service.On("StartSync", mock.Anything, "user-1", integrationID, []string{"col-1", "col-2"}, models.TriggerAPI).
		Return(&models.SyncRun{ID: runID, Status: models.RunStatusRunning}, nil).Once()

	w := post(router, auth, "/api/v1/integrations/"+integrationID+"/sync", `{"collectionIds":["col-1","col-2"]}`)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"runId":%q,"status":"running"}`, runID), w.Body.String())
	service.AssertExpectations(t)
}

func TestSyncHandler_RunSyncValidation(t *testing.T) {
	service := new(mockSyncService)
	router, auth := syncRouter(t, service)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"empty selection", "/api/v1/integrations/" + integrationID + "/sync", `{"collectionIds":[]}`},
		{"missing field", "/api/v1/integrations/" + integrationID + "/sync", `{}`},
		{"malformed json", "/api/v1/integrations/" + integrationID + "/sync", `{`},
		{"bad integration id", "/api/v1/integrations/not-a-uuid/sync", `{"collectionIds":["col-1"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(router, auth, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	service.AssertNotCalled(t, "StartSync", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncHandler_RunSyncOutOfScope(t *testing.T) {
	service := new(mockSyncService)
	router, auth := syncRouter(t, service, "11111111-2222-4333-8444-555555555555")

	w := post(router, auth, "/api/v1/integrations/"+integrationID+"/sync", `{"collectionIds":["col-1"]}`)

	assert.Equal(t, http.StatusForbidden, w.Code)
	service.AssertNotCalled(t, "StartSync", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncHandler_RunSyncErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"unknown integration", apperrors.NotFoundError("integration"), http.StatusNotFound},
		{"already running", fmt.Errorf("busy: %w", apperrors.ErrConflict), http.StatusConflict},
		{"missing token", apperrors.ConfigurationError("notion token"), http.StatusFailedDependency},
		{"other", fmt.Errorf("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(mockSyncService)
			router, auth := syncRouter(t, service)
			service.On("StartSync", mock.Anything, "user-1", integrationID, []string{"col-1"}, models.TriggerAPI).
				Return(nil, tt.err).Once()

			w := post(router, auth, "/api/v1/integrations/"+integrationID+"/sync", `{"collectionIds":["col-1"]}`)

			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestSyncHandler_GetRun(t *testing.T) {
	service := new(mockSyncService)
	router, auth := syncRouter(t, service)
	run := &models.SyncRun{
		ID:            runID,
		IntegrationID: integrationID,
		Status:        models.RunStatusPartial,
		Result:        &models.SyncResult{Success: true, DatabasesCreated: 2},
	}
	service.On("GetRun", mock.Anything, "user-1", integrationID, runID).Return(run, nil).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/integrations/"+integrationID+"/sync-runs/"+runID, http.NoBody)
	req.Header.Set("Authorization", auth)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"partial"`)
	assert.Contains(t, w.Body.String(), `"databasesCreated":2`)
	service.AssertExpectations(t)
}
