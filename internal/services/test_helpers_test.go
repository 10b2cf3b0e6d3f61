package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/flowsync/flowsync-api/config"
	"github.com/flowsync/flowsync-api/internal/cache"
	"github.com/flowsync/flowsync-api/internal/models"
	"github.com/flowsync/flowsync-api/internal/services"
	"github.com/flowsync/flowsync-api/internal/synctest"
	"github.com/flowsync/flowsync-api/pkg/logger"
)

func init() {
	// Initialize logger for tests
	if err := logger.Initialize(logger.Config{
		Level:       "debug",
		Environment: "development",
	}); err != nil {
		panic(err)
	}
}

const (
	testUserID = "user-1"
	testSiteID = "site-1"
)

func testIntegration() *models.Integration {
	return &models.Integration{
		ID:                 "int-1",
		UserID:             testUserID,
		WebflowSiteID:      testSiteID,
		NotionParentPageID: "parent-page",
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Sync: config.SyncConfig{RunTimeout: time.Minute},
	}
}

// harness wires the services to in-memory fakes.
type harness struct {
	integration  *models.Integration
	notion       *synctest.Notion
	webflow      *synctest.Webflow
	mappings     *synctest.Mappings
	integrations *MockIntegrationRepository
	runs         *MockSyncRunRepository
	factory      *MockClientFactory
	schemaCache  *cache.SchemaCache
}

func newHarness() *harness {
	h := &harness{
		integration:  testIntegration(),
		notion:       synctest.NewNotion(),
		webflow:      synctest.NewWebflow(testSiteID),
		mappings:     synctest.NewMappings(),
		integrations: new(MockIntegrationRepository),
		runs:         new(MockSyncRunRepository),
		factory:      new(MockClientFactory),
		schemaCache:  cache.NewSchemaCache(time.Minute),
	}
	h.integrations.On("GetForUser", mock.Anything, testUserID, h.integration.ID).Return(h.integration, nil).Maybe()
	h.integrations.On("GetByID", mock.Anything, h.integration.ID).Return(h.integration, nil).Maybe()
	h.factory.On("NewSession", mock.Anything, h.integration).Return(h.session(), nil).Maybe()
	return h
}

func (h *harness) session() *services.Session {
	return services.NewSession(h.integration, h.notion, h.webflow, 2)
}

func (h *harness) syncService() *services.SyncService {
	return services.NewSyncService(h.integrations, h.mappings, h.runs, h.factory, h.schemaCache, testConfig(), nil)
}

func (h *harness) webhookService() *services.WebhookService {
	return services.NewWebhookService(h.integrations, h.mappings, h.factory, h.schemaCache)
}

func (h *harness) sync(t *testing.T, collectionIDs ...string) *models.SyncResult {
	t.Helper()
	result, err := h.syncService().RunSelectedCollectionsSync(context.Background(), testUserID, h.integration.ID, collectionIDs)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}
