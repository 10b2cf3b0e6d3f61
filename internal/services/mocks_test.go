package services_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/flowsync/flowsync-api/internal/models"
	"github.com/flowsync/flowsync-api/internal/services"
)

// MockIntegrationRepository is a mock implementation of IntegrationRepositoryInterface
type MockIntegrationRepository struct {
	mock.Mock
}

func (m *MockIntegrationRepository) GetByID(ctx context.Context, id string) (*models.Integration, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Integration), args.Error(1)
}

func (m *MockIntegrationRepository) GetForUser(ctx context.Context, userID, id string) (*models.Integration, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Integration), args.Error(1)
}

func (m *MockIntegrationRepository) ListAutoSync(ctx context.Context) ([]*models.Integration, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Integration), args.Error(1)
}

// MockSyncRunRepository is a mock implementation of SyncRunRepositoryInterface
type MockSyncRunRepository struct {
	mock.Mock
}

func (m *MockSyncRunRepository) Create(ctx context.Context, run *models.SyncRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockSyncRunRepository) Finish(ctx context.Context, runID string, result *models.SyncResult) error {
	args := m.Called(ctx, runID, result)
	return args.Error(0)
}

func (m *MockSyncRunRepository) GetByID(ctx context.Context, integrationID, runID string) (*models.SyncRun, error) {
	args := m.Called(ctx, integrationID, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncRun), args.Error(1)
}

// MockClientFactory is a mock implementation of ClientFactory
type MockClientFactory struct {
	mock.Mock
}

func (m *MockClientFactory) NewSession(ctx context.Context, integration *models.Integration) (*services.Session, error) {
	args := m.Called(ctx, integration)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Session), args.Error(1)
}
