package services

import (
	"context"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/mock"

	"slackhooks/models"
)

// MockInstallationStore is a mock implementation of InstallationStore
type MockInstallationStore struct {
	mock.Mock
}

func (m *MockInstallationStore) Save(ctx context.Context, installation *models.Installation) error {
	args := m.Called(ctx, installation)
	return args.Error(0)
}

func (m *MockInstallationStore) FindByTeam(
	ctx context.Context,
	teamID string,
	enterpriseID *string,
) (mo.Option[*models.Installation], error) {
	args := m.Called(ctx, teamID, enterpriseID)
	return args.Get(0).(mo.Option[*models.Installation]), args.Error(1)
}

func (m *MockInstallationStore) Delete(ctx context.Context, teamID string, enterpriseID *string) error {
	args := m.Called(ctx, teamID, enterpriseID)
	return args.Error(0)
}

// MockStateStore is a mock implementation of StateStore without atomic consumption
type MockStateStore struct {
	mock.Mock
}

func (m *MockStateStore) Save(ctx context.Context, state *models.OAuthState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *MockStateStore) Find(ctx context.Context, token string) (mo.Option[*models.OAuthState], error) {
	args := m.Called(ctx, token)
	return args.Get(0).(mo.Option[*models.OAuthState]), args.Error(1)
}

func (m *MockStateStore) Delete(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockStateStore) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// MockConsumingStateStore adds VerifyAndConsume to MockStateStore
type MockConsumingStateStore struct {
	MockStateStore
}

func (m *MockConsumingStateStore) VerifyAndConsume(
	ctx context.Context,
	token string,
	now time.Time,
) (mo.Option[*models.OAuthState], error) {
	args := m.Called(ctx, token, now)
	return args.Get(0).(mo.Option[*models.OAuthState]), args.Error(1)
}
