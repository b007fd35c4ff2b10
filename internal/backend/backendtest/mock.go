// Package backendtest provides a testify mock of backend.API.
package backendtest

import (
	"context"

	"ai-companion-demo/companion/internal/backend"
	"ai-companion-demo/companion/internal/models"

	"github.com/stretchr/testify/mock"
)

// MockAPI is a mock implementation of backend.API
type MockAPI struct {
	mock.Mock
}

var _ backend.API = (*MockAPI)(nil)

func (m *MockAPI) ListCharacters(ctx context.Context) ([]models.Character, error) {
	args := m.Called(ctx)
	chars, _ := args.Get(0).([]models.Character)
	return chars, args.Error(1)
}

func (m *MockAPI) GetChatHistory(ctx context.Context, characterID string, page, pageSize int) (*models.HistoryPage, error) {
	args := m.Called(ctx, characterID, page, pageSize)
	p, _ := args.Get(0).(*models.HistoryPage)
	return p, args.Error(1)
}

func (m *MockAPI) SendMessage(ctx context.Context, characterID string, req models.SendMessageRequest) (*models.SendMessageResponse, error) {
	args := m.Called(ctx, characterID, req)
	resp, _ := args.Get(0).(*models.SendMessageResponse)
	return resp, args.Error(1)
}

func (m *MockAPI) GenerateAvatar(ctx context.Context, req models.GenerateAvatarRequest) ([]string, error) {
	args := m.Called(ctx, req)
	images, _ := args.Get(0).([]string)
	return images, args.Error(1)
}

func (m *MockAPI) CreateCharacter(ctx context.Context, req models.CreateCharacterRequest) (*models.Character, error) {
	args := m.Called(ctx, req)
	c, _ := args.Get(0).(*models.Character)
	return c, args.Error(1)
}

func (m *MockAPI) ListMissions(ctx context.Context) ([]models.Mission, error) {
	args := m.Called(ctx)
	missions, _ := args.Get(0).([]models.Mission)
	return missions, args.Error(1)
}

func (m *MockAPI) ExecuteMission(ctx context.Context, missionID string, req models.ExecuteMissionRequest) (*models.ExecuteMissionResponse, error) {
	args := m.Called(ctx, missionID, req)
	resp, _ := args.Get(0).(*models.ExecuteMissionResponse)
	return resp, args.Error(1)
}

func (m *MockAPI) ListCompletedMissions(ctx context.Context) ([]models.CompletedMission, error) {
	args := m.Called(ctx)
	done, _ := args.Get(0).([]models.CompletedMission)
	return done, args.Error(1)
}

func (m *MockAPI) GetBalance(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}
