// Package backend is the typed client for the companion REST API.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"ai-companion-demo/companion/internal/models"
)

// API is everything the wizard and the session controller need from the backend
type API interface {
	ListCharacters(ctx context.Context) ([]models.Character, error)
	GetChatHistory(ctx context.Context, characterID string, page, pageSize int) (*models.HistoryPage, error)
	SendMessage(ctx context.Context, characterID string, req models.SendMessageRequest) (*models.SendMessageResponse, error)
	GenerateAvatar(ctx context.Context, req models.GenerateAvatarRequest) ([]string, error)
	CreateCharacter(ctx context.Context, req models.CreateCharacterRequest) (*models.Character, error)
	ListMissions(ctx context.Context) ([]models.Mission, error)
	ExecuteMission(ctx context.Context, missionID string, req models.ExecuteMissionRequest) (*models.ExecuteMissionResponse, error)
	ListCompletedMissions(ctx context.Context) ([]models.CompletedMission, error)
	GetBalance(ctx context.Context) (int, error)
}

// APIError is a non-2xx answer from the backend
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("backend %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether retrying later might succeed
func (e *APIError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// StatusOf returns the HTTP status carried by err, or 0 if it is not an APIError
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// countsAgainstBreaker keeps caller mistakes (4xx) and cancellations from opening the circuit
func countsAgainstBreaker(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return true
}

// TokenSource supplies the bearer credential for backend calls
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same token
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

type tokenKey struct{}

// ContextWithToken attaches the caller's bearer token to ctx. It takes
// precedence over the client's TokenSource.
func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the token set by ContextWithToken
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}
