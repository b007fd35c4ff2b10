package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ai-companion-demo/companion/internal/backend"
	"ai-companion-demo/companion/internal/backend/backendtest"
	"ai-companion-demo/companion/internal/models"
	"ai-companion-demo/companion/internal/session"
	"ai-companion-demo/companion/internal/store"
	"ai-companion-demo/companion/internal/wizard"
	apperrors "ai-companion-demo/companion/pkg/errors"
	"ai-companion-demo/companion/pkg/logger"
	"ai-companion-demo/companion/pkg/resilience"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testToken = "tok-123"

var withToken = mock.MatchedBy(func(ctx context.Context) bool {
	return backend.TokenFromContext(ctx) == testToken
})

type errorBody struct {
	Error struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func setupRouter(t *testing.T, api *backendtest.MockAPI, wizardCfg wizard.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewNop()

	wz := wizard.NewService(api, store.NewMemoryStore(time.Hour), nil, log, wizardCfg)
	sessions := session.NewRegistry(api, nil, log, session.Config{}, time.Hour, time.Hour)
	t.Cleanup(sessions.Close)

	r := gin.New()
	r.Use(apperrors.ErrorHandler())
	v1 := r.Group("/api/v1", func(c *gin.Context) {
		c.Set("userID", "user-1")
		c.Set("token", testToken)
		c.Next()
	})
	NewWizardHandler(wz).RegisterRoutes(v1)
	NewCompanionHandler(sessions).RegisterRoutes(v1)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Tab-ID", "tab-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestWizardEndpoints_HappyPath(t *testing.T) {
	api := &backendtest.MockAPI{}
	api.On("GenerateAvatar", withToken, mock.Anything).Return([]string{"a.png", "b.png"}, nil).Once()
	api.On("CreateCharacter", withToken, models.CreateCharacterRequest{
		Name: "Luna", Style: models.StyleFantasy, AvatarURL: "b.png",
	}).Return(&models.Character{ID: "c-9", Name: "Luna", Style: models.StyleFantasy}, nil).Once()

	r := setupRouter(t, api, wizard.Config{RedirectAfter: 2500 * time.Millisecond})

	w := do(r, http.MethodPost, "/api/v1/wizard/style", `{"style":"fantasy","appearance":"silver hair"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var draft models.WizardDraft
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &draft))
	assert.Equal(t, models.StepSelectAvatar, draft.Step)
	assert.Equal(t, "silver hair", draft.Appearance)
	assert.Len(t, draft.AvatarCandidates, 2)

	w = do(r, http.MethodPost, "/api/v1/wizard/avatar", `{"index":1}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(r, http.MethodGet, "/api/v1/wizard/naming", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(r, http.MethodPost, "/api/v1/wizard/submit", `{"name":"Luna"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var res struct {
		Character       models.Character `json:"character"`
		Demo            bool             `json:"demo"`
		RedirectAfterMS int64            `json:"redirect_after_ms"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "c-9", res.Character.ID)
	assert.False(t, res.Demo)
	assert.Equal(t, int64(2500), res.RedirectAfterMS)

	api.AssertExpectations(t)
}

func TestWizardEndpoints_NamingWithoutStyle(t *testing.T) {
	r := setupRouter(t, &backendtest.MockAPI{}, wizard.Config{})

	w := do(r, http.MethodGet, "/api/v1/wizard/naming", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	body := decodeError(t, w)
	assert.Equal(t, apperrors.CodeStepGuard, body.Error.Code)
	assert.Contains(t, string(body.Error.Details), `"redirect_step":"select_style"`)
}

func TestWizardEndpoints_Guards(t *testing.T) {
	api := &backendtest.MockAPI{}
	api.On("GenerateAvatar", mock.Anything, mock.Anything).Return([]string{"a.png"}, nil)
	r := setupRouter(t, api, wizard.Config{})

	w := do(r, http.MethodPost, "/api/v1/wizard/submit", `{"name":"Luna"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperrors.CodeStepGuard, decodeError(t, w).Error.Code)

	w = do(r, http.MethodPost, "/api/v1/wizard/style", `{"style":"steampunk"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeValidation, decodeError(t, w).Error.Code)

	w = do(r, http.MethodPost, "/api/v1/wizard/style", `{"style":"anime"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPost, "/api/v1/wizard/avatar", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/v1/wizard/avatar", `{"index":5}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/v1/wizard/submit", `{"name":"Luna"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, string(decodeError(t, w).Error.Details), `"redirect_step":"select_avatar"`)

	api.AssertNotCalled(t, "CreateCharacter", mock.Anything, mock.Anything)
}

func TestWizardEndpoints_ResetStartsOver(t *testing.T) {
	api := &backendtest.MockAPI{}
	api.On("GenerateAvatar", mock.Anything, mock.Anything).Return([]string{"a.png"}, nil)
	r := setupRouter(t, api, wizard.Config{})

	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/v1/wizard/style", `{"style":"anime"}`).Code)

	w := do(r, http.MethodDelete, "/api/v1/wizard", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/v1/wizard", "")
	var draft models.WizardDraft
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &draft))
	assert.Equal(t, models.StepSelectStyle, draft.Step)
	assert.Empty(t, draft.Style)
}

func expectSession(api *backendtest.MockAPI, balance int) {
	api.On("ListCharacters", withToken).Return([]models.Character{{
		ID: "char-1", Name: "Neo", Style: models.StyleCyberpunk,
		Params: models.Params{Energy: 70, Mood: 60, Bond: 4},
	}}, nil)
	api.On("GetChatHistory", mock.Anything, "char-1", 1, 50).Return(&models.HistoryPage{Page: 1, PageSize: 50}, nil)
	api.On("ListMissions", mock.Anything).Return([]models.Mission{
		{ID: "m-feed", Name: "Feed", CostNTG: 50, CooldownSeconds: 3600, IsActive: true},
	}, nil)
	api.On("ListCompletedMissions", mock.Anything).Return([]models.CompletedMission(nil), nil)
	api.On("GetBalance", mock.Anything).Return(balance, nil)
}

func TestCompanionEndpoints_LoadAndChat(t *testing.T) {
	api := &backendtest.MockAPI{}
	expectSession(api, 120)
	api.On("SendMessage", withToken, "char-1", mock.MatchedBy(func(req models.SendMessageRequest) bool {
		return req.Content == "hello"
	})).Return(&models.SendMessageResponse{
		Message:   models.ChatMessage{ID: "srv-1", Role: models.RoleAssistant, Content: "hi there"},
		SessionID: "s-1",
	}, nil)

	r := setupRouter(t, api, wizard.Config{})

	w := do(r, http.MethodGet, "/api/v1/companion", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var st session.State
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.True(t, st.Loaded)
	assert.Equal(t, 120, st.Balance)

	w = do(r, http.MethodPost, "/api/v1/companion/messages", `{"content":"hello"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var reply session.Reply
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reply))
	assert.Equal(t, "hi there", reply.Message.Content)
	assert.False(t, reply.Fallback)

	w = do(r, http.MethodPost, "/api/v1/companion/messages", `{"content":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCompanionEndpoints_NotLoaded(t *testing.T) {
	r := setupRouter(t, &backendtest.MockAPI{}, wizard.Config{})

	w := do(r, http.MethodPost, "/api/v1/companion/messages", `{"content":"hello"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperrors.CodeNotLoaded, decodeError(t, w).Error.Code)
}

func TestCompanionEndpoints_Missions(t *testing.T) {
	t.Run("insufficient balance", func(t *testing.T) {
		api := &backendtest.MockAPI{}
		expectSession(api, 10)
		r := setupRouter(t, api, wizard.Config{})
		require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/v1/companion/load", "").Code)

		w := do(r, http.MethodPost, "/api/v1/companion/missions/m-feed/execute", "")
		assert.Equal(t, http.StatusPaymentRequired, w.Code)
		assert.Equal(t, apperrors.CodeInsufficientBalance, decodeError(t, w).Error.Code)
		api.AssertNotCalled(t, "ExecuteMission", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown mission", func(t *testing.T) {
		api := &backendtest.MockAPI{}
		expectSession(api, 100)
		r := setupRouter(t, api, wizard.Config{})
		require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/v1/companion/load", "").Code)

		w := do(r, http.MethodPost, "/api/v1/companion/missions/nope/execute", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("success then cooldown", func(t *testing.T) {
		api := &backendtest.MockAPI{}
		expectSession(api, 100)
		api.On("ExecuteMission", withToken, "m-feed", models.ExecuteMissionRequest{CharacterID: "char-1"}).
			Return(&models.ExecuteMissionResponse{
				Success:          true,
				Message:          "Yum!",
				NewBalance:       50,
				CharacterParams:  &models.Params{Energy: 90, Mood: 60, Bond: 4},
				CompletedMission: &models.CompletedMission{ID: "cm-1", CompletedAt: time.Now().UTC()},
			}, nil).Once()
		r := setupRouter(t, api, wizard.Config{})
		require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/v1/companion/load", "").Code)

		w := do(r, http.MethodPost, "/api/v1/companion/missions/m-feed/execute", "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var res session.MissionResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Equal(t, 50, res.Balance)
		assert.Equal(t, 90, res.Params.Energy)

		w = do(r, http.MethodGet, "/api/v1/companion/cooldowns", "")
		require.Equal(t, http.StatusOK, w.Code)
		var cd CooldownsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cd))
		require.Len(t, cd.Cooldowns, 1)
		assert.Equal(t, "m-feed", cd.Cooldowns[0].MissionID)
		assert.Greater(t, cd.Cooldowns[0].RemainingSeconds, 3500)
		assert.False(t, cd.Cooldowns[0].CanRepeat)
	})
}

func TestToAppError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{&models.ValidationError{Field: "name", Message: "too short"}, http.StatusBadRequest, apperrors.CodeValidation},
		{wizard.ErrBusy, http.StatusConflict, apperrors.CodeBusy},
		{session.ErrBusy, http.StatusConflict, apperrors.CodeBusy},
		{wizard.ErrNoCandidates, http.StatusConflict, apperrors.CodeStepGuard},
		{fmt.Errorf("%w: balance 1, cost 5", session.ErrInsufficientBalance), http.StatusPaymentRequired, apperrors.CodeInsufficientBalance},
		{session.ErrNoCharacter, http.StatusNotFound, apperrors.CodeNotFound},
		{session.ErrMissionInactive, http.StatusConflict, apperrors.CodeMissionInactive},
		{fmt.Errorf("%w: cooldown", session.ErrMissionRejected), http.StatusConflict, apperrors.CodeMissionRejected},
		{fmt.Errorf("list: %w", resilience.ErrCircuitOpen), http.StatusServiceUnavailable, apperrors.CodeUnavailable},
		{fmt.Errorf("create: %w", &backend.APIError{StatusCode: 500}), http.StatusBadGateway, apperrors.CodeUpstream},
		{errors.New("boom"), http.StatusInternalServerError, apperrors.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			appErr := toAppError(tt.err)
			assert.Equal(t, tt.status, appErr.StatusCode)
			assert.Equal(t, tt.code, appErr.Code)
		})
	}
}
