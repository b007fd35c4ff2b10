package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"ai-companion-demo/companion/internal/models"
	"ai-companion-demo/companion/pkg/jwt"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	*httptest.Server
	creates  atomic.Int32
	executes atomic.Int32
	sendFail bool
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newFakeBackend(t *testing.T, balance int) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/characters", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, []models.Character{{ID: "char-1", Name: "Neo", Style: models.StyleCyberpunk,
			Params: models.Params{Energy: 70, Mood: 60, Bond: 4}}})
	})
	mux.HandleFunc("POST /api/v1/characters", func(w http.ResponseWriter, r *http.Request) {
		fb.creates.Add(1)
		var req models.CreateCharacterRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		writeJSON(w, models.Character{ID: "char-new", Name: req.Name, Style: req.Style, AvatarURL: req.AvatarURL,
			Params: models.DefaultParams()})
	})
	mux.HandleFunc("POST /api/v1/characters/generate-variants", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string][]string{"images": {"a.png", "b.png", "c.png"}})
	})
	mux.HandleFunc("GET /api/v1/chat/char-1/history", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, models.HistoryPage{Items: []models.ChatMessage{
			{ID: "h1", Role: models.RoleAssistant, Content: "welcome back"},
		}, Total: 1, Page: 1, PageSize: 50})
	})
	mux.HandleFunc("POST /api/v1/chat/char-1/send", func(w http.ResponseWriter, _ *http.Request) {
		if fb.sendFail {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(w, models.SendMessageResponse{
			Message: models.ChatMessage{ID: "r1", Role: models.RoleAssistant, Content: "beep boop"},
			CharacterReaction: &models.CharacterReaction{
				Emotion: "happy", ParamChanges: map[string]int{"mood": 5},
			},
		})
	})
	mux.HandleFunc("GET /api/v1/missions", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, []models.Mission{
			{ID: "m-feed", Name: "Feed", CostNTG: 50, CooldownSeconds: 3600, IsActive: true},
			{ID: "m-off", Name: "Selfie", CostNTG: 5, IsActive: false},
		})
	})
	mux.HandleFunc("GET /api/v1/missions/completed", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, []models.CompletedMission{})
	})
	mux.HandleFunc("POST /api/v1/missions/{id}/execute", func(w http.ResponseWriter, _ *http.Request) {
		fb.executes.Add(1)
		writeJSON(w, models.ExecuteMissionResponse{
			Success: true, Message: "Yum!", NewBalance: balance - 50,
			CharacterParams: &models.Params{Energy: 95, Mood: 60, Bond: 4},
		})
	})
	mux.HandleFunc("GET /api/v1/payments/balance", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, models.Balance{BalanceNTG: balance})
	})

	fb.Server = httptest.NewServer(mux)
	t.Cleanup(fb.Close)
	return fb
}

func run(t *testing.T, fb *fakeBackend, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &out)
	cmd.SetArgs(append([]string{"--backend-url", fb.URL, "--no-color", "--fallback-delay", "1ms"}, args...))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

func TestCreateRunsWizardOnce(t *testing.T) {
	fb := newFakeBackend(t, 100)

	out, err := run(t, fb, "", "create", "--style", "fantasy", "--avatar", "2", "--name", "Luna")
	require.NoError(t, err)

	assert.Contains(t, out, "[2] c.png")
	assert.Contains(t, out, "Created Luna (char-new)")
	assert.Equal(t, int32(1), fb.creates.Load())
}

func TestCreateRejectsShortName(t *testing.T) {
	fb := newFakeBackend(t, 100)

	_, err := run(t, fb, "", "create", "--style", "anime", "--name", "L")
	require.Error(t, err)
	assert.Equal(t, int32(0), fb.creates.Load())
}

func TestChatPrintsReplies(t *testing.T) {
	fb := newFakeBackend(t, 100)

	out, err := run(t, fb, "hello\n/quit\n", "chat")
	require.NoError(t, err)

	assert.Contains(t, out, "Neo (cyberpunk)")
	assert.Contains(t, out, "welcome back")
	assert.Contains(t, out, "Neo> beep boop")
	assert.Contains(t, out, "mood")
}

func TestChatFallsBackWhenBackendFails(t *testing.T) {
	fb := newFakeBackend(t, 100)
	fb.sendFail = true

	out, err := run(t, fb, "hello\n", "chat")
	require.NoError(t, err)

	// canned replies keep the conversation going
	assert.Equal(t, 2, strings.Count(out, "Neo> "))
}

func TestMissionsListsStates(t *testing.T) {
	fb := newFakeBackend(t, 20)

	out, err := run(t, fb, "", "missions")
	require.NoError(t, err)

	assert.Contains(t, out, "balance: 20 NTG")
	assert.Contains(t, out, "insufficient balance")
	assert.Contains(t, out, "inactive")
}

func TestMissionRun(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		fb := newFakeBackend(t, 100)
		out, err := run(t, fb, "", "missions", "run", "m-feed")
		require.NoError(t, err)
		assert.Contains(t, out, "Yum!")
		assert.Contains(t, out, "balance: 50 NTG")
		assert.Equal(t, int32(1), fb.executes.Load())
	})

	t.Run("insufficient balance never calls the backend", func(t *testing.T) {
		fb := newFakeBackend(t, 10)
		_, err := run(t, fb, "", "missions", "run", "m-feed")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "insufficient balance")
		assert.Equal(t, int32(0), fb.executes.Load())
	})
}

func tokenViper(t *testing.T, token string) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.Set("token", token)
	return v
}

func TestUserIDFromToken(t *testing.T) {
	svc := jwt.NewService("secret", "", time.Minute)
	token, err := svc.GenerateToken("user-42", "u@example.com")
	require.NoError(t, err)

	var out bytes.Buffer
	a := &app{v: tokenViper(t, token), out: &out, now: time.Now}

	assert.Equal(t, "user-42", a.userID())
	assert.Contains(t, out.String(), "token expires in")
}

func TestUserIDWithGarbageToken(t *testing.T) {
	var out bytes.Buffer
	a := &app{v: tokenViper(t, "not-a-jwt"), out: &out, now: time.Now}

	assert.Equal(t, "cli", a.userID())
	assert.Contains(t, out.String(), "not a JWT")
}

func TestBar(t *testing.T) {
	assert.Equal(t, "[....................]", bar(0))
	assert.Equal(t, "[##########..........]", bar(50))
	assert.Equal(t, "[####################]", bar(150))
}
