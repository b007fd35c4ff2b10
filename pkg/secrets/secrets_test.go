package secrets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"ai-companion-demo/companion/pkg/config"
	"ai-companion-demo/companion/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVaultManager_EnvironmentFallback(t *testing.T) {
	m, err := NewVaultManager(VaultConfig{Enabled: false}, logger.NewNop())
	require.NoError(t, err)
	defer m.Close()

	env := map[string]string{"JWT_SECRET": "from-env"}
	m.getenv = func(k string) string { return env[k] }

	v, err := m.GetSecret(context.Background(), KeyJWTSecret)
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)

	// Served from cache afterwards
	env["JWT_SECRET"] = "changed"
	v, err = m.GetSecret(context.Background(), "jwt-secret")
	require.NoError(t, err)
	assert.Equal(t, "changed", v)
	v, _ = m.GetSecret(context.Background(), KeyJWTSecret)
	assert.Equal(t, "from-env", v)

	_, err = m.GetSecret(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSecretNotFound)
	assert.Equal(t, "dflt", m.GetSecretWithDefault(context.Background(), "missing", "dflt"))
}

func TestVaultManager_RequiresAddressAndToken(t *testing.T) {
	_, err := NewVaultManager(VaultConfig{Enabled: true, Token: "t"}, logger.NewNop())
	assert.ErrorIs(t, err, ErrNoVaultAddress)

	_, err = NewVaultManager(VaultConfig{Enabled: true, Address: "http://vault"}, logger.NewNop())
	assert.ErrorIs(t, err, ErrNoVaultToken)
}

func TestVaultManager_ReadsKV2(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/secret/data/companion" || r.Header.Get("X-Vault-Token") != "root" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"data": {
				"data": {"backend_api_key": "vault-key"},
				"metadata": {"created_time": "2025-01-01T00:00:00Z", "deletion_time": "", "destroyed": false, "version": 1}
			}
		}`))
	}))
	defer srv.Close()

	m, err := NewVaultManager(VaultConfig{
		Enabled: true, Address: srv.URL, Token: "root", Mount: "secret", Path: "companion",
	}, logger.NewNop())
	require.NoError(t, err)
	defer m.Close()
	m.getenv = func(k string) string {
		if k == "JWT_SECRET" {
			return "env-secret"
		}
		return ""
	}

	v, err := m.GetSecret(context.Background(), KeyBackendAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "vault-key", v)

	// Not in vault, found in env
	v, err = m.GetSecret(context.Background(), KeyJWTSecret)
	require.NoError(t, err)
	assert.Equal(t, "env-secret", v)
}

type staticManager map[string]string

func (s staticManager) GetSecret(_ context.Context, key string) (string, error) {
	if v, ok := s[key]; ok {
		return v, nil
	}
	return "", ErrSecretNotFound
}

func (s staticManager) GetSecretWithDefault(ctx context.Context, key, def string) string {
	if v, err := s.GetSecret(ctx, key); err == nil {
		return v
	}
	return def
}

func TestResolve(t *testing.T) {
	SetManager(staticManager{KeyJWTSecret: "s3cret"})
	defer SetManager(nil)

	cfg := config.Load()
	cfg.Backend.APIKey = "configured"
	Resolve(context.Background(), cfg)

	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, "configured", cfg.Backend.APIKey)
}
