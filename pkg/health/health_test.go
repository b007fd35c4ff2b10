package health

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ai-companion-demo/companion/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestChecker_HTTPHandler(t *testing.T) {
	c := NewChecker(logger.NewNop(), time.Minute)
	storeUp := true
	c.RegisterPingCheck("store", true, func(context.Context) error {
		if storeUp {
			return nil
		}
		return errors.New("connection refused")
	})
	c.RegisterPingCheck("backend", false, func(context.Context) error {
		return errors.New("timeout")
	})

	c.RunChecks(context.Background())

	w := httptest.NewRecorder()
	c.HTTPHandler()(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status     string                `json:"status"`
		Components map[string]*Component `json:"components"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, StatusDegraded, body.Components["backend"].Status)
	assert.Equal(t, "timeout", body.Components["backend"].Error)
	assert.Equal(t, StatusUp, body.Components["store"].Status)

	storeUp = false
	c.RunChecks(context.Background())

	w = httptest.NewRecorder()
	c.HTTPHandler()(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.False(t, c.IsSystemHealthy())
}

func TestChecker_OnChange(t *testing.T) {
	c := NewChecker(logger.NewNop(), time.Minute)
	var got []bool
	c.OnChange(func(healthy bool) { got = append(got, healthy) })

	c.RunChecks(context.Background())
	c.RegisterCheck("critical", true, func(context.Context) (Status, string, error) {
		return StatusDown, "broken", nil
	})
	c.RunChecks(context.Background())

	assert.Equal(t, []bool{true, false}, got)
}

func TestGRPCServer(t *testing.T) {
	c := NewChecker(logger.NewNop(), time.Minute)
	up := true
	c.RegisterPingCheck("store", true, func(context.Context) error {
		if up {
			return nil
		}
		return errors.New("down")
	})
	c.RunChecks(context.Background())

	srv := NewGRPCServer(c, "companion", logger.NewNop())
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.ServeListener(lis) }()
	defer srv.Stop()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: "companion"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	up = false
	c.RunChecks(context.Background())

	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)
}
