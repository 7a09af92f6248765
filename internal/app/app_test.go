package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commentboard/internal/config"
	"commentboard/internal/logging"
)

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Server.GinMode = "test"
	cfg.Auth.BcryptCost = 4
	return cfg
}

func TestNewApp_InMemory(t *testing.T) {
	a, err := NewApp(context.Background(), testConfig(), logging.Nop())
	require.NoError(t, err)
	defer a.Close()

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodPost, "/signup", bytes.NewBufferString(`{"name":"al","email":"a@b.com","pwd":"p1"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, rec.Result().Cookies(), 3)
}

func TestNewApp_BadRedisURL(t *testing.T) {
	cfg := testConfig()
	cfg.Queue.RedisURL = "::not a url"
	_, err := NewApp(context.Background(), cfg, logging.Nop())
	require.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Port = 0
	a, err := NewApp(context.Background(), cfg, logging.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
