package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/tutormind/internal/profile"
	storetest "github.com/hrygo/tutormind/store/test"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	ts := storetest.NewTestingStore(context.Background(), t)
	return NewServer(&profile.Profile{
		Mode:           "dev",
		Secret:         "test-secret",
		RateLimitRPS:   10,
		RateLimitBurst: 10,
	}, ts, nil)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	// Rejected requests are counted too.
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/learn/topics/1/question", nil))
	require.NotEqual(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tutormind_requests_total")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestStartStopsOnCancel(t *testing.T) {
	s := newTestServer(t)
	s.Profile.Addr = "127.0.0.1"
	s.Profile.Port = 0

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Start(ctx))
}
