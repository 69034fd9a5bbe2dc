package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oocana-go/oocana/internal/infrastructure/reporter"
)

func TestNew_HealthEndpointReturnsOK(t *testing.T) {
	s := New(Config{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestNew_MetricsEndpointIsExposed(t *testing.T) {
	s := New(Config{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNew_SubmitTask_MalformedJSONRejected(t *testing.T) {
	s := New(Config{}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/tasks", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNew_SubmitTask_MissingRequiredFieldsRejected(t *testing.T) {
	s := New(Config{}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/tasks", strings.NewReader(`{"executor":"node"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "block_ref")
}

func TestNew_SubmitTask_SpawnFailureReturnsBadGateway(t *testing.T) {
	s := New(Config{}, nil, nil)

	body := `{"job_id":"job-1","block_ref":"/nonexistent/block.js","broker_addr":"127.0.0.1:1","executor":"does-not-exist-executor"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/tasks", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestNew_WithoutBroadcaster_SessionEventsRouteIs404(t *testing.T) {
	s := New(Config{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/sess-1/events", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNew_BearerAuthAppliedToTaskRoute(t *testing.T) {
	s := New(Config{OOMOLToken: "secret"}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/tasks", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNew_BearerAuthBypassesHealthRoute(t *testing.T) {
	s := New(Config{OOMOLToken: "secret"}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleSessionEvents_StreamsSubscribedLinesUntilContextCancelled(t *testing.T) {
	b := reporter.NewBroadcaster()
	s := New(Config{}, nil, b)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/sess-1/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		s.echo.ServeHTTP(rec, req)
		close(done)
	}()

	// The handler's Subscribe call races this goroutine, so keep
	// publishing until a subscriber is registered and the line lands.
	require.Eventually(t, func() bool {
		b.Report(map[string]string{"hello": "world"})
		return strings.Contains(rec.Body.String(), "data: ")
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, rec.Body.String(), `"hello":"world"`)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not return after context cancellation")
	}
}
