package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingHandler struct{}

func (pingHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/ping", func(c echo.Context) error { return SuccessResponse(c, "pong") })
	e.GET("/api/gone", func(c echo.Context) error {
		return AppErrorResponse(c, NotFoundError("ERR_SIGNAL_NOT_FOUND", "signal not found"))
	})
}

func serve(s *Server, path string) (int, APIResponse) {
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var env APIResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec.Code, env
}

func TestServer_Envelope(t *testing.T) {
	t.Parallel()

	s := NewServer(nil, []Handler{pingHandler{}}, WithCORS(false))

	code, env := serve(s, "/api/ping")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pong", env.Data)

	code, env = serve(s, "/api/gone")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, http.StatusNotFound, env.Status)
	errs, ok := env.Data.([]interface{})
	require.True(t, ok)
	assert.Equal(t, "ERR_SIGNAL_NOT_FOUND", errs[0].(map[string]interface{})["code"])

	code, _ = serve(s, "/api/missing")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestServer_Readiness(t *testing.T) {
	t.Parallel()

	healthy := NewServer(nil, nil,
		WithReadiness("postgres", func(context.Context) error { return nil }))
	code, env := serve(healthy, "/ready")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]interface{}{"postgres": "ok"}, env.Data)

	degraded := NewServer(nil, nil,
		WithReadiness("postgres", func(context.Context) error { return nil }),
		WithReadiness("clickhouse", func(context.Context) error { return errors.New("connection refused") }))
	code, env = serve(degraded, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, map[string]interface{}{"postgres": "ok", "clickhouse": "connection refused"}, env.Data)
}
