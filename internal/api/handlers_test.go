package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qi-lang/qi/internal/compiler"
	"github.com/qi-lang/qi/internal/config"
)

func newTestServer(t *testing.T, apiKey string) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Service.APIKey = apiKey
	return NewServer(cfg, compiler.New(cfg, nil))
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, "")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestHandleVersion(t *testing.T) {
	s := newTestServer(t, "")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp VersionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "qi", resp.Service)
}

func TestHandleCompile(t *testing.T) {
	s := newTestServer(t, "")
	body, _ := json.Marshal(CompileRequest{
		Source: "函数 入口() { 返回 0 }",
		Name:   "api.qi",
	})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/compile", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp CompileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.IR, "define i32 @main()")
	assert.Empty(t, resp.Diagnostics)
}

func TestHandleCompile_ParseErrorIsUnprocessable(t *testing.T) {
	s := newTestServer(t, "")
	body, _ := json.Marshal(CompileRequest{Source: "函数 {"})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/compile", bytes.NewReader(body))
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleCompile_MissingSource(t *testing.T) {
	s := newTestServer(t, "")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/compile", bytes.NewReader([]byte(`{}`)))
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRuntimeStats(t *testing.T) {
	s := newTestServer(t, "")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runtime/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Contains(t, stats, "workers")
}

func TestAPIKeyAuth(t *testing.T) {
	s := newTestServer(t, "secret")

	// Health stays open.
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Stats requires the key.
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runtime/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/runtime/stats", nil)
	req.Header.Set("X-API-Key", "secret")
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
