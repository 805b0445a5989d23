package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	hperrors "github.com/deepnoodle-ai/hotpath/errors"
	"github.com/deepnoodle-ai/hotpath/jit"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, opts ...jit.Option) (*Server, *jit.Engine) {
	t.Helper()
	engine, err := jit.New(opts...)
	require.Nil(t, err)
	t.Cleanup(func() { engine.Close() })
	return New(engine), engine
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	var decoded map[string]any
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.Nil(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestHealth(t *testing.T) {
	s, _ := newServer(t)
	rec, body := do(t, s, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", body["status"])
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestRequestIDPropagates(t *testing.T) {
	s, _ := newServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestExecute(t *testing.T) {
	s, _ := newServer(t, jit.WithHotThreshold(2))
	rec, body := do(t, s, http.MethodPost, "/api/execute", `{"code": "x = 10"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(10), body["value"])
	require.Equal(t, map[string]any{"x": float64(10)}, body["environment"])
	require.Equal(t, false, body["was_jit_compiled"])
	require.NotContains(t, body, "compilation_time_ns")
	require.Len(t, body["fingerprint"], 16)

	for i := 0; i < 2; i++ {
		_, body = do(t, s, http.MethodPost, "/api/execute", `{"code": "x * 3 + 7"}`)
		require.Equal(t, float64(37), body["value"])
	}
	require.Equal(t, true, body["was_jit_compiled"])
}

func TestExecuteErrors(t *testing.T) {
	s, _ := newServer(t)
	tests := []struct {
		body   string
		status int
		code   string
		msg    string
	}{
		{`{"code": "y + 1"}`, http.StatusBadRequest, "E2001", `undefined variable "y" (1:1)`},
		{`{"code": "1 / 0"}`, http.StatusBadRequest, "E3002", "division by zero (1:3)"},
		{`{"code": "nope(1)"}`, http.StatusBadRequest, "E2002", `unknown function "nope" (1:1)`},
		{`{"code": ""}`, http.StatusBadRequest, "E1003", ""},
		{`not json`, http.StatusBadRequest, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			rec, body := do(t, s, http.MethodPost, "/api/execute", tt.body)
			require.Equal(t, tt.status, rec.Code)
			require.NotEmpty(t, body["error"])
			if tt.code != "" {
				require.Equal(t, tt.code, body["code"])
			}
			if tt.msg != "" {
				require.Equal(t, tt.msg, body["error"])
			}
		})
	}
}

func TestClosedEngine(t *testing.T) {
	s, engine := newServer(t)
	require.Nil(t, engine.Close())
	rec, body := do(t, s, http.MethodPost, "/api/execute", `{"code": "1"}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "jit: engine is closed", body["error"])
	require.Empty(t, rec.Header().Get("Retry-After"))
}

func TestWriteErrorBusy(t *testing.T) {
	s, _ := newServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/execute", nil)
	rec := httptest.NewRecorder()
	s.writeError(rec, req, hperrors.NewBusyError(250*time.Millisecond))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "1", rec.Header().Get("Retry-After"))
	var body errorResponse
	require.Nil(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "E4001", body.Code)

	rec = httptest.NewRecorder()
	s.writeError(rec, req, errors.New("boom"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSyntaxErrorHasCode(t *testing.T) {
	s, _ := newServer(t)
	rec, body := do(t, s, http.MethodPost, "/api/execute", `{"code": "1 +"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.True(t, strings.HasPrefix(body["code"].(string), "E1"))
}

func TestStatsAndCache(t *testing.T) {
	s, _ := newServer(t, jit.WithHotThreshold(2), jit.WithMode(jit.ModeSimulate))
	for i := 0; i < 3; i++ {
		do(t, s, http.MethodPost, "/api/execute", `{"code": "2 + 3 * 4"}`)
	}
	do(t, s, http.MethodPost, "/api/execute", `{"code": "fib(6)"}`)

	rec, body := do(t, s, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(4), body["total_executions"])
	require.Equal(t, float64(1), body["total_compilations"])
	require.Equal(t, float64(2), body["compiled_executions"])
	require.Equal(t, float64(2), body["cache_entries"])
	require.Equal(t, float64(2), body["hot_threshold"])
	require.Equal(t, "simulate", body["mode"])
	require.Equal(t, 0.5, body["compiled_ratio"])

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cache", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []map[string]any
	require.Nil(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	require.Equal(t, float64(3), entries[0]["execution_count"])
	require.Equal(t, true, entries[0]["is_compiled"])
	require.Equal(t, false, entries[1]["is_compiled"])
}

func TestCode(t *testing.T) {
	s, _ := newServer(t, jit.WithHotThreshold(1))
	_, body := do(t, s, http.MethodPost, "/api/execute", `{"code": "1 + 2"}`)
	fp := body["fingerprint"].(string)

	rec, body := do(t, s, http.MethodGet, "/api/cache/"+fp+"/code", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, fp, body["fingerprint"])
	require.True(t, strings.HasPrefix(body["hex"].(string), "machine code ("))
	listing := body["listing"].([]any)
	require.Equal(t, "push rbp", listing[0].(map[string]any)["text"])
	require.Equal(t, "55", listing[0].(map[string]any)["bytes"])

	rec, _ = do(t, s, http.MethodGet, "/api/cache/00000000000000ff/code", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = do(t, s, http.MethodGet, "/api/cache/zz/code", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReset(t *testing.T) {
	s, engine := newServer(t)
	do(t, s, http.MethodPost, "/api/execute", `{"code": "x = 1"}`)
	rec, body := do(t, s, http.MethodPost, "/api/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "reset", body["status"])
	env, err := engine.Environment(context.Background())
	require.Nil(t, err)
	require.Empty(t, env)
}

func TestRouting(t *testing.T) {
	s, _ := newServer(t)
	rec, _ := do(t, s, http.MethodGet, "/api/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = do(t, s, http.MethodGet, "/api/execute", "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAccessLog(t *testing.T) {
	engine, err := jit.New()
	require.Nil(t, err)
	defer engine.Close()
	var buf bytes.Buffer
	s := New(engine, WithLogger(zerolog.New(&buf)))
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	s.Handler().ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	require.Nil(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "request", line["message"])
	require.Equal(t, "/api/health", line["path"])
	require.Equal(t, float64(200), line["status"])
	require.NotEmpty(t, line["request_id"])
}
