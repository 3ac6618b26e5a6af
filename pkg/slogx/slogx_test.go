package slogx_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Dhairyash-1/auth-system/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestHTTPMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slogx.New(slogx.Config{Service: "auth", Version: "test", Env: "test", Level: "debug", Output: &buf})

	var fromCtx bool
	h := slogx.HTTPMiddleware(logger, func(*http.Request) string { return "203.0.113.9" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fromCtx = slogx.FromContext(r.Context()) != logger
			w.WriteHeader(http.StatusTeapot)
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.True(t, fromCtx, "handler should see a request-scoped logger")
	require.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "http_request", line["msg"])
	require.Equal(t, "req-123", line["req_id"])
	require.Equal(t, "203.0.113.9", line["client_ip"])
	require.EqualValues(t, http.StatusTeapot, line["status"])
}

func TestGeneratesRequestID(t *testing.T) {
	logger := slogx.New(slogx.Config{Output: &bytes.Buffer{}})
	h := slogx.HTTPMiddleware(logger, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slogx.New(slogx.Config{Output: &buf})

	ctx := slogx.WithContext(context.Background(), logger)
	ctx = slogx.WithAttrs(ctx, "user_id", "u-1")
	slogx.FromContext(ctx).Info("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "u-1", line["user_id"])
}
