package httputil

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/weavy/weavy/pkg/contextkeys"
	"github.com/weavy/weavy/pkg/observability"
)

func TestRequestIDMiddleware(t *testing.T) {
	logger := observability.NewLogger(observability.InfoLevel, &bytes.Buffer{})

	var seen string
	handler := RequestIDMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = contextkeys.GetRequestID(r.Context())
	}))

	t.Run("generates an id", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rr.Header().Get(RequestIDHeader))
	})

	t.Run("reuses inbound id", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		handler.ServeHTTP(rr, req)
		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", rr.Header().Get(RequestIDHeader))
	})
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.InfoLevel, &buf)

	handler := Chain(RequestIDMiddleware(logger), LoggingMiddleware)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/roles/9", nil))

	out := buf.String()
	assert.Contains(t, out, `"status":404`)
	assert.Contains(t, out, `"path":"/api/roles/9"`)
	assert.Contains(t, out, "request_id")
	assert.Contains(t, out, "request rejected")
}

func TestRecoveryMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.InfoLevel, &buf)

	handler := Chain(RequestIDMiddleware(logger), RecoveryMiddleware)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, buf.String(), "PANIC recovered")
}

func TestForwardedHeaders(t *testing.T) {
	tests := []struct {
		name       string
		trusted    bool
		wantRemote string
		wantHost   string
	}{
		{name: "untrusted", trusted: false, wantRemote: "10.0.0.1:4000", wantHost: "internal:8080"},
		{name: "trusted proxy", trusted: true, wantRemote: "203.0.113.7", wantHost: "weavy.acme.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var remote, host string
			handler := ForwardedHeaders(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				remote, host = r.RemoteAddr, r.Host
			}))

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Host = "internal:8080"
			r.RemoteAddr = "10.0.0.1:4000"
			r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
			r.Header.Set("X-Forwarded-Host", "weavy.acme.com")
			handler.ServeHTTP(httptest.NewRecorder(), r)

			assert.Equal(t, tt.wantRemote, remote)
			assert.Equal(t, tt.wantHost, host)
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := CORSMiddleware([]string{"https://app.acme.com"})(next)

	t.Run("allowed origin", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/roles/1", nil)
		req.Header.Set("Origin", "https://app.acme.com")
		handler.ServeHTTP(rr, req)
		assert.Equal(t, "https://app.acme.com", rr.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, http.StatusTeapot, rr.Code)
	})

	t.Run("other origin", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/roles/1", nil)
		req.Header.Set("Origin", "https://evil.example")
		handler.ServeHTTP(rr, req)
		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodOptions, "/api/roles/1", nil)
		req.Header.Set("Origin", "https://app.acme.com")
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}
