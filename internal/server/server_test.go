package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canonurl/internal/config"
	"canonurl/internal/logger"
	"canonurl/internal/metrics"
	"canonurl/internal/ratelimit"
	"canonurl/internal/urlnorm"
)

func newTestServer(t *testing.T, normalize map[string]interface{}, burst int) http.Handler {
	t.Helper()
	cfg := config.Config{Normalize: normalize}
	srv, err := New(cfg, ratelimit.New(60, burst), logger.NewWithWriter(io.Discard, "error"))
	require.NoError(t, err)
	return srv.Routes()
}

func postNormalize(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/normalize", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t, nil, 10)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRequestIDPassthrough(t *testing.T) {
	h := newTestServer(t, nil, 10)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get("X-Request-Id"))
}

func TestNormalizeDefaults(t *testing.T) {
	h := newTestServer(t, nil, 10)
	rec := postNormalize(t, h, `{"url":"www.sindresorhus.com/?b=bar&a=foo&utm_source=x"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	out := decodeBody(t, rec)
	assert.Equal(t, "http://sindresorhus.com/?a=foo&b=bar", out["url"])
	assert.Equal(t, urlnorm.Hash("http://sindresorhus.com/?a=foo&b=bar"), out["hash"])
	assert.Equal(t, true, out["full_url"])
}

func TestNormalizeRequestOptions(t *testing.T) {
	h := newTestServer(t, nil, 10)
	rec := postNormalize(t, h, `{"url":"http://www.sindresorhus.com/foo#bar","options":{"stripHash":true,"stripProtocol":true}}`)

	require.Equal(t, http.StatusOK, rec.Code)
	out := decodeBody(t, rec)
	assert.Equal(t, "sindresorhus.com/foo", out["url"])
	assert.Equal(t, false, out["full_url"])
}

func TestNormalizeServiceDefaults(t *testing.T) {
	h := newTestServer(t, map[string]interface{}{"forceHttps": true}, 10)

	rec := postNormalize(t, h, `{"url":"http://sindresorhus.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://sindresorhus.com", decodeBody(t, rec)["url"])

	// Request options layer over the configured defaults.
	rec = postNormalize(t, h, `{"url":"http://sindresorhus.com/a#b","options":{"stripHash":true}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://sindresorhus.com/a", decodeBody(t, rec)["url"])
}

func TestNormalizeErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"bad_json", `{"url":`, http.StatusBadRequest, "invalid_request"},
		{"missing_url", `{"options":{}}`, http.StatusBadRequest, "invalid_request"},
		{"relative_url", `{"url":"/relative/path"}`, http.StatusUnprocessableEntity, "invalid_url"},
		{"bad_port", `{"url":"http://x.com:99999"}`, http.StatusUnprocessableEntity, "invalid_url"},
		{"conflicting_force", `{"url":"x.com","options":{"forceHttp":true,"forceHttps":true}}`, http.StatusBadRequest, "invalid_options"},
		{"renamed_option", `{"url":"x.com","options":{"stripFragment":true}}`, http.StatusBadRequest, "invalid_options"},
		{"unknown_option", `{"url":"x.com","options":{"nope":true}}`, http.StatusBadRequest, "invalid_options"},
	}

	h := newTestServer(t, nil, 100)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postNormalize(t, h, tc.body)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, tc.code, decodeBody(t, rec)["error"])
		})
	}
}

func TestNormalizeRateLimited(t *testing.T) {
	h := newTestServer(t, nil, 1)

	rec := postNormalize(t, h, `{"url":"x.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postNormalize(t, h, `{"url":"x.com"}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", decodeBody(t, rec)["error"])

	// Health checks are not rate limited.
	hrec := httptest.NewRecorder()
	h.ServeHTTP(hrec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, hrec.Code)
}

func TestNewRejectsBadDefaults(t *testing.T) {
	_, err := New(config.Config{Normalize: map[string]interface{}{"normalizeHttps": true}}, ratelimit.New(60, 1), logger.NewWithWriter(io.Discard, "error"))
	require.Error(t, err)
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.MustRegister()
	metrics.MustRegister()
	h := newTestServer(t, nil, 10)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "urlcanon_http_requests_total")
	assert.Contains(t, body, `path="/healthz"`)
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:54321"
	assert.Equal(t, "203.0.113.9", clientKey(req))

	req.RemoteAddr = "unix"
	assert.Equal(t, "unix", clientKey(req))
}

func TestAccessLogWritesRequestID(t *testing.T) {
	var buf bytes.Buffer
	srv, err := New(config.Config{}, ratelimit.New(60, 10), logger.NewWithWriter(&buf, "info"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "abc")
	srv.Routes().ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "request", line["msg"])
	assert.Equal(t, "abc", line[logger.RequestIDKey])
	assert.Equal(t, float64(http.StatusOK), line["status"])
}
