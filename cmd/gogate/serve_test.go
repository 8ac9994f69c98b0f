package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/password"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T, mutate func(*goGate.Config)) (http.Handler, *bytes.Buffer) {
	t.Helper()

	cfg := goGate.DefaultConfig()
	cfg.Redis = goGate.RedisConfig{Embedded: true}
	cfg.Cookie.Secure = false
	cfg.Metrics.Enabled = true
	if mutate != nil {
		mutate(&cfg)
	}
	require.NoError(t, cfg.Validate())

	var logs bytes.Buffer
	logger := newLogger(cfg.Log, &logs)

	rdb, closeRedis, err := openRedis(cfg.Redis, logger)
	require.NoError(t, err)
	t.Cleanup(closeRedis)

	store, closeStore, err := openStore(context.Background(), cfg.Database, logger)
	require.NoError(t, err)
	t.Cleanup(closeStore)

	engine, err := goGate.New().WithConfig(cfg).WithRedis(rdb).WithCredentialStore(store).WithLogger(logger).Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	h, err := newRouter(engine, logger)
	require.NoError(t, err)
	return h, &logs
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRoutes(t *testing.T) {
	h, _ := testServer(t, nil)

	rec := serve(h, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = serve(h, http.MethodGet, "/")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = serve(h, http.MethodGet, "/admin")
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	rec = serve(h, http.MethodGet, "/login")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="csrf_token"`)
	assert.NotEmpty(t, rec.Result().Cookies())

	rec = serve(h, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gogate_access_denied_unauthenticated_total 2")
}

func TestRequestIDAndAccessLog(t *testing.T) {
	h, logs := testServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
	assert.Contains(t, logs.String(), `"request_id":"req-123"`)
	assert.Contains(t, logs.String(), `"path":"/healthz"`)

	rec = serve(h, http.MethodGet, "/healthz")
	assert.Len(t, rec.Header().Get("X-Request-ID"), 36)
}

func TestLoginPostRateLimitedByIP(t *testing.T) {
	h, _ := testServer(t, func(c *goGate.Config) { c.Security.LoginRequestsPerMinute = 2 })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("email=a"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusSeeOther, http.StatusSeeOther, http.StatusTooManyRequests}, codes)
}

func TestMetricsDisabled(t *testing.T) {
	h, _ := testServer(t, func(c *goGate.Config) { c.Metrics.Enabled = false })
	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/metrics").Code)
}

func TestHashSecret(t *testing.T) {
	params := password.Argon2Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

	out, err := hashSecret(params, "hunter2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "$argon2id$"))

	v, err := password.NewVerifier(params)
	require.NoError(t, err)
	assert.True(t, v.Verify("hunter2", out))

	_, err = hashSecret(params, "")
	assert.Error(t, err)
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(goGate.LogConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())
}
