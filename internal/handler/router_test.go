package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"notevault-server/internal/metrics"
	"notevault-server/internal/middleware"
	"notevault-server/internal/repository"
	"notevault-server/internal/service"
	"notevault-server/internal/session"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRouter_VersionHeader(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name    string
		version string
		want    int
	}{
		{"matching version", "1.0.0", http.StatusBadRequest},
		{"missing header", "", http.StatusNotFound},
		{"other version", "2.0.0", http.StatusNotFound},
		{"not semver", "latest", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/users/create", strings.NewReader(`{}`))
			if tt.version != "" {
				req.Header.Set("X-Version", tt.version)
			}
			rr := httptest.NewRecorder()
			f.router.ServeHTTP(rr, req)

			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
			if tt.want == http.StatusNotFound {
				assert.Equal(t, "Route not found", decode(t, rr).Message)
			}
		})
	}
}

func TestRouter_UnknownRouteAndMethod(t *testing.T) {
	f := newFixture(t, nil)

	rr := f.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Route not found", decode(t, rr).Message)

	rr = f.do(t, http.MethodPatch, "/users/create", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	f := newFixture(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"version":"1.0.0"`)

	f.do(t, http.MethodPost, "/users/create", `{}`)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RequestCounter.WithLabelValues("POST", "/users/create", "400")))

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "notevault_http_requests_total")
}

func TestRouter_HealthDegraded(t *testing.T) {
	store := repository.NewMemoryStore()
	logger := zap.NewNop().Sugar()
	notes := service.NewNoteService(store.Notes(), nil, logger, 1)
	users := service.NewUserService(store.Users(), notes, logger)
	auth := service.NewAuthService(users, session.NewMemoryStore(), "test-secret", 0, logger)

	router, err := NewRouter(Dependencies{
		Notes:      notes,
		Users:      users,
		Auth:       auth,
		APIVersion: testVersion,
		Cookie:     CookieOptions{Name: testCookie},
		Health: map[string]HealthCheck{
			"couchdb": func(context.Context) error { return errors.New("connection refused") },
		},
		Logger: logger,
	})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), `"couchdb":"unavailable"`)
	assert.NotContains(t, rr.Body.String(), "connection refused")
}

func TestNewRouter_RejectsInvalidVersion(t *testing.T) {
	_, err := NewRouter(Dependencies{APIVersion: "one", Metrics: metrics.New(), Logger: zap.NewNop().Sugar()})
	assert.Error(t, err)
}

func TestRouter_LoginLimitIgnoresForwardedFor(t *testing.T) {
	f := newFixture(t, nil)

	var codes []int
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodPost, "/users/login",
			strings.NewReader(`{"email":"alice@example.com","password":"secret123"}`))
		req.RemoteAddr = "203.0.113.50:40000"
		req.Header.Set(middleware.VersionHeader, testVersion)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i+1))
		req.Header.Set("X-Real-IP", fmt.Sprintf("192.0.2.%d", i+1))

		rr := httptest.NewRecorder()
		f.router.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}

	assert.Equal(t, []int{404, 404, 404}, codes[:3])
	for i, code := range codes[3:] {
		assert.Equal(t, http.StatusTooManyRequests, code, "attempt %d", i+4)
	}
}
