package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/auth"
	"github.com/lapublica/platform-api/internal/config"
	"github.com/lapublica/platform-api/internal/domain"
	"github.com/lapublica/platform-api/internal/http/middleware"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func createTestRateLimiter(cfg *config.RateLimitConfig) *middleware.RateLimiter {
	logger := zap.NewNop()
	return middleware.NewRateLimiter(cfg, logger)
}

func TestRateLimiter_Disabled(t *testing.T) {
	cfg := &config.RateLimitConfig{
		Enabled:           false,
		RequestsPerMinute: 5,
	}

	rl := createTestRateLimiter(cfg)
	handlerCalled := 0

	handler := rl.LimitByIP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled++
		w.WriteHeader(http.StatusOK)
	}))

	// Every request passes when rate limiting is off
	for i := 0; i < 100; i++ {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	assert.Equal(t, 100, handlerCalled)
}

func TestRateLimiter_WhitelistedPath(t *testing.T) {
	cfg := &config.RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: 2,
		WhitelistPaths:    []string{"/health"},
	}

	rl := createTestRateLimiter(cfg)
	handlerCalled := 0

	handler := rl.LimitByIP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled++
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	assert.Equal(t, 50, handlerCalled)
}

func TestRateLimiter_WhitelistedPathPrefix(t *testing.T) {
	cfg := &config.RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: 2,
		WhitelistPaths:    []string{"/health/*"},
	}

	rl := createTestRateLimiter(cfg)
	handlerCalled := 0

	handler := rl.LimitByIP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled++
		w.WriteHeader(http.StatusOK)
	}))

	paths := []string{"/health/db", "/health/ready"}
	for i := 0; i < 30; i++ {
		req := httptest.NewRequest(http.MethodGet, paths[i%len(paths)], nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	assert.Equal(t, 30, handlerCalled)
}

func TestRateLimiter_LimitExceeded(t *testing.T) {
	cfg := &config.RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: 5,
	}

	rl := createTestRateLimiter(cfg)

	handler := rl.LimitByIP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	okCount := 0
	rateLimitedCount := 0

	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "192.168.1.100:12345"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code == http.StatusOK {
			okCount++
		} else if w.Code == http.StatusTooManyRequests {
			rateLimitedCount++
			assert.NotEmpty(t, w.Header().Get("Retry-After"))
			assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
		}
	}

	assert.Greater(t, okCount, 0, "Some requests should succeed")
	assert.Greater(t, rateLimitedCount, 0, "Some requests should be rate limited")
}

func TestRateLimiter_DifferentIPsIndependent(t *testing.T) {
	cfg := &config.RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: 3,
	}

	rl := createTestRateLimiter(cfg)

	handler := rl.LimitByIP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	ips := []string{"192.168.1.1:12345", "192.168.1.2:12345", "192.168.1.3:12345"}

	for _, ip := range ips {
		okCount := 0
		for i := 0; i < 3; i++ {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.RemoteAddr = ip
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code == http.StatusOK {
				okCount++
			}
		}
		assert.Greater(t, okCount, 0, "IP %s should get successful requests", ip)
	}
}

func TestRateLimiter_AuthenticatedUsersKeyedSeparately(t *testing.T) {
	cfg := &config.RateLimitConfig{
		Enabled:               true,
		RequestsPerMinute:     1,
		RequestsPerMinuteAuth: 10,
	}

	rl := createTestRateLimiter(cfg)

	handler := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	userCtx := &auth.UserContext{
		UserID: uuid.New(),
		Role:   domain.RoleMember,
	}

	// An authenticated caller gets the higher per-user budget even though
	// the anonymous IP budget is exhausted after one request.
	okCount := 0
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/leads", nil)
		req.RemoteAddr = "192.168.1.50:12345"
		req = req.WithContext(auth.WithUserContext(req.Context(), userCtx))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code == http.StatusOK {
			okCount++
		}
	}

	assert.Equal(t, 5, okCount)
}
