package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/auth"
	"github.com/lapublica/platform-api/internal/config"
	"github.com/lapublica/platform-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAuthMiddleware(apiKey string) *auth.Middleware {
	cfg := &config.Config{
		JWT: config.JWTConfig{
			Secret:           "test-secret",
			Issuer:           "lapublica-api",
			AccessTTLMinutes: 15,
		},
		ApiKey: config.ApiKeyConfig{Value: apiKey},
	}
	return auth.NewMiddleware(cfg, zap.NewNop())
}

func okHandler(captured **auth.UserContext) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			*captured, _ = auth.FromContext(r.Context())
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticate_ValidBearerToken(t *testing.T) {
	m := newAuthMiddleware("")

	companyID := uuid.New()
	user := &domain.User{
		BaseModel:   domain.BaseModel{ID: uuid.New()},
		Email:       "member@example.cat",
		DisplayName: "Member",
		Role:        domain.RoleMember,
		CompanyID:   &companyID,
	}
	token, err := m.Validator().IssueToken(user)
	require.NoError(t, err)

	var captured *auth.UserContext
	handler := m.Authenticate(okHandler(&captured))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/leads", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, captured)
	assert.Equal(t, user.ID, captured.UserID)
	require.NotNil(t, captured.CompanyID)
	assert.Equal(t, companyID, *captured.CompanyID)
}

func TestAuthenticate_MissingHeader(t *testing.T) {
	m := newAuthMiddleware("")
	handler := m.Authenticate(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/leads", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
}

func TestAuthenticate_MalformedHeader(t *testing.T) {
	m := newAuthMiddleware("")
	handler := m.Authenticate(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/leads", nil)
	req.Header.Set("Authorization", "Token abc123")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuthenticate_ValidAPIKey(t *testing.T) {
	m := newAuthMiddleware("super-secret-key")

	var captured *auth.UserContext
	handler := m.Authenticate(okHandler(&captured))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/companies", nil)
	req.Header.Set("x-api-key", "super-secret-key")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, captured)
	assert.True(t, captured.IsPlatformAdmin())
	assert.Nil(t, captured.CompanyID)
}

func TestAuthenticate_APIKeyWithCompanyHeader(t *testing.T) {
	m := newAuthMiddleware("super-secret-key")

	companyID := uuid.New()
	var captured *auth.UserContext
	handler := m.Authenticate(okHandler(&captured))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/leads", nil)
	req.Header.Set("x-api-key", "super-secret-key")
	req.Header.Set("X-Company-ID", companyID.String())
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, captured)
	require.NotNil(t, captured.CompanyID)
	assert.Equal(t, companyID, *captured.CompanyID)
}

func TestAuthenticate_InvalidAPIKey(t *testing.T) {
	m := newAuthMiddleware("super-secret-key")
	handler := m.Authenticate(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/companies", nil)
	req.Header.Set("x-api-key", "wrong")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuthenticate_APIKeyDisabled(t *testing.T) {
	// No configured key means API key auth is off entirely
	m := newAuthMiddleware("")
	handler := m.Authenticate(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/companies", nil)
	req.Header.Set("x-api-key", "")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestOptionalAuthenticate_PassesWithoutCredentials(t *testing.T) {
	m := newAuthMiddleware("")

	var captured *auth.UserContext
	handler := m.OptionalAuthenticate(okHandler(&captured))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/marketplace/offers", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, captured)
}

func TestRequireAdmin(t *testing.T) {
	m := newAuthMiddleware("")
	handler := m.RequireAdmin(okHandler(nil))

	t.Run("platform admin passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/companies", nil)
		ctx := auth.WithUserContext(req.Context(), &auth.UserContext{UserID: uuid.New(), Role: domain.RolePlatformAdmin})
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req.WithContext(ctx))

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("member is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/companies", nil)
		ctx := auth.WithUserContext(req.Context(), &auth.UserContext{UserID: uuid.New(), Role: domain.RoleMember})
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req.WithContext(ctx))

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("missing context is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/companies", nil)
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestRequireRole(t *testing.T) {
	m := newAuthMiddleware("")
	handler := m.RequireRole(domain.RoleCompanyOwner)(okHandler(nil))

	t.Run("owner passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil)
		ctx := auth.WithUserContext(req.Context(), &auth.UserContext{UserID: uuid.New(), Role: domain.RoleCompanyOwner})
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req.WithContext(ctx))

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("platform admin always passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil)
		ctx := auth.WithUserContext(req.Context(), &auth.UserContext{UserID: uuid.New(), Role: domain.RolePlatformAdmin})
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req.WithContext(ctx))

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("member is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil)
		ctx := auth.WithUserContext(req.Context(), &auth.UserContext{UserID: uuid.New(), Role: domain.RoleMember})
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req.WithContext(ctx))

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}
