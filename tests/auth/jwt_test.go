package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/auth"
	"github.com/lapublica/platform-api/internal/config"
	"github.com/lapublica/platform-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidator(secret string) *auth.JWTValidator {
	return auth.NewJWTValidator(&config.JWTConfig{
		Secret:           secret,
		Issuer:           "lapublica-api",
		AccessTTLMinutes: 15,
	})
}

func TestJWTValidator_IssueAndValidate(t *testing.T) {
	v := newValidator("test-secret")

	companyID := uuid.New()
	user := &domain.User{
		BaseModel:   domain.BaseModel{ID: uuid.New()},
		Email:       "owner@example.cat",
		DisplayName: "Owner",
		Role:        domain.RoleCompanyOwner,
		CompanyID:   &companyID,
	}

	token, err := v.IssueToken(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userCtx, err := v.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userCtx.UserID)
	assert.Equal(t, user.Email, userCtx.Email)
	assert.Equal(t, domain.RoleCompanyOwner, userCtx.Role)
	require.NotNil(t, userCtx.CompanyID)
	assert.Equal(t, companyID, *userCtx.CompanyID)
}

func TestJWTValidator_WrongSecret(t *testing.T) {
	issuer := newValidator("secret-a")
	verifier := newValidator("secret-b")

	token, err := issuer.IssueToken(&domain.User{BaseModel: domain.BaseModel{ID: uuid.New()}, Role: domain.RoleMember})
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTValidator_WrongIssuer(t *testing.T) {
	other := auth.NewJWTValidator(&config.JWTConfig{
		Secret:           "test-secret",
		Issuer:           "someone-else",
		AccessTTLMinutes: 15,
	})
	v := newValidator("test-secret")

	token, err := other.IssueToken(&domain.User{BaseModel: domain.BaseModel{ID: uuid.New()}, Role: domain.RoleMember})
	require.NoError(t, err)

	_, err = v.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTValidator_ExpiredToken(t *testing.T) {
	v := newValidator("test-secret")

	claims := &auth.Claims{
		Role: string(domain.RoleMember),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			Issuer:    "lapublica-api",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = v.ValidateToken(signed)
	assert.Error(t, err)
}

func TestJWTValidator_MissingExpiry(t *testing.T) {
	v := newValidator("test-secret")

	claims := &auth.Claims{
		Role: string(domain.RoleMember),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  uuid.NewString(),
			Issuer:   "lapublica-api",
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = v.ValidateToken(signed)
	assert.Error(t, err, "tokens without exp must be rejected")
}

func TestJWTValidator_UnknownRoleFallsBackToMember(t *testing.T) {
	v := newValidator("test-secret")

	claims := &auth.Claims{
		Role: "galactic_emperor",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			Issuer:    "lapublica-api",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	userCtx, err := v.ValidateToken(signed)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleMember, userCtx.Role)
}

func TestJWTValidator_GarbageToken(t *testing.T) {
	v := newValidator("test-secret")

	_, err := v.ValidateToken("not.a.token")
	assert.Error(t, err)
}
