package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/config"
	"github.com/lapublica/platform-api/internal/domain"
)

// Claims are the custom JWT claims carried in access tokens
type Claims struct {
	Email       string `json:"email"`
	DisplayName string `json:"name"`
	Role        string `json:"role"`
	CompanyID   string `json:"companyId,omitempty"`
	jwt.RegisteredClaims
}

// JWTValidator validates and issues HMAC-signed access tokens
type JWTValidator struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewJWTValidator creates a new JWT validator
func NewJWTValidator(cfg *config.JWTConfig) *JWTValidator {
	return &JWTValidator{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    cfg.AccessTTL(),
	}
}

// ValidateToken parses and validates a token and builds the user context
func (v *JWTValidator) ValidateToken(tokenString string) (*UserContext, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	},
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid subject claim: %w", err)
	}

	role := domain.UserRoleType(claims.Role)
	switch role {
	case domain.RolePlatformAdmin, domain.RoleCompanyOwner, domain.RoleMember:
	default:
		role = domain.RoleMember
	}

	userCtx := &UserContext{
		UserID:      userID,
		DisplayName: claims.DisplayName,
		Email:       claims.Email,
		Role:        role,
	}

	if claims.CompanyID != "" {
		companyID, err := uuid.Parse(claims.CompanyID)
		if err != nil {
			return nil, fmt.Errorf("invalid companyId claim: %w", err)
		}
		userCtx.CompanyID = &companyID
	}

	return userCtx, nil
}

// IssueToken signs a new access token for a user
func (v *JWTValidator) IssueToken(user *domain.User) (string, error) {
	now := time.Now()

	claims := &Claims{
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
			ID:        uuid.NewString(),
		},
	}
	if user.CompanyID != nil {
		claims.CompanyID = user.CompanyID.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
