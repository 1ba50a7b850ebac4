package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/health-screening-server/internal/domain"
)

const principalKey = "principal"

// Claims are the access token claims. The subject is the user ID.
type Claims struct {
	jwt.RegisteredClaims
	Role domain.Role `json:"role"`
}

// AuthConfig holds the HMAC secret and expected issuer
type AuthConfig struct {
	Secret []byte
	Issuer string
}

// IssueToken signs an HS256 access token for a user
func IssueToken(cfg AuthConfig, userID string, role domain.Role, ttl time.Duration) (string, error) {
	if len(cfg.Secret) == 0 {
		return "", fmt.Errorf("signing secret is required")
	}
	if role == "" {
		role = domain.RolePatient
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.Secret)
}

// RequireAuth validates the bearer token and stores the caller's principal
func RequireAuth(cfg AuthConfig) gin.HandlerFunc {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			AbortWithError(c, http.StatusUnauthorized, domain.ErrCodeUnauthorized, "missing authorization header", "")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			AbortWithError(c, http.StatusUnauthorized, domain.ErrCodeUnauthorized, "invalid authorization format", "")
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
			return cfg.Secret, nil
		}, opts...)
		if err != nil || !token.Valid || claims.Subject == "" {
			AbortWithError(c, http.StatusUnauthorized, domain.ErrCodeUnauthorized, "invalid token", "")
			return
		}

		role := claims.Role
		if role != domain.RoleAdmin {
			role = domain.RolePatient
		}
		c.Set(principalKey, domain.Principal{UserID: claims.Subject, Role: role})
		c.Next()
	}
}

// RequireAdmin rejects callers without the admin role. It must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := PrincipalFrom(c)
		if !ok {
			AbortWithError(c, http.StatusUnauthorized, domain.ErrCodeUnauthorized, "authentication required", "")
			return
		}
		if !principal.IsAdmin() {
			AbortWithError(c, http.StatusForbidden, domain.ErrCodeForbidden, "admin role required", "")
			return
		}
		c.Next()
	}
}

// PrincipalFrom returns the authenticated caller stored by RequireAuth
func PrincipalFrom(c *gin.Context) (domain.Principal, bool) {
	value, ok := c.Get(principalKey)
	if !ok {
		return domain.Principal{}, false
	}
	principal, ok := value.(domain.Principal)
	return principal, ok
}
