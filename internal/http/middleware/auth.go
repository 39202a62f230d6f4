// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements bearer-token authentication. Tokens are HMAC-signed
// JWTs minted by the identity provider; the subject claim becomes the user
// id. The raw token is also stashed in the Gin context so the chat flow can
// forward it to the inference backend unchanged.
//
// When no signing secret is configured the server runs in development mode:
// identity comes from the X-User-ID header and unauthenticated requests are
// rejected only by handlers that require a user.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// userIDKey is the Gin context key holding the authenticated user id.
	userIDKey = "userID"
	// bearerTokenKey holds the raw bearer token for backend forwarding.
	bearerTokenKey = "bearerToken"
)

// EnsureUserFunc provisions a user row on first sight. Errors are logged by
// the caller and never block the request.
type EnsureUserFunc func(ctx context.Context, userID, email string) error

// AuthOptions configures the Auth middleware.
type AuthOptions struct {
	// JWTSecret is the HMAC key for verifying bearer tokens. Empty enables
	// development mode (X-User-ID header identity).
	JWTSecret string
	// EnsureUser, when non-nil, is called with the resolved identity so the
	// users table stays in sync with the identity provider.
	EnsureUser EnsureUserFunc
}

// Auth returns a middleware that resolves the caller's identity.
//
// With a secret configured, a missing, malformed, or invalid Authorization
// header aborts with 401 and the standard error envelope. On success the
// subject claim is stored under "userID" and the raw token under
// "bearerToken". Development mode instead trusts X-User-ID and carries no
// token.
func Auth(opt AuthOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		if opt.JWTSecret == "" {
			if uid := strings.TrimSpace(c.GetHeader("X-User-ID")); uid != "" {
				c.Set(userIDKey, uid)
				provision(c, opt, uid, "")
			}
			c.Next()
			return
		}

		raw := tokenFromHeader(c)
		if raw == "" {
			unauthorized(c, "missing bearer token")
			return
		}

		claims := jwt.MapClaims{}
		tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(opt.JWTSecret), nil
		})
		if err != nil || !tok.Valid {
			unauthorized(c, "invalid bearer token")
			return
		}

		sub, err := claims.GetSubject()
		if err != nil || sub == "" {
			unauthorized(c, "token has no subject")
			return
		}

		c.Set(userIDKey, sub)
		c.Set(bearerTokenKey, raw)

		email, _ := claims["email"].(string)
		provision(c, opt, sub, email)

		c.Next()
	}
}

// tokenFromHeader extracts the bearer token from the Authorization header.
func tokenFromHeader(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

// provision upserts the user row; failures are logged and swallowed.
func provision(c *gin.Context, opt AuthOptions, userID, email string) {
	if opt.EnsureUser == nil {
		return
	}
	if err := opt.EnsureUser(c.Request.Context(), userID, email); err != nil {
		LoggerFrom(c).Warn().Err(err).Str("user_id", userID).Msg("user provisioning failed")
	}
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       "unauthorized",
		"message":    msg,
	})
}
