package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Jeffr-K/metagate/internal/security"
)

const claimsContextKey = "gate.access_claims"

// RequireAuth verifies the bearer access token on every request and aborts
// with 401 when it fails. Verified claims are stored on the context for
// handlers behind it.
func RequireAuth(auth Auth) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		claims, err := auth.VerifyAccess(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		c.Set(claimsContextKey, claims)
		c.Next()
	}
}

// ClaimsFrom returns the claims RequireAuth stored, or nil outside it.
func ClaimsFrom(c *gin.Context) *security.AccessClaims {
	v, ok := c.Get(claimsContextKey)
	if !ok {
		return nil
	}
	claims, ok := v.(*security.AccessClaims)
	if !ok {
		return nil
	}
	return claims
}

// bearerToken extracts the token from the Authorization header; empty when the
// header is missing or not a bearer scheme.
func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
