package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Jeffr-K/metagate/internal/session/service"
)

type loginRequest struct {
	Identity string `json:"identity" binding:"required"`
	Secret   string `json:"secret" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type tokenPairResponse struct {
	SessionID    string    `json:"session_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// handleLogin exchanges credentials for a fresh session's token pair.
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "identity and secret are required"})
			return
		}
		pair, err := s.auth.Login(c.Request.Context(), req.Identity, req.Secret)
		if err != nil {
			respondAuthError(c, err)
			return
		}
		c.JSON(http.StatusOK, toTokenPairResponse(pair))
	}
}

// handleRefresh rotates a refresh token into the chain's next token pair.
func (s *Server) handleRefresh() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "refresh_token is required"})
			return
		}
		pair, err := s.auth.Refresh(c.Request.Context(), req.RefreshToken)
		if err != nil {
			respondAuthError(c, err)
			return
		}
		c.JSON(http.StatusOK, toTokenPairResponse(pair))
	}
}

// handleLogout revokes the session named by the bearer token. Always succeeds
// from the caller's point of view, even for garbage tokens.
func (s *Server) handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Status(http.StatusNoContent)
			return
		}
		if err := s.auth.Logout(c.Request.Context(), token); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// handleSession echoes the verified claims of the presented access token.
func (s *Server) handleSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ClaimsFrom(c)
		if claims == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		resp := gin.H{
			"session_id": claims.SessionID,
			"identity":   claims.Subject,
		}
		if claims.ExpiresAt != nil {
			resp["expires_at"] = claims.ExpiresAt.Time
		}
		c.JSON(http.StatusOK, resp)
	}
}

func toTokenPairResponse(pair *service.TokenPair) tokenPairResponse {
	return tokenPairResponse{
		SessionID:    pair.SessionID,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.AccessExpiresAt,
	}
}

// respondAuthError maps engine failures to HTTP statuses. Every authentication
// failure is the same 401 body no matter the cause.
func respondAuthError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrUnauthenticated) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
