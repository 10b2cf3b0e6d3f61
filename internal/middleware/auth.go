package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/flowsync/flowsync-api/pkg/jwt"
	"github.com/flowsync/flowsync-api/pkg/logger"
)

// ClaimsContextKey is the key used to store API claims in the gin context
const ClaimsContextKey = "api_claims"

var (
	ErrClaimsNotFound = errors.New("claims not found in context")
	ErrInvalidClaims  = errors.New("invalid claims type")
)

// BearerAuthMiddleware validates the Authorization bearer token and stores
// its claims in the context
func BearerAuthMiddleware(tokenManager *jwt.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			logger.Warn("Missing bearer token",
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
			)
			_ = c.Error(fmt.Errorf("missing bearer token")) //nolint:errcheck
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		claims, err := tokenManager.ValidateToken(token)
		if err != nil {
			_ = c.Error(fmt.Errorf("invalid bearer token: %w", err)) //nolint:errcheck
			if errors.Is(err, jwt.ErrExpiredToken) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token expired"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Set(ClaimsContextKey, claims)
		c.Next()
	}
}

// GetClaims extracts the API claims from context
func GetClaims(c *gin.Context) (*jwt.APIClaims, error) {
	val, exists := c.Get(ClaimsContextKey)
	if !exists {
		return nil, ErrClaimsNotFound
	}

	claims, ok := val.(*jwt.APIClaims)
	if !ok {
		return nil, ErrInvalidClaims
	}

	return claims, nil
}
