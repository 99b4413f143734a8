package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// TokenValidator decides whether a bearer token identifies a trusted caller.
type TokenValidator func(ctx context.Context, token string) (bool, error)

// ServiceAuth guards the management API with service-to-service bearer
// tokens. A nil validator disables the guard entirely, for deployments where
// the API is only reachable on a private network.
func ServiceAuth(validate TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if validate == nil {
			c.Next()
			return
		}

		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			unauthorized(c, "missing bearer token")
			return
		}

		valid, err := validate(c.Request.Context(), token)
		if err != nil {
			LoggerFrom(c).Error().Err(err).Msg("service token validation failed")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "auth_unavailable",
				"message":    "could not validate service token",
			})
			return
		}
		if !valid {
			unauthorized(c, "invalid service token")
			return
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       "unauthorized",
		"message":    msg,
	})
}
