package middleware

import (
	"errors"
	"strings"

	apperrors "ai-companion-demo/companion/pkg/errors"
	"ai-companion-demo/companion/pkg/jwt"
	"ai-companion-demo/companion/pkg/logger"

	"github.com/gin-gonic/gin"
)

// TokenValidator checks a bearer token
type TokenValidator interface {
	ValidateToken(token string) (*jwt.Claims, error)
}

// JWTAuthMiddleware checks that the request has a valid JWT and adds claims to the context.
// Websocket handshakes may pass the token as the "token" query parameter.
func JWTAuthMiddleware(validator TokenValidator, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Error(apperrors.NewUnauthorizedError(apperrors.CodeUnauthorized, "Authorization header is required"))
			c.Abort()
			return
		}

		claims, err := validator.ValidateToken(token)
		if err != nil {
			log.Warn("Invalid JWT token", "error", err.Error(), "path", c.Request.URL.Path)
			msg := "Invalid or expired token"
			if errors.Is(err, jwt.ErrExpiredToken) {
				msg = "Token has expired"
			}
			c.Error(apperrors.NewUnauthorizedError(apperrors.CodeInvalidToken, msg))
			c.Abort()
			return
		}

		c.Set("claims", claims)
		c.Set("userID", claims.User())
		c.Set("token", token)

		c.Next()
	}
}

// GetToken returns the raw bearer token of an authenticated request
func GetToken(c *gin.Context) string {
	return c.GetString("token")
}

// GetUser returns the authenticated user id
func GetUser(c *gin.Context) string {
	return c.GetString("userID")
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
			return strings.TrimSpace(header[7:])
		}
		return strings.TrimSpace(header)
	}
	return c.Query("token")
}
