package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Key types for context values
type contextKey string

const (
	// RequestIDKey is the key for request ID values in contexts
	RequestIDKey contextKey = "requestID"
	// UserIDKey is the key for user ID values in contexts
	UserIDKey contextKey = "userID"
	// TabIDKey is the key for the browser tab scope in contexts
	TabIDKey contextKey = "tabID"
)

// Header carrying the browser tab a request comes from
const TabIDHeader = "X-Tab-ID"

// DefaultTabID is used when a client sends no tab header
const DefaultTabID = "default"

// RequestIDMiddleware adds a unique request ID to each request
// and sets it in both the context and response headers
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check if request already has an ID from upstream service
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(c.Request.Context(), RequestIDKey, requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)
		c.Set("requestID", requestID)

		c.Next()
	}
}

// WithRequestContext adds standard context values to a context for downstream operations
func WithRequestContext(parent context.Context, c *gin.Context) context.Context {
	ctx := parent

	if requestID, exists := c.Get("requestID"); exists {
		ctx = context.WithValue(ctx, RequestIDKey, requestID)
	}

	// Add user ID if authenticated
	if userID, exists := c.Get("userID"); exists {
		ctx = context.WithValue(ctx, UserIDKey, userID)
	}

	ctx = context.WithValue(ctx, TabIDKey, TabID(c))

	return ctx
}

// TabID returns the tab scope of the request
func TabID(c *gin.Context) string {
	if tab := c.GetHeader(TabIDHeader); tab != "" {
		return tab
	}
	if tab := c.Query("tab"); tab != "" {
		return tab
	}
	return DefaultTabID
}

// GetRequestID extracts the request ID from a context
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}

	return ""
}

// GetUserID extracts the user ID from a context
func GetUserID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}

	return ""
}
