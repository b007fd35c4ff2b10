package router

import (
	"fmt"
	"net/http"

	"ai-companion-demo/companion/pkg/validator"

	"github.com/gin-gonic/gin"
)

// AddOpenAPIValidation validates every documented request against doc.
// It must run before SetupRoutes; gin binds middleware at registration.
func (r *Router) AddOpenAPIValidation(doc []byte) error {
	v, err := validator.NewOpenAPIValidator(doc)
	if err != nil {
		return fmt.Errorf("openapi validator: %w", err)
	}

	r.Engine.Use(v.Middleware())
	r.Logger.Info("OpenAPI validation enabled", "paths", v.Document().Paths.Len())
	return nil
}

// setupDocsRoutes serves the OpenAPI document
func (r *Router) setupDocsRoutes(doc []byte) {
	r.Engine.GET("/api/docs/openapi.yaml", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/yaml", doc)
	})
}
