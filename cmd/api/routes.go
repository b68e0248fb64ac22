package main

import (
	"database/sql"
	"net/http"
	"time"

	"consent-platform/internal/httpapi"
	"consent-platform/pkg/utils"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to
// internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, db *sql.DB) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Consent endpoints. The renewal middleware also honors the Sec-GPC
	// header for visitors who have no cookie yet.
	api := r.Group("/api")
	api.Use(h.ConsentRenewal())
	{
		api.GET("/cookie-consent", h.GetConsent)
		api.POST("/cookie-consent", h.PostConsent)
	}
}
