package routes

import (
	"net/http"
	"time"

	_ "github.com/facility_triage/docs" // registers the OpenAPI document
	"github.com/facility_triage/internal/handlers"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Dependencies are the handlers and middleware the routes are built from.
type Dependencies struct {
	Auth           *handlers.AuthHandler
	Complaints     *handlers.ComplaintHandler
	Feed           *handlers.FeedHandler
	Attachments    *handlers.AttachmentHandler // nil when no object store is configured
	JWT            gin.HandlerFunc
	AllowedOrigins []string
}

// SetupRoutes registers every route on router.
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	router.Use(corsMiddleware(deps.AllowedOrigins))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	apiV1 := router.Group("/api/v1")
	SetupAuthRoutes(apiV1, deps)
	SetupComplaintRoutes(apiV1, deps)
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}
