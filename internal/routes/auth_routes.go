package routes

import (
	"github.com/gin-gonic/gin"
)

// SetupAuthRoutes registers /auth.
func SetupAuthRoutes(apiV1 *gin.RouterGroup, deps Dependencies) {
	publicAuthGroup := apiV1.Group("/auth")
	{
		// POST /api/v1/auth/login
		publicAuthGroup.POST("/login", deps.Auth.Login)
	}

	protectedAuthGroup := apiV1.Group("/auth")
	protectedAuthGroup.Use(deps.JWT)
	{
		// POST /api/v1/auth/logout
		protectedAuthGroup.POST("/logout", deps.Auth.Logout)
		// GET /api/v1/auth/me
		protectedAuthGroup.GET("/me", deps.Auth.Me)
	}
}
