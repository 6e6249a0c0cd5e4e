package routes

import (
	"github.com/ghostbadfame/CRM-Chase-local/controllers"
	"github.com/ghostbadfame/CRM-Chase-local/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterAuthRoutes mounts the sign-in routes.
func RegisterAuthRoutes(router *gin.Engine, ctl *controllers.AuthController) {
	auth := router.Group("/api/auth")

	auth.POST("/login", ctl.Login)
	auth.GET("/validate", middleware.AuthMiddleware(), ctl.ValidateToken)
}
