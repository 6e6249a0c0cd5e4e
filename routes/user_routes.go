package routes

import (
	"github.com/ghostbadfame/CRM-Chase-local/controllers"
	"github.com/ghostbadfame/CRM-Chase-local/middleware"
	"github.com/ghostbadfame/CRM-Chase-local/models"
	"github.com/ghostbadfame/CRM-Chase-local/repository"

	"github.com/gin-gonic/gin"
)

// RegisterUserRoutes mounts employee management. Administrators only.
func RegisterUserRoutes(router *gin.Engine, ctl *controllers.UserController, logs repository.OperationLogStore) {
	users := router.Group("/api/users")
	users.Use(middleware.AuthMiddleware())
	users.Use(middleware.RequireRole(models.UserRoleADMIN))
	users.Use(middleware.OperationLoggerMiddleware(logs))

	users.POST("", ctl.CreateEmployee)
}
