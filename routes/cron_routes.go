package routes

import (
	"github.com/ghostbadfame/CRM-Chase-local/controllers"
	"github.com/ghostbadfame/CRM-Chase-local/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterCronRoutes mounts the rollover trigger.
func RegisterCronRoutes(router *gin.Engine, ctl *controllers.CronController, secret string) {
	router.GET("/api/cron", middleware.CronAuth(secret), ctl.Run)
}
