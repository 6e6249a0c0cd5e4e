package routes

import (
	"github.com/ghostbadfame/CRM-Chase-local/controllers"
	"github.com/ghostbadfame/CRM-Chase-local/middleware"
	"github.com/ghostbadfame/CRM-Chase-local/repository"

	"github.com/gin-gonic/gin"
)

// RegisterLeadRoutes mounts the lead ledger.
func RegisterLeadRoutes(router *gin.Engine, ctl *controllers.LeadController, logs repository.OperationLogStore) {
	leads := router.Group("/api/leads")
	leads.Use(middleware.AuthMiddleware())
	leads.Use(middleware.OperationLoggerMiddleware(logs))

	leads.POST("", ctl.Create)
	leads.PATCH("", ctl.Update)
	leads.GET("", ctl.List)
	leads.GET("/assigned", ctl.Assigned)
	leads.GET("/:leadNo", ctl.Get)
	leads.GET("/:leadNo/remarks", ctl.Remarks)
}
