package routes

import (
	"github.com/ghostbadfame/CRM-Chase-local/controllers"
	"github.com/ghostbadfame/CRM-Chase-local/middleware"
	"github.com/ghostbadfame/CRM-Chase-local/repository"

	"github.com/gin-gonic/gin"
)

// RegisterChannelPartnerRoutes mounts the channel partner ledger on the
// paths the front end already calls.
func RegisterChannelPartnerRoutes(router *gin.Engine, ctl *controllers.ChannelPartnerController, logs repository.OperationLogStore) {
	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware())
	api.Use(middleware.OperationLoggerMiddleware(logs))

	api.POST("/channelPartner", ctl.Create)
	api.GET("/channelPartner", ctl.List)
	api.GET("/channelPartner/:channelPartnerNo", ctl.Get)
	api.GET("/channelPartner/:channelPartnerNo/remarks", ctl.Remarks)
	api.PATCH("/setChannelPartnerData", ctl.Update)
	api.GET("/getAssignedChannelPartner", ctl.Assigned)
}
