package routes

import (
	"github.com/ghostbadfame/CRM-Chase-local/controllers"
	"github.com/ghostbadfame/CRM-Chase-local/middleware"
	"github.com/ghostbadfame/CRM-Chase-local/models"
	"github.com/ghostbadfame/CRM-Chase-local/repository"
	"github.com/ghostbadfame/CRM-Chase-local/service"
	"github.com/ghostbadfame/CRM-Chase-local/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps carries everything the handlers need.
type Deps struct {
	Store       repository.Store
	Ledger      *service.LedgerService
	Auth        *service.AuthService
	Rollover    controllers.RolloverRunner
	Metrics     *utils.Metrics
	CronSecret  string
	CORSOrigins []string
}

// NewRouter builds the engine with the global middleware chain and every route.
func NewRouter(deps Deps) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS(deps.CORSOrigins))
	router.Use(middleware.Metrics(deps.Metrics))

	RegisterRoutes(router, deps)
	return router
}

// RegisterRoutes mounts every route group on router.
func RegisterRoutes(router *gin.Engine, deps Deps) {
	RegisterAuthRoutes(router, controllers.NewAuthController(deps.Auth))
	RegisterUserRoutes(router, controllers.NewUserController(deps.Auth), deps.Store)
	RegisterLeadRoutes(router, controllers.NewLeadController(deps.Ledger), deps.Store)
	RegisterChannelPartnerRoutes(router, controllers.NewChannelPartnerController(deps.Ledger), deps.Store)
	RegisterCronRoutes(router, controllers.NewCronController(deps.Rollover), deps.CronSecret)

	system := controllers.NewSystemController(deps.Store)
	router.GET("/api/health", system.Health)
	router.GET("/api/db-status", middleware.AuthMiddleware(), middleware.RequireRole(models.UserRoleADMIN), system.DBStatus)

	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{})))
	}
}
