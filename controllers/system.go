package controllers

import (
	"context"
	"net/http"

	"github.com/ghostbadfame/CRM-Chase-local/utils"

	"github.com/gin-gonic/gin"
)

// StatusReporter reports per-collection counts.
type StatusReporter interface {
	Status(ctx context.Context) (map[string]interface{}, error)
}

// SystemController serves operational endpoints.
type SystemController struct {
	store StatusReporter
}

func NewSystemController(store StatusReporter) *SystemController {
	return &SystemController{store: store}
}

// Health handles GET /api/health.
func (ctl *SystemController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// DBStatus handles GET /api/db-status.
func (ctl *SystemController) DBStatus(c *gin.Context) {
	status, err := ctl.store.Status(c.Request.Context())
	if err != nil {
		utils.HandleError(c, utils.CreatePersistenceError("failed to read database status", err))
		return
	}
	c.JSON(http.StatusOK, status)
}
