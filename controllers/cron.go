package controllers

import (
	"context"
	"net/http"

	"github.com/ghostbadfame/CRM-Chase-local/service"
	"github.com/ghostbadfame/CRM-Chase-local/utils"

	"github.com/gin-gonic/gin"
)

// RolloverRunner runs the rollover once. service.RolloverScheduler
// satisfies it.
type RolloverRunner interface {
	RunOnce(ctx context.Context) (*service.RolloverResult, error)
}

// CronController lets an external scheduler trigger the rollover.
type CronController struct {
	runner RolloverRunner
}

func NewCronController(runner RolloverRunner) *CronController {
	return &CronController{runner: runner}
}

// Run handles GET /api/cron. It answers 200 when both steps succeeded and
// 500 when either failed, reporting the counts either way.
func (ctl *CronController) Run(c *gin.Context) {
	result, err := ctl.runner.RunOnce(c.Request.Context())
	if result == nil {
		if err != nil {
			utils.HandleError(c, utils.CreatePersistenceError("rollover failed", err))
			return
		}
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"outcome": "skipped",
			"message": "rollover is already running on another instance",
		})
		return
	}

	body := gin.H{
		"success":       result.Succeeded(),
		"outcome":       result.Outcome,
		"runAt":         result.RunAt,
		"recycled":      result.Recycled,
		"forwardFilled": result.ForwardFilled,
	}
	if err != nil {
		body["error"] = err.Error()
		body["message"] = "rollover finished with errors"
		c.JSON(http.StatusInternalServerError, body)
		return
	}
	body["message"] = "rollover completed"
	c.JSON(http.StatusOK, body)
}
