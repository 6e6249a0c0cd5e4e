package controllers

import (
	"net/http"

	"github.com/ghostbadfame/CRM-Chase-local/models"
	"github.com/ghostbadfame/CRM-Chase-local/service"
	"github.com/ghostbadfame/CRM-Chase-local/utils"

	"github.com/gin-gonic/gin"
)

// UserController manages employee accounts.
type UserController struct {
	auth *service.AuthService
}

func NewUserController(auth *service.AuthService) *UserController {
	return &UserController{auth: auth}
}

// CreateEmployee handles POST /api/users.
func (ctl *UserController) CreateEmployee(c *gin.Context) {
	actor, err := utils.GetUser(c)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	var req models.NewEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("invalid request body: "+err.Error()))
		return
	}

	user, err := ctl.auth.CreateEmployee(c.Request.Context(), actor, &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user":    user,
		"message": "employee created successfully",
	})
}
