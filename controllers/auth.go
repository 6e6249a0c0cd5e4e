package controllers

import (
	"net/http"

	"github.com/ghostbadfame/CRM-Chase-local/models"
	"github.com/ghostbadfame/CRM-Chase-local/service"
	"github.com/ghostbadfame/CRM-Chase-local/utils"

	"github.com/gin-gonic/gin"
)

// AuthController serves sign-in and session checks.
type AuthController struct {
	auth *service.AuthService
}

func NewAuthController(auth *service.AuthService) *AuthController {
	return &AuthController{auth: auth}
}

// Login handles POST /api/auth/login.
func (ctl *AuthController) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("invalid request body: "+err.Error()))
		return
	}

	resp, err := ctl.auth.Login(c.Request.Context(), &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, resp, "login successful")
}

// ValidateToken handles GET /api/auth/validate and echoes the session user.
func (ctl *AuthController) ValidateToken(c *gin.Context) {
	user, err := utils.GetUser(c)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"user": user}, "", http.StatusOK)
}
