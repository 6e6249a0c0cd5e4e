package controllers

import (
	"net/http"

	"github.com/ghostbadfame/CRM-Chase-local/models"
	"github.com/ghostbadfame/CRM-Chase-local/service"
	"github.com/ghostbadfame/CRM-Chase-local/utils"

	"github.com/gin-gonic/gin"
)

// currentUser returns the session principal or nil; the services decide
// what an absent session means.
func currentUser(c *gin.Context) *models.ActingUser {
	user, err := utils.GetUser(c)
	if err != nil {
		return nil
	}
	return user
}

// LeadController exposes the lead ledger.
type LeadController struct {
	ledger *service.LedgerService
}

func NewLeadController(ledger *service.LedgerService) *LeadController {
	return &LeadController{ledger: ledger}
}

// Create handles POST /api/leads.
func (ctl *LeadController) Create(c *gin.Context) {
	var req models.LeadCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("invalid request body: "+err.Error()))
		return
	}

	lead, remark, err := ctl.ledger.CreateLead(c.Request.Context(), currentUser(c), &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"new":     lead,
		"remark":  remark,
		"message": "lead created successfully",
	})
}

// Update handles PATCH /api/leads?leadNo=.
func (ctl *LeadController) Update(c *gin.Context) {
	leadNo := c.Query("leadNo")

	var req models.LeadUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("invalid request body: "+err.Error()))
		return
	}

	lead, remark, err := ctl.ledger.UpdateLead(c.Request.Context(), currentUser(c), leadNo, &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"new":     lead,
		"remark":  remark,
		"message": "lead updated successfully",
	})
}

// List handles GET /api/leads with optional status, salesPerson and
// clientStatus filters.
func (ctl *LeadController) List(c *gin.Context) {
	filter := models.LeadFilter{
		Status:       c.Query("status"),
		SalesPerson:  c.Query("salesPerson"),
		ClientStatus: c.Query("clientStatus"),
	}

	leads, err := ctl.ledger.ListLeads(c.Request.Context(), currentUser(c), filter)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.ListResponse(c, "leads", leads, len(leads), "leads fetched successfully")
}

// Get handles GET /api/leads/:leadNo.
func (ctl *LeadController) Get(c *gin.Context) {
	lead, err := ctl.ledger.GetLead(c.Request.Context(), currentUser(c), c.Param("leadNo"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"lead":    lead,
		"message": "lead fetched successfully",
	})
}

// Assigned handles GET /api/leads/assigned: follow-ups due today.
func (ctl *LeadController) Assigned(c *gin.Context) {
	leads, err := ctl.ledger.LeadsDueToday(c.Request.Context(), currentUser(c))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.ListResponse(c, "leads", leads, len(leads), "leads fetched successfully")
}

// Remarks handles GET /api/leads/:leadNo/remarks.
func (ctl *LeadController) Remarks(c *gin.Context) {
	remarks, err := ctl.ledger.ListRemarks(c.Request.Context(), currentUser(c), models.KindLead, c.Param("leadNo"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.ListResponse(c, "remarks", remarks, len(remarks), "remarks fetched successfully")
}
