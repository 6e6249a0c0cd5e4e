package controllers

import (
	"net/http"

	"github.com/ghostbadfame/CRM-Chase-local/models"
	"github.com/ghostbadfame/CRM-Chase-local/service"
	"github.com/ghostbadfame/CRM-Chase-local/utils"

	"github.com/gin-gonic/gin"
)

// ChannelPartnerController exposes the channel partner ledger.
type ChannelPartnerController struct {
	ledger *service.LedgerService
}

func NewChannelPartnerController(ledger *service.LedgerService) *ChannelPartnerController {
	return &ChannelPartnerController{ledger: ledger}
}

// Create handles POST /api/channelPartner.
func (ctl *ChannelPartnerController) Create(c *gin.Context) {
	var req models.ChannelPartnerCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("invalid request body: "+err.Error()))
		return
	}

	partner, remark, err := ctl.ledger.CreateChannelPartner(c.Request.Context(), currentUser(c), &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"new":     partner,
		"remark":  remark,
		"message": "channel partner created successfully",
	})
}

// Update handles PATCH /api/setChannelPartnerData?channelPartnerNo=.
func (ctl *ChannelPartnerController) Update(c *gin.Context) {
	channelPartnerNo := c.Query("channelPartnerNo")

	var req models.ChannelPartnerUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("invalid request body: "+err.Error()))
		return
	}

	partner, remark, err := ctl.ledger.UpdateChannelPartner(c.Request.Context(), currentUser(c), channelPartnerNo, &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"new":     partner,
		"remark":  remark,
		"message": "channel partner updated successfully",
	})
}

// List handles GET /api/channelPartner with an optional userType filter.
func (ctl *ChannelPartnerController) List(c *gin.Context) {
	filter := models.ChannelPartnerFilter{UserType: c.Query("userType")}

	partners, err := ctl.ledger.ListChannelPartners(c.Request.Context(), currentUser(c), filter)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.ListResponse(c, "channelPartner", partners, len(partners), "channel partners fetched successfully")
}

// Get handles GET /api/channelPartner/:channelPartnerNo.
func (ctl *ChannelPartnerController) Get(c *gin.Context) {
	partner, err := ctl.ledger.GetChannelPartner(c.Request.Context(), currentUser(c), c.Param("channelPartnerNo"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"channelPartner": partner,
		"message":        "channel partner fetched successfully",
	})
}

// Assigned handles GET /api/getAssignedChannelPartner: follow-ups due today.
func (ctl *ChannelPartnerController) Assigned(c *gin.Context) {
	partners, err := ctl.ledger.ChannelPartnersDueToday(c.Request.Context(), currentUser(c))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.ListResponse(c, "channelPartner", partners, len(partners), "channel partners fetched successfully")
}

// Remarks handles GET /api/channelPartner/:channelPartnerNo/remarks.
func (ctl *ChannelPartnerController) Remarks(c *gin.Context) {
	remarks, err := ctl.ledger.ListRemarks(c.Request.Context(), currentUser(c), models.KindChannelPartner, c.Param("channelPartnerNo"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.ListResponse(c, "remarks", remarks, len(remarks), "remarks fetched successfully")
}
