package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	LeadStatusPending = "pending"
	LeadStatusDone    = "done"

	// ClientStatusLost freezes a lead: the rollover never touches it again.
	ClientStatusLost = "Lost"
)

// Lead is a prospective kitchen customer worked by the sales team.
type Lead struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	LeadNo           string             `bson:"leadNo" json:"leadNo"`
	FullName         string             `bson:"fullName" json:"fullName"`
	Contact          string             `bson:"contact" json:"contact"`
	AltContact       string             `bson:"altContact,omitempty" json:"altContact,omitempty"`
	Address          string             `bson:"address" json:"address"`
	City             string             `bson:"city" json:"city"`
	LeadSource       string             `bson:"leadSource" json:"leadSource"`
	ActualSource     string             `bson:"actualSource" json:"actualSource"`
	SiteStage        string             `bson:"siteStage" json:"siteStage"`
	SalesPerson      string             `bson:"salesPerson" json:"salesPerson"`
	ClientStatus     string             `bson:"clientStatus" json:"clientStatus"`
	Status           string             `bson:"status" json:"status"`
	AssignTo         string             `bson:"assignTo,omitempty" json:"assignTo,omitempty"`
	Priority         string             `bson:"priority,omitempty" json:"priority,omitempty"`
	TechnicianTask   string             `bson:"technicianTask,omitempty" json:"technicianTask,omitempty"`
	EngineerTask     string             `bson:"engineerTask,omitempty" json:"engineerTask,omitempty"`
	AfterSaleService bool               `bson:"afterSaleService" json:"afterSaleService"`
	FollowupDate     *time.Time         `bson:"followupDate,omitempty" json:"followupDate"`
	AssignToDate     *time.Time         `bson:"assignToDate,omitempty" json:"assignToDate"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// LeadCreateRequest is the new-lead form payload.
type LeadCreateRequest struct {
	FullName     string `json:"fullName" validate:"required,max=100"`
	Contact      string `json:"contact" validate:"required,len=10,numeric"`
	AltContact   string `json:"altContact" validate:"omitempty,len=10,numeric"`
	Address      string `json:"address" validate:"required,max=100"`
	City         string `json:"city" validate:"required,max=100"`
	LeadSource   string `json:"leadSource" validate:"required,max=100"`
	ActualSource string `json:"actualSource" validate:"required,max=100"`
	SiteStage    string `json:"siteStage" validate:"required,max=100"`
	SalesPerson  string `json:"salesPerson" validate:"required,max=100"`
	ClientStatus string `json:"clientStatus" validate:"max=100"`
	Remark       string `json:"remark" validate:"required,max=100"`
}

// LeadUpdateRequest is the lead-details edit payload. Nil fields are left unchanged.
type LeadUpdateRequest struct {
	FullName         *string `json:"fullName" validate:"omitempty,min=1,max=100"`
	Contact          *string `json:"contact" validate:"omitempty,len=10,numeric"`
	AltContact       *string `json:"altContact" validate:"omitempty,len=10,numeric"`
	Address          *string `json:"address" validate:"omitempty,min=1,max=100"`
	City             *string `json:"city" validate:"omitempty,min=1,max=100"`
	LeadSource       *string `json:"leadSource" validate:"omitempty,min=1,max=100"`
	ActualSource     *string `json:"actualSource" validate:"omitempty,min=1,max=100"`
	SiteStage        *string `json:"siteStage" validate:"omitempty,min=1,max=100"`
	SalesPerson      *string `json:"salesPerson" validate:"omitempty,min=1,max=100"`
	ClientStatus     *string `json:"clientStatus" validate:"omitempty,min=1,max=100"`
	Status           *string `json:"status" validate:"omitempty,min=1,max=100"`
	AssignTo         *string `json:"assignTo" validate:"omitempty,min=1,max=100"`
	Priority         *string `json:"priority" validate:"omitempty,min=1,max=100"`
	TechnicianTask   *string `json:"technicianTask" validate:"omitempty,min=1,max=100"`
	EngineerTask     *string `json:"engineerTask" validate:"omitempty,min=1,max=100"`
	AfterSaleService *bool   `json:"afterSaleService"`
	FollowupDate     *string `json:"followupDate" validate:"omitempty,flexdate"`
	Remark           string  `json:"remark" validate:"required,max=100"`
}

// LeadFilter selects leads for listing and for bulk rollover updates.
// Zero-valued fields do not constrain the selection. Follow-up bounds are
// inclusive for From/To and exclusive for Before; a lead without a follow-up
// date never matches a follow-up bound.
type LeadFilter struct {
	Status              string
	ClientStatus        string
	ExcludeClientStatus string
	SalesPerson         string
	FollowupFrom        *time.Time
	FollowupTo          *time.Time
	FollowupBefore      *time.Time
}

// Matches evaluates the filter against a lead held in memory.
func (f LeadFilter) Matches(l *Lead) bool {
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	if f.ClientStatus != "" && l.ClientStatus != f.ClientStatus {
		return false
	}
	if f.ExcludeClientStatus != "" && l.ClientStatus == f.ExcludeClientStatus {
		return false
	}
	if f.SalesPerson != "" && l.SalesPerson != f.SalesPerson {
		return false
	}
	if f.FollowupFrom != nil || f.FollowupTo != nil || f.FollowupBefore != nil {
		if l.FollowupDate == nil {
			return false
		}
		d := *l.FollowupDate
		if f.FollowupFrom != nil && d.Before(*f.FollowupFrom) {
			return false
		}
		if f.FollowupTo != nil && d.After(*f.FollowupTo) {
			return false
		}
		if f.FollowupBefore != nil && !d.Before(*f.FollowupBefore) {
			return false
		}
	}
	return true
}

// BSON renders the filter as a MongoDB query document.
func (f LeadFilter) BSON() bson.M {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	clientStatus := bson.M{}
	if f.ClientStatus != "" {
		clientStatus["$eq"] = f.ClientStatus
	}
	if f.ExcludeClientStatus != "" {
		clientStatus["$ne"] = f.ExcludeClientStatus
	}
	if len(clientStatus) > 0 {
		filter["clientStatus"] = clientStatus
	}
	if f.SalesPerson != "" {
		filter["salesPerson"] = f.SalesPerson
	}
	followup := bson.M{}
	if f.FollowupFrom != nil {
		followup["$gte"] = *f.FollowupFrom
	}
	if f.FollowupTo != nil {
		followup["$lte"] = *f.FollowupTo
	}
	if f.FollowupBefore != nil {
		followup["$lt"] = *f.FollowupBefore
	}
	if len(followup) > 0 {
		filter["followupDate"] = followup
	}
	return filter
}

// LeadPatch is the field set written by a bulk lead update.
type LeadPatch struct {
	Status       *string
	FollowupDate *time.Time
	AssignToDate *time.Time
}

// Apply writes the patch onto an in-memory lead.
func (p LeadPatch) Apply(l *Lead) {
	if p.Status != nil {
		l.Status = *p.Status
	}
	if p.FollowupDate != nil {
		d := *p.FollowupDate
		l.FollowupDate = &d
	}
	if p.AssignToDate != nil {
		d := *p.AssignToDate
		l.AssignToDate = &d
	}
}

// SetDoc renders the patch as the body of a $set operator.
func (p LeadPatch) SetDoc() bson.M {
	set := bson.M{}
	if p.Status != nil {
		set["status"] = *p.Status
	}
	if p.FollowupDate != nil {
		set["followupDate"] = *p.FollowupDate
	}
	if p.AssignToDate != nil {
		set["assignToDate"] = *p.AssignToDate
	}
	return set
}
