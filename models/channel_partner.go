package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChannelPartner is a referral source (architect, contractor, dealer...).
type ChannelPartner struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"channelPartnerId,omitempty"`
	ChannelPartnerNo   string             `bson:"channelPartnerNo" json:"channelPartnerNo"`
	FullName           string             `bson:"fullName" json:"fullName"`
	Contact            string             `bson:"contact" json:"contact"`
	AltContact         string             `bson:"altContact,omitempty" json:"altContact,omitempty"`
	Email              string             `bson:"email,omitempty" json:"email,omitempty"`
	Address            string             `bson:"address" json:"address"`
	City               string             `bson:"city" json:"city"`
	UserType           string             `bson:"userType" json:"userType"`
	Firm               string             `bson:"firm,omitempty" json:"firm,omitempty"`
	Birthday           *time.Time         `bson:"birthday,omitempty" json:"birthday"`
	WeddingAnniversary *time.Time         `bson:"weddingAnniversary,omitempty" json:"weddingAnniversary"`
	FollowupDate       *time.Time         `bson:"followupDate,omitempty" json:"followupDate"`
	LastDate           *time.Time         `bson:"lastDate,omitempty" json:"lastDate"`
	CreatedAt          time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ChannelPartnerCreateRequest is the new-channel-partner form payload.
type ChannelPartnerCreateRequest struct {
	FullName           string  `json:"fullName" validate:"required,max=100"`
	Contact            string  `json:"contact" validate:"required,len=10,numeric"`
	AltContact         string  `json:"altContact" validate:"omitempty,len=10,numeric"`
	Email              string  `json:"email" validate:"omitempty,email"`
	Address            string  `json:"address" validate:"required,max=100"`
	City               string  `json:"city" validate:"required,max=100"`
	UserType           string  `json:"userType" validate:"required,max=100"`
	Firm               string  `json:"firm" validate:"max=100"`
	Birthday           *string `json:"birthday" validate:"omitempty,flexdate"`
	WeddingAnniversary *string `json:"weddingAnniversary" validate:"omitempty,flexdate"`
	Remark             string  `json:"remark" validate:"required,max=100"`
}

// ChannelPartnerUpdateRequest replaces the partner's profile. FollowupDate is
// only written when present.
type ChannelPartnerUpdateRequest struct {
	FullName           string  `json:"fullName" validate:"required,max=100"`
	Contact            string  `json:"contact" validate:"required,len=10,numeric"`
	AltContact         string  `json:"altContact" validate:"omitempty,len=10,numeric"`
	Email              string  `json:"email" validate:"omitempty,email"`
	Address            string  `json:"address" validate:"required,max=100"`
	City               string  `json:"city" validate:"required,max=100"`
	UserType           string  `json:"userType" validate:"required,max=100"`
	Firm               string  `json:"firm" validate:"max=100"`
	Birthday           *string `json:"birthday" validate:"omitempty,flexdate"`
	WeddingAnniversary *string `json:"weddingAnniversary" validate:"omitempty,flexdate"`
	FollowupDate       *string `json:"followupDate" validate:"omitempty,flexdate"`
	Remark             string  `json:"remark" validate:"required,max=100"`
}

// ChannelPartnerFilter selects channel partners for listing.
type ChannelPartnerFilter struct {
	UserType     string
	FollowupFrom *time.Time
	FollowupTo   *time.Time
}

// Matches evaluates the filter against a partner held in memory.
func (f ChannelPartnerFilter) Matches(p *ChannelPartner) bool {
	if f.UserType != "" && p.UserType != f.UserType {
		return false
	}
	if f.FollowupFrom != nil || f.FollowupTo != nil {
		if p.FollowupDate == nil {
			return false
		}
		if f.FollowupFrom != nil && p.FollowupDate.Before(*f.FollowupFrom) {
			return false
		}
		if f.FollowupTo != nil && p.FollowupDate.After(*f.FollowupTo) {
			return false
		}
	}
	return true
}

// BSON renders the filter as a MongoDB query document.
func (f ChannelPartnerFilter) BSON() bson.M {
	filter := bson.M{}
	if f.UserType != "" {
		filter["userType"] = f.UserType
	}
	followup := bson.M{}
	if f.FollowupFrom != nil {
		followup["$gte"] = *f.FollowupFrom
	}
	if f.FollowupTo != nil {
		followup["$lte"] = *f.FollowupTo
	}
	if len(followup) > 0 {
		filter["followupDate"] = followup
	}
	return filter
}
