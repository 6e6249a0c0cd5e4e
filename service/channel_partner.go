package service

import (
	"context"

	"github.com/ghostbadfame/CRM-Chase-local/models"
	"github.com/ghostbadfame/CRM-Chase-local/utils"

	"go.mongodb.org/mongo-driver/bson"
)

const duplicateChannelPartnerMessage = "channel partner with this contact already exists"

// CreateChannelPartner registers a partner without a follow-up date and
// records the creation remark.
func (s *LedgerService) CreateChannelPartner(ctx context.Context, actor *models.ActingUser, req *models.ChannelPartnerCreateRequest) (*models.ChannelPartner, *models.Remark, error) {
	partner, remark, err := s.createChannelPartner(ctx, actor, req)
	s.metrics.ObserveLedger(string(models.KindChannelPartner), "create", err)
	return partner, remark, err
}

func (s *LedgerService) createChannelPartner(ctx context.Context, actor *models.ActingUser, req *models.ChannelPartnerCreateRequest) (*models.ChannelPartner, *models.Remark, error) {
	if req == nil {
		return nil, nil, utils.CreateBadRequestError("request body required")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, nil, err
	}
	birthday, err := parseDateField("birthday", req.Birthday)
	if err != nil {
		return nil, nil, err
	}
	anniversary, err := parseDateField("weddingAnniversary", req.WeddingAnniversary)
	if err != nil {
		return nil, nil, err
	}
	author, err := s.resolveActor(ctx, actor)
	if err != nil {
		return nil, nil, err
	}

	now := s.clock.Now()
	var created *models.ChannelPartner
	var remark *models.Remark

	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.store.FindChannelPartnerByContact(ctx, req.Contact)
		if err != nil {
			return err
		}
		if existing != nil {
			return utils.CreateDuplicateEntityError(duplicateChannelPartnerMessage)
		}

		partnerNo, err := s.nextNumber(ctx, models.KindChannelPartner)
		if err != nil {
			return err
		}

		lastDate := now
		partner := &models.ChannelPartner{
			ChannelPartnerNo:   partnerNo,
			FullName:           req.FullName,
			Contact:            req.Contact,
			AltContact:         req.AltContact,
			Email:              req.Email,
			Address:            req.Address,
			City:               req.City,
			UserType:           req.UserType,
			Firm:               req.Firm,
			Birthday:           birthday,
			WeddingAnniversary: anniversary,
			LastDate:           &lastDate,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := s.store.InsertChannelPartner(ctx, partner); err != nil {
			return err
		}

		stored, err := s.store.FindChannelPartnerByNo(ctx, partnerNo)
		if err != nil {
			return err
		}
		if stored == nil {
			return utils.CreatePersistenceError("channel partner missing after insert", nil)
		}

		remark, err = s.appendRemark(ctx, models.KindChannelPartner, req.Remark, stored.ChannelPartnerNo, stored.ID, author, stored.FollowupDate, now)
		if err != nil {
			return err
		}
		created = stored
		return nil
	})
	if err != nil {
		return nil, nil, storeError(err, duplicateChannelPartnerMessage)
	}

	utils.Logger.Info().
		Str("channelPartnerNo", created.ChannelPartnerNo).
		Str("empNo", author.EmpNo).
		Msg("channel partner created")
	return created, remark, nil
}

// UpdateChannelPartner replaces the partner's profile, sets the follow-up
// date when one is given and appends a remark.
func (s *LedgerService) UpdateChannelPartner(ctx context.Context, actor *models.ActingUser, channelPartnerNo string, req *models.ChannelPartnerUpdateRequest) (*models.ChannelPartner, *models.Remark, error) {
	partner, remark, err := s.updateChannelPartner(ctx, actor, channelPartnerNo, req)
	s.metrics.ObserveLedger(string(models.KindChannelPartner), "update", err)
	return partner, remark, err
}

func (s *LedgerService) updateChannelPartner(ctx context.Context, actor *models.ActingUser, channelPartnerNo string, req *models.ChannelPartnerUpdateRequest) (*models.ChannelPartner, *models.Remark, error) {
	if channelPartnerNo == "" {
		return nil, nil, utils.CreateMissingIdentifierError("channelPartnerNo")
	}
	if req == nil {
		return nil, nil, utils.CreateBadRequestError("request body required")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, nil, err
	}
	author, err := s.resolveActor(ctx, actor)
	if err != nil {
		return nil, nil, err
	}

	now := s.clock.Now()
	set, err := channelPartnerUpdateSet(req)
	if err != nil {
		return nil, nil, err
	}
	set["lastDate"] = now
	set["updatedAt"] = now

	var updated *models.ChannelPartner
	var remark *models.Remark

	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		current, err := s.store.FindChannelPartnerByNo(ctx, channelPartnerNo)
		if err != nil {
			return err
		}
		if current == nil {
			return utils.CreateNotFoundError("channel partner " + channelPartnerNo)
		}

		if req.Contact != current.Contact {
			other, err := s.store.FindChannelPartnerByContact(ctx, req.Contact)
			if err != nil {
				return err
			}
			if other != nil && other.ChannelPartnerNo != channelPartnerNo {
				return utils.CreateDuplicateEntityError(duplicateChannelPartnerMessage)
			}
		}

		partner, err := s.store.UpdateChannelPartner(ctx, channelPartnerNo, set)
		if err != nil {
			return err
		}
		if partner == nil {
			return utils.CreateNotFoundError("channel partner " + channelPartnerNo)
		}

		remark, err = s.appendRemark(ctx, models.KindChannelPartner, req.Remark, partner.ChannelPartnerNo, partner.ID, author, partner.FollowupDate, now)
		if err != nil {
			return err
		}
		updated = partner
		return nil
	})
	if err != nil {
		return nil, nil, storeError(err, duplicateChannelPartnerMessage)
	}

	utils.Logger.Info().
		Str("channelPartnerNo", updated.ChannelPartnerNo).
		Str("empNo", author.EmpNo).
		Msg("channel partner updated")
	return updated, remark, nil
}

func channelPartnerUpdateSet(req *models.ChannelPartnerUpdateRequest) (bson.M, error) {
	set := bson.M{
		"fullName":   req.FullName,
		"contact":    req.Contact,
		"altContact": req.AltContact,
		"email":      req.Email,
		"address":    req.Address,
		"city":       req.City,
		"userType":   req.UserType,
		"firm":       req.Firm,
	}

	dates := []struct {
		field string
		value *string
	}{
		{"birthday", req.Birthday},
		{"weddingAnniversary", req.WeddingAnniversary},
		{"followupDate", req.FollowupDate},
	}
	for _, d := range dates {
		t, err := parseDateField(d.field, d.value)
		if err != nil {
			return nil, err
		}
		if t != nil {
			set[d.field] = *t
		}
	}
	return set, nil
}

// GetChannelPartner returns the partner with the given number.
func (s *LedgerService) GetChannelPartner(ctx context.Context, actor *models.ActingUser, channelPartnerNo string) (*models.ChannelPartner, error) {
	if err := requireSession(actor); err != nil {
		return nil, err
	}
	if channelPartnerNo == "" {
		return nil, utils.CreateMissingIdentifierError("channelPartnerNo")
	}
	partner, err := s.store.FindChannelPartnerByNo(ctx, channelPartnerNo)
	if err != nil {
		return nil, storeError(err, "")
	}
	if partner == nil {
		return nil, utils.CreateNotFoundError("channel partner " + channelPartnerNo)
	}
	return partner, nil
}

// ListChannelPartners returns partners matching filter, newest first.
func (s *LedgerService) ListChannelPartners(ctx context.Context, actor *models.ActingUser, filter models.ChannelPartnerFilter) ([]models.ChannelPartner, error) {
	if err := requireSession(actor); err != nil {
		return nil, err
	}
	partners, err := s.store.ListChannelPartners(ctx, filter)
	if err != nil {
		return nil, storeError(err, "")
	}
	return partners, nil
}

// ChannelPartnersDueToday returns partners whose follow-up falls on the
// current UTC day.
func (s *LedgerService) ChannelPartnersDueToday(ctx context.Context, actor *models.ActingUser) ([]models.ChannelPartner, error) {
	now := s.clock.Now()
	from := utils.StartOfDay(now)
	to := utils.EndOfDay(now)
	return s.ListChannelPartners(ctx, actor, models.ChannelPartnerFilter{FollowupFrom: &from, FollowupTo: &to})
}
