package service

import (
	"context"
	"time"

	"github.com/ghostbadfame/CRM-Chase-local/models"
	"github.com/ghostbadfame/CRM-Chase-local/utils"

	"go.mongodb.org/mongo-driver/bson"
)

const duplicateLeadMessage = "lead with this contact already exists"

// CreateLead registers a new lead as pending with today's follow-up and
// records the creation remark.
func (s *LedgerService) CreateLead(ctx context.Context, actor *models.ActingUser, req *models.LeadCreateRequest) (*models.Lead, *models.Remark, error) {
	lead, remark, err := s.createLead(ctx, actor, req)
	s.metrics.ObserveLedger(string(models.KindLead), "create", err)
	return lead, remark, err
}

func (s *LedgerService) createLead(ctx context.Context, actor *models.ActingUser, req *models.LeadCreateRequest) (*models.Lead, *models.Remark, error) {
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
	var created *models.Lead
	var remark *models.Remark

	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.store.FindLeadByContact(ctx, req.Contact)
		if err != nil {
			return err
		}
		if existing != nil {
			return utils.CreateDuplicateEntityError(duplicateLeadMessage)
		}

		leadNo, err := s.nextNumber(ctx, models.KindLead)
		if err != nil {
			return err
		}

		followup := now
		assignTo := now
		lead := &models.Lead{
			LeadNo:       leadNo,
			FullName:     req.FullName,
			Contact:      req.Contact,
			AltContact:   req.AltContact,
			Address:      req.Address,
			City:         req.City,
			LeadSource:   req.LeadSource,
			ActualSource: req.ActualSource,
			SiteStage:    req.SiteStage,
			SalesPerson:  req.SalesPerson,
			ClientStatus: req.ClientStatus,
			Status:       models.LeadStatusPending,
			FollowupDate: &followup,
			AssignToDate: &assignTo,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.store.InsertLead(ctx, lead); err != nil {
			return err
		}

		stored, err := s.store.FindLeadByNo(ctx, leadNo)
		if err != nil {
			return err
		}
		if stored == nil {
			return utils.CreatePersistenceError("lead missing after insert", nil)
		}

		remark, err = s.appendRemark(ctx, models.KindLead, req.Remark, stored.LeadNo, stored.ID, author, stored.FollowupDate, now)
		if err != nil {
			return err
		}
		created = stored
		return nil
	})
	if err != nil {
		return nil, nil, storeError(err, duplicateLeadMessage)
	}

	utils.Logger.Info().
		Str("leadNo", created.LeadNo).
		Str("empNo", author.EmpNo).
		Msg("lead created")
	return created, remark, nil
}

// UpdateLead applies the present fields of req to the lead and appends a
// remark carrying the post-update follow-up date.
func (s *LedgerService) UpdateLead(ctx context.Context, actor *models.ActingUser, leadNo string, req *models.LeadUpdateRequest) (*models.Lead, *models.Remark, error) {
	lead, remark, err := s.updateLead(ctx, actor, leadNo, req)
	s.metrics.ObserveLedger(string(models.KindLead), "update", err)
	return lead, remark, err
}

func (s *LedgerService) updateLead(ctx context.Context, actor *models.ActingUser, leadNo string, req *models.LeadUpdateRequest) (*models.Lead, *models.Remark, error) {
	if leadNo == "" {
		return nil, nil, utils.CreateMissingIdentifierError("leadNo")
	}
	if req == nil {
		return nil, nil, utils.CreateBadRequestError("request body required")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, nil, err
	}
	followup, err := parseDateField("followupDate", req.FollowupDate)
	if err != nil {
		return nil, nil, err
	}
	author, err := s.resolveActor(ctx, actor)
	if err != nil {
		return nil, nil, err
	}

	now := s.clock.Now()
	set := leadUpdateSet(req, followup)
	set["updatedAt"] = now

	var updated *models.Lead
	var remark *models.Remark

	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		current, err := s.store.FindLeadByNo(ctx, leadNo)
		if err != nil {
			return err
		}
		if current == nil {
			return utils.CreateNotFoundError("lead " + leadNo)
		}

		if req.Contact != nil && *req.Contact != current.Contact {
			other, err := s.store.FindLeadByContact(ctx, *req.Contact)
			if err != nil {
				return err
			}
			if other != nil && other.LeadNo != leadNo {
				return utils.CreateDuplicateEntityError(duplicateLeadMessage)
			}
		}

		lead, err := s.store.UpdateLead(ctx, leadNo, set)
		if err != nil {
			return err
		}
		if lead == nil {
			return utils.CreateNotFoundError("lead " + leadNo)
		}

		remark, err = s.appendRemark(ctx, models.KindLead, req.Remark, lead.LeadNo, lead.ID, author, lead.FollowupDate, now)
		if err != nil {
			return err
		}
		updated = lead
		return nil
	})
	if err != nil {
		return nil, nil, storeError(err, duplicateLeadMessage)
	}

	utils.Logger.Info().
		Str("leadNo", updated.LeadNo).
		Str("empNo", author.EmpNo).
		Int("fields", len(set)).
		Msg("lead updated")
	return updated, remark, nil
}

func leadUpdateSet(req *models.LeadUpdateRequest, followup *time.Time) bson.M {
	set := bson.M{}
	str := func(key string, v *string) {
		if v != nil {
			set[key] = *v
		}
	}
	str("fullName", req.FullName)
	str("contact", req.Contact)
	str("altContact", req.AltContact)
	str("address", req.Address)
	str("city", req.City)
	str("leadSource", req.LeadSource)
	str("actualSource", req.ActualSource)
	str("siteStage", req.SiteStage)
	str("salesPerson", req.SalesPerson)
	str("clientStatus", req.ClientStatus)
	str("status", req.Status)
	str("assignTo", req.AssignTo)
	str("priority", req.Priority)
	str("technicianTask", req.TechnicianTask)
	str("engineerTask", req.EngineerTask)
	if req.AfterSaleService != nil {
		set["afterSaleService"] = *req.AfterSaleService
	}
	if followup != nil {
		set["followupDate"] = *followup
	}
	return set
}

// GetLead returns the lead with the given number.
func (s *LedgerService) GetLead(ctx context.Context, actor *models.ActingUser, leadNo string) (*models.Lead, error) {
	if err := requireSession(actor); err != nil {
		return nil, err
	}
	if leadNo == "" {
		return nil, utils.CreateMissingIdentifierError("leadNo")
	}
	lead, err := s.store.FindLeadByNo(ctx, leadNo)
	if err != nil {
		return nil, storeError(err, "")
	}
	if lead == nil {
		return nil, utils.CreateNotFoundError("lead " + leadNo)
	}
	return lead, nil
}

// ListLeads returns leads matching filter, newest first.
func (s *LedgerService) ListLeads(ctx context.Context, actor *models.ActingUser, filter models.LeadFilter) ([]models.Lead, error) {
	if err := requireSession(actor); err != nil {
		return nil, err
	}
	leads, err := s.store.ListLeads(ctx, filter)
	if err != nil {
		return nil, storeError(err, "")
	}
	return leads, nil
}

// LeadsDueToday returns leads whose follow-up falls on the current UTC day.
// Basic users only see leads where they are the sales person.
func (s *LedgerService) LeadsDueToday(ctx context.Context, actor *models.ActingUser) ([]models.Lead, error) {
	if err := requireSession(actor); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	from := utils.StartOfDay(now)
	to := utils.EndOfDay(now)

	filter := models.LeadFilter{FollowupFrom: &from, FollowupTo: &to}
	if !actor.IsAdmin() {
		filter.SalesPerson = actor.Username
	}
	return s.ListLeads(ctx, actor, filter)
}
