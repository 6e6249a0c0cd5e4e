package service

import (
	"context"
	"errors"
	"time"

	"github.com/ghostbadfame/CRM-Chase-local/models"
	"github.com/ghostbadfame/CRM-Chase-local/repository"
	"github.com/ghostbadfame/CRM-Chase-local/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LedgerService creates and updates leads and channel partners. Every
// successful mutation writes exactly one remark in the same transaction.
type LedgerService struct {
	store   repository.Store
	clock   utils.Clock
	metrics *utils.Metrics
}

// NewLedgerService wires the ledger. clock defaults to the wall clock.
func NewLedgerService(store repository.Store, clock utils.Clock, metrics *utils.Metrics) *LedgerService {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &LedgerService{store: store, clock: clock, metrics: metrics}
}

// resolveActor loads the stored account behind the session. Remarks take
// their employee name and number from it.
func (s *LedgerService) resolveActor(ctx context.Context, actor *models.ActingUser) (*models.User, error) {
	if actor == nil || actor.Email == "" {
		return nil, utils.CreateUnauthorizedError()
	}
	user, err := s.store.FindUserByEmail(ctx, actor.Email)
	if err != nil {
		return nil, utils.CreatePersistenceError("failed to load acting user", err)
	}
	if user == nil || user.Restricted {
		return nil, utils.CreateUnauthorizedError()
	}
	return user, nil
}

// requireSession is the read-side check: a session must exist but the
// account is not re-read.
func requireSession(actor *models.ActingUser) error {
	if actor == nil || actor.Email == "" {
		return utils.CreateUnauthorizedError()
	}
	return nil
}

// storeError converts a repository failure into an ApiError. ApiErrors pass
// through untouched so that kinds raised inside a transaction survive it.
func storeError(err error, duplicateMessage string) error {
	if err == nil {
		return nil
	}
	var apiErr *utils.ApiError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if errors.Is(err, repository.ErrDuplicateKey) {
		return utils.CreateDuplicateEntityError(duplicateMessage)
	}
	return utils.CreatePersistenceError("database operation failed", err)
}

func (s *LedgerService) nextNumber(ctx context.Context, kind models.EntityKind) (string, error) {
	n, err := s.store.NextSequence(ctx, kind)
	if err != nil {
		return "", err
	}
	return models.FormatSequenceNo(kind, n), nil
}

func (s *LedgerService) appendRemark(ctx context.Context, kind models.EntityKind, text, parentNo string, parentID primitive.ObjectID, author *models.User, followup *time.Time, now time.Time) (*models.Remark, error) {
	remark := &models.Remark{
		Remark:       text,
		ParentNo:     parentNo,
		ParentID:     parentID,
		EmpName:      author.Username,
		EmpNo:        author.EmpNo,
		FollowUpDate: followup,
		CreatedAt:    now,
	}
	if err := s.store.InsertRemark(ctx, kind, remark); err != nil {
		return nil, err
	}
	return remark, nil
}

// ListRemarks returns the remark history of one entity, oldest first.
func (s *LedgerService) ListRemarks(ctx context.Context, actor *models.ActingUser, kind models.EntityKind, parentNo string) ([]models.Remark, error) {
	if err := requireSession(actor); err != nil {
		return nil, err
	}
	if parentNo == "" {
		return nil, utils.CreateMissingIdentifierError(identifierName(kind))
	}
	remarks, err := s.store.ListRemarks(ctx, kind, parentNo)
	if err != nil {
		return nil, storeError(err, "")
	}
	return remarks, nil
}

func identifierName(kind models.EntityKind) string {
	switch kind {
	case models.KindLead:
		return "leadNo"
	case models.KindChannelPartner:
		return "channelPartnerNo"
	}
	return "id"
}

func parseDateField(field string, value *string) (*time.Time, error) {
	t, err := utils.ParseOptionalDate(value)
	if err != nil {
		return nil, utils.CreateValidationError(map[string]string{field: err.Error()})
	}
	return t, nil
}
