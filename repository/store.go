package repository

import (
	"context"
	"errors"

	"github.com/ghostbadfame/CRM-Chase-local/models"

	"go.mongodb.org/mongo-driver/bson"
)

// ErrDuplicateKey is returned by inserts and updates that collide on a unique field.
var ErrDuplicateKey = errors.New("duplicate key")

// Transactor runs fn so that every store call made with the ctx it receives
// commits or rolls back together.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// CounterStore hands out monotonically increasing sequence values.
type CounterStore interface {
	// NextSequence atomically increments the named counter and returns the new value.
	NextSequence(ctx context.Context, kind models.EntityKind) (int64, error)
	// SeedSequence raises the counter to at least floor.
	SeedSequence(ctx context.Context, kind models.EntityKind, floor int64) error
	CountEntities(ctx context.Context, kind models.EntityKind) (int64, error)
}

// UserStore persists employee accounts.
type UserStore interface {
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	InsertUser(ctx context.Context, user *models.User) error
	CountUsersByRole(ctx context.Context, role models.UserRole) (int64, error)
}

// LeadStore persists leads. Finders return (nil, nil) when nothing matches;
// the same holds for every Find* method in this package.
type LeadStore interface {
	FindLeadByContact(ctx context.Context, contact string) (*models.Lead, error)
	FindLeadByNo(ctx context.Context, leadNo string) (*models.Lead, error)
	InsertLead(ctx context.Context, lead *models.Lead) error
	// UpdateLead applies set and returns the post-update document.
	UpdateLead(ctx context.Context, leadNo string, set bson.M) (*models.Lead, error)
	// BulkUpdateLeads applies patch to every lead matching filter and returns the affected count.
	BulkUpdateLeads(ctx context.Context, filter models.LeadFilter, patch models.LeadPatch) (int64, error)
	ListLeads(ctx context.Context, filter models.LeadFilter) ([]models.Lead, error)
}

// ChannelPartnerStore persists channel partners.
type ChannelPartnerStore interface {
	FindChannelPartnerByContact(ctx context.Context, contact string) (*models.ChannelPartner, error)
	FindChannelPartnerByNo(ctx context.Context, channelPartnerNo string) (*models.ChannelPartner, error)
	InsertChannelPartner(ctx context.Context, partner *models.ChannelPartner) error
	// UpdateChannelPartner applies set and returns the post-update document.
	UpdateChannelPartner(ctx context.Context, channelPartnerNo string, set bson.M) (*models.ChannelPartner, error)
	ListChannelPartners(ctx context.Context, filter models.ChannelPartnerFilter) ([]models.ChannelPartner, error)
}

// RemarkStore is the append-only remark ledger, one collection per entity kind.
type RemarkStore interface {
	InsertRemark(ctx context.Context, kind models.EntityKind, remark *models.Remark) error
	ListRemarks(ctx context.Context, kind models.EntityKind, parentNo string) ([]models.Remark, error)
}

// OperationLogStore keeps the API audit trail.
type OperationLogStore interface {
	InsertOperationLog(ctx context.Context, log *models.OperationLog) error
}

// Store is everything the services need from persistence.
type Store interface {
	Transactor
	CounterStore
	UserStore
	LeadStore
	ChannelPartnerStore
	RemarkStore
	OperationLogStore

	Status(ctx context.Context) (map[string]interface{}, error)
}
