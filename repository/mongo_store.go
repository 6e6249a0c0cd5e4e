package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ghostbadfame/CRM-Chase-local/models"
	"github.com/ghostbadfame/CRM-Chase-local/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// MongoStore implements Store on a MongoDB replica set. Transactions need a
// replica set or sharded cluster; a standalone server rejects them.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore wraps an already connected client.
func NewMongoStore(client *mongo.Client, db *mongo.Database) *MongoStore {
	return &MongoStore{client: client, db: db}
}

func (s *MongoStore) collection(name string) *mongo.Collection {
	return s.db.Collection(name)
}

func remarkCollection(kind models.EntityKind) (string, error) {
	switch kind {
	case models.KindLead:
		return LeadRemarksCollection, nil
	case models.KindChannelPartner:
		return ChannelPartnerRemarksCollection, nil
	}
	return "", fmt.Errorf("no remark collection for %q", kind)
}

func entityCollection(kind models.EntityKind) (string, error) {
	switch kind {
	case models.KindLead:
		return LeadsCollection, nil
	case models.KindChannelPartner:
		return ChannelPartnersCollection, nil
	case models.KindEmployee:
		return UsersCollection, nil
	}
	return "", fmt.Errorf("unknown entity kind %q", kind)
}

func mapWriteError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	}
	return err
}

// WithTransaction runs fn in a multi-document transaction. The driver retries
// fn on transient transaction errors such as write conflicts.
func (s *MongoStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	}, txnOpts)
	return err
}

type counterDoc struct {
	ID  string `bson:"_id"`
	Seq int64  `bson:"seq"`
}

// NextSequence increments the kind's counter document, creating it on first use.
func (s *MongoStore) NextSequence(ctx context.Context, kind models.EntityKind) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc counterDoc
	err := s.collection(CountersCollection).FindOneAndUpdate(
		ctx,
		bson.M{"_id": string(kind)},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("next sequence %s: %w", kind, err)
	}
	utils.LogDbOperation("NextSequence", CountersCollection, kind, doc.Seq)
	return doc.Seq, nil
}

// SeedSequence raises the kind's counter to floor without ever lowering it.
func (s *MongoStore) SeedSequence(ctx context.Context, kind models.EntityKind, floor int64) error {
	_, err := s.collection(CountersCollection).UpdateOne(
		ctx,
		bson.M{"_id": string(kind)},
		bson.M{"$max": bson.M{"seq": floor}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("seed sequence %s: %w", kind, err)
	}
	return nil
}

func (s *MongoStore) CountEntities(ctx context.Context, kind models.EntityKind) (int64, error) {
	collName, err := entityCollection(kind)
	if err != nil {
		return 0, err
	}
	return s.collection(collName).CountDocuments(ctx, bson.M{})
}

// findOne decodes the first document matching filter into out and reports
// whether one was found.
func (s *MongoStore) findOne(ctx context.Context, collName string, filter bson.M, out interface{}) (bool, error) {
	res, err := ExecuteDbOperation(ctx, func() (interface{}, error) {
		err := s.collection(collName).FindOne(ctx, filter).Decode(out)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	}, 3)
	if err != nil {
		return false, fmt.Errorf("find %s: %w", collName, err)
	}
	found, _ := res.(bool)
	return found, nil
}

func objectID(inserted interface{}, fallback primitive.ObjectID) primitive.ObjectID {
	if oid, ok := inserted.(primitive.ObjectID); ok {
		return oid
	}
	return fallback
}

func (s *MongoStore) findAll(ctx context.Context, collName string, filter bson.M, opts *options.FindOptions, out interface{}) error {
	_, err := ExecuteDbOperation(ctx, func() (interface{}, error) {
		cursor, err := s.collection(collName).Find(ctx, filter, opts)
		if err != nil {
			return nil, err
		}
		defer cursor.Close(ctx)
		return nil, cursor.All(ctx, out)
	}, 3)
	if err != nil {
		return fmt.Errorf("list %s: %w", collName, err)
	}
	return nil
}

func (s *MongoStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	found, err := s.findOne(ctx, UsersCollection, bson.M{"email": email}, &user)
	if err != nil || !found {
		return nil, err
	}
	return &user, nil
}

func (s *MongoStore) InsertUser(ctx context.Context, user *models.User) error {
	res, err := s.collection(UsersCollection).InsertOne(ctx, user)
	if err != nil {
		return mapWriteError(err)
	}
	user.ID = objectID(res.InsertedID, user.ID)
	return nil
}

func (s *MongoStore) CountUsersByRole(ctx context.Context, role models.UserRole) (int64, error) {
	return s.collection(UsersCollection).CountDocuments(ctx, bson.M{"role": role})
}

func (s *MongoStore) FindLeadByContact(ctx context.Context, contact string) (*models.Lead, error) {
	var lead models.Lead
	found, err := s.findOne(ctx, LeadsCollection, bson.M{"contact": contact}, &lead)
	if err != nil || !found {
		return nil, err
	}
	return &lead, nil
}

func (s *MongoStore) FindLeadByNo(ctx context.Context, leadNo string) (*models.Lead, error) {
	var lead models.Lead
	found, err := s.findOne(ctx, LeadsCollection, bson.M{"leadNo": leadNo}, &lead)
	if err != nil || !found {
		return nil, err
	}
	return &lead, nil
}

func (s *MongoStore) InsertLead(ctx context.Context, lead *models.Lead) error {
	res, err := s.collection(LeadsCollection).InsertOne(ctx, lead)
	if err != nil {
		return mapWriteError(err)
	}
	lead.ID = objectID(res.InsertedID, lead.ID)
	utils.LogDbOperation("InsertLead", LeadsCollection, lead.LeadNo, lead.ID)
	return nil
}

func (s *MongoStore) UpdateLead(ctx context.Context, leadNo string, set bson.M) (*models.Lead, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var lead models.Lead
	err := s.collection(LeadsCollection).FindOneAndUpdate(ctx, bson.M{"leadNo": leadNo}, bson.M{"$set": set}, opts).Decode(&lead)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, mapWriteError(err)
	}
	return &lead, nil
}

// BulkUpdateLeads issues a single UpdateMany. The server re-evaluates filter
// per document, so a lead changed concurrently to no longer match is skipped.
func (s *MongoStore) BulkUpdateLeads(ctx context.Context, filter models.LeadFilter, patch models.LeadPatch) (int64, error) {
	set := patch.SetDoc()
	if len(set) == 0 {
		return 0, nil
	}
	query := filter.BSON()

	res, err := s.collection(LeadsCollection).UpdateMany(ctx, query, bson.M{"$set": set})
	if err != nil {
		return 0, fmt.Errorf("bulk update leads: %w", err)
	}
	utils.LogDbOperation("BulkUpdateLeads", LeadsCollection, query, res.ModifiedCount)
	return res.ModifiedCount, nil
}

func (s *MongoStore) ListLeads(ctx context.Context, filter models.LeadFilter) ([]models.Lead, error) {
	leads := []models.Lead{}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if err := s.findAll(ctx, LeadsCollection, filter.BSON(), opts, &leads); err != nil {
		return nil, err
	}
	return leads, nil
}

func (s *MongoStore) FindChannelPartnerByContact(ctx context.Context, contact string) (*models.ChannelPartner, error) {
	var partner models.ChannelPartner
	found, err := s.findOne(ctx, ChannelPartnersCollection, bson.M{"contact": contact}, &partner)
	if err != nil || !found {
		return nil, err
	}
	return &partner, nil
}

func (s *MongoStore) FindChannelPartnerByNo(ctx context.Context, channelPartnerNo string) (*models.ChannelPartner, error) {
	var partner models.ChannelPartner
	found, err := s.findOne(ctx, ChannelPartnersCollection, bson.M{"channelPartnerNo": channelPartnerNo}, &partner)
	if err != nil || !found {
		return nil, err
	}
	return &partner, nil
}

func (s *MongoStore) InsertChannelPartner(ctx context.Context, partner *models.ChannelPartner) error {
	res, err := s.collection(ChannelPartnersCollection).InsertOne(ctx, partner)
	if err != nil {
		return mapWriteError(err)
	}
	partner.ID = objectID(res.InsertedID, partner.ID)
	utils.LogDbOperation("InsertChannelPartner", ChannelPartnersCollection, partner.ChannelPartnerNo, partner.ID)
	return nil
}

func (s *MongoStore) UpdateChannelPartner(ctx context.Context, channelPartnerNo string, set bson.M) (*models.ChannelPartner, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var partner models.ChannelPartner
	err := s.collection(ChannelPartnersCollection).FindOneAndUpdate(
		ctx,
		bson.M{"channelPartnerNo": channelPartnerNo},
		bson.M{"$set": set},
		opts,
	).Decode(&partner)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, mapWriteError(err)
	}
	return &partner, nil
}

func (s *MongoStore) ListChannelPartners(ctx context.Context, filter models.ChannelPartnerFilter) ([]models.ChannelPartner, error) {
	partners := []models.ChannelPartner{}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if err := s.findAll(ctx, ChannelPartnersCollection, filter.BSON(), opts, &partners); err != nil {
		return nil, err
	}
	return partners, nil
}

func (s *MongoStore) InsertRemark(ctx context.Context, kind models.EntityKind, remark *models.Remark) error {
	collName, err := remarkCollection(kind)
	if err != nil {
		return err
	}
	res, err := s.collection(collName).InsertOne(ctx, remark)
	if err != nil {
		return fmt.Errorf("insert remark: %w", err)
	}
	remark.ID = objectID(res.InsertedID, remark.ID)
	return nil
}

// ListRemarks returns the remark history of parentNo, oldest first.
func (s *MongoStore) ListRemarks(ctx context.Context, kind models.EntityKind, parentNo string) ([]models.Remark, error) {
	collName, err := remarkCollection(kind)
	if err != nil {
		return nil, err
	}
	remarks := []models.Remark{}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	if err := s.findAll(ctx, collName, bson.M{"parentNo": parentNo}, opts, &remarks); err != nil {
		return nil, err
	}
	return remarks, nil
}

func (s *MongoStore) InsertOperationLog(ctx context.Context, log *models.OperationLog) error {
	insertCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := s.collection(ApiOperationLogsCollection).InsertOne(insertCtx, log)
	if err != nil {
		return fmt.Errorf("insert operation log: %w", err)
	}
	log.ID = objectID(res.InsertedID, log.ID)
	return nil
}
